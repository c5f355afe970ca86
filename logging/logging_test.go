package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromEnv(t *testing.T) {
	t.Run("it should default to info", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_LOG_LEVEL", "")

		// WHEN
		level, err := LevelFromEnv("TEST_LOG_LEVEL")

		// THEN
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, level)
	})

	t.Run("it should parse levels case insensitively", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_LOG_LEVEL", "DEBUG")

		// WHEN
		level, err := LevelFromEnv("TEST_LOG_LEVEL")

		// THEN
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, level)
	})

	t.Run("it should reject unknown levels", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_LOG_LEVEL", "chatty")

		// WHEN
		_, err := LevelFromEnv("TEST_LOG_LEVEL")

		// THEN
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level chatty")
	})
}

func TestSet(t *testing.T) {
	t.Run("it should swap the library logger and restore it", func(t *testing.T) {
		// GIVEN
		var buf bytes.Buffer
		logger := New(zerolog.DebugLevel, WithWriter(&buf), WithJSON(), WithoutCaller())
		before := Get()

		// WHEN
		restore := Set(logger)
		Get().Info().Str("target", "main.add").Msg("hook installed")
		restore()

		// THEN
		assert.Contains(t, buf.String(), `"target":"main.add"`)
		assert.Contains(t, buf.String(), "hook installed")
		assert.Same(t, before, Get())
	})
}
