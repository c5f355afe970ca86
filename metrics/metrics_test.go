package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	t.Run("it should register every collector once and tolerate a second registration", func(t *testing.T) {
		// GIVEN
		reg := prometheus.NewRegistry()
		c := New("TestBlackMagic")

		// WHEN
		err := c.Register(reg)
		again := c.Register(reg)

		// THEN
		require.NoError(t, err)
		require.NoError(t, again)
		c.Dispatches.WithLabelValues("main.add").Inc()
		families, err := reg.Gather()
		require.NoError(t, err)
		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.Contains(t, names, "test_black_magic_hook_dispatches_total")
	})

	t.Run("it should count by label", func(t *testing.T) {
		// GIVEN
		c := New("counting")

		// WHEN
		c.Resolutions.WithLabelValues("cache").Inc()
		c.Resolutions.WithLabelValues("cache").Inc()
		c.Resolutions.WithLabelValues("default").Inc()

		// THEN
		assert.Equal(t, 2.0, testutil.ToFloat64(c.Resolutions.WithLabelValues("cache")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.Resolutions.WithLabelValues("default")))
	})

	t.Run("it should share the default collectors", func(t *testing.T) {
		assert.Same(t, Default(), Default())
	})
}
