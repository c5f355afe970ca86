package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	serverConfig struct {
		Listen *listenConfig
		Repo   *repoConfig
	}
	listenConfig struct {
		Host string
		Port int
	}
	repoConfig struct {
		MaxUsers  int
		CacheSize int
	}
)

type inlineConfig struct {
	Repo repoConfig
}

func (c *repoConfig) ApplyDefault() {
	if c.MaxUsers == 0 {
		c.MaxUsers = 42
	}
}

func TestLoad(t *testing.T) {
	t.Run("it should load nested structs from env vars", func(t *testing.T) {
		// GIVEN
		t.Setenv("DEMO_LISTEN_HOST", "localhost")
		t.Setenv("DEMO_LISTEN_PORT", "8080")
		t.Setenv("DEMO_REPO_MAX_USERS", "12")

		// WHEN
		conf, err := Load[serverConfig](WithEnvPrefix("DEMO"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "localhost", conf.Listen.Host)
		assert.Equal(t, 8080, conf.Listen.Port)
		assert.Equal(t, 12, conf.Repo.MaxUsers)
	})

	t.Run("it should create nil structs and apply defaults", func(t *testing.T) {
		// WHEN
		conf, err := Load[serverConfig](WithEnvPrefix("DEMO"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "", conf.Listen.Host)
		assert.Equal(t, 42, conf.Repo.MaxUsers)
		assert.Equal(t, 0, conf.Repo.CacheSize)
	})

	t.Run("it should apply defaults to sections held by value", func(t *testing.T) {
		// WHEN
		conf, err := Load[inlineConfig](WithEnvPrefix("INLINE"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, 42, conf.Repo.MaxUsers)
	})

	t.Run("it should read .env files without overriding the process environment", func(t *testing.T) {
		// GIVEN
		dir := t.TempDir()
		path := filepath.Join(dir, "test.env")
		require.NoError(t, os.WriteFile(path, []byte("DOTENV_LISTEN_HOST=from-file\nDOTENV_LISTEN_PORT=9000\n"), 0o600))
		t.Setenv("DOTENV_LISTEN_PORT", "7000")
		t.Cleanup(func() { _ = os.Unsetenv("DOTENV_LISTEN_HOST") })

		// WHEN
		conf, err := Load[serverConfig](WithEnvPrefix("DOTENV"), WithDotEnv(path))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "from-file", conf.Listen.Host)
		assert.Equal(t, 7000, conf.Listen.Port)
	})

	t.Run("it should skip missing .env files", func(t *testing.T) {
		// WHEN
		_, err := Load[serverConfig](WithEnvPrefix("DEMO"), WithDotEnv(filepath.Join(t.TempDir(), "missing.env")))

		// THEN
		require.NoError(t, err)
	})
}

func TestLoadSettings(t *testing.T) {
	t.Run("it should apply defaults", func(t *testing.T) {
		// WHEN
		settings, err := LoadSettings()

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "ignore", settings.HookPolicy)
		assert.Equal(t, "throw", settings.InjectPolicy)
		assert.Equal(t, "info", settings.LogLevel)
		assert.False(t, settings.Metrics.Enabled)
		assert.Equal(t, "blackmagic", settings.Metrics.Namespace)
		assert.Equal(t, 50*time.Millisecond, settings.Scheduler.IdleWait)
	})

	t.Run("it should read prefixed variables", func(t *testing.T) {
		// GIVEN
		t.Setenv("BLACKMAGIC_HOOK_POLICY", "throw")
		t.Setenv("BLACKMAGIC_INJECT_POLICY", "callback")
		t.Setenv("BLACKMAGIC_METRICS_ENABLED", "true")
		t.Setenv("BLACKMAGIC_SCHEDULER_IDLE_WAIT", "2s")

		// WHEN
		settings, err := LoadSettings()

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "throw", settings.HookPolicy)
		assert.Equal(t, "callback", settings.InjectPolicy)
		assert.True(t, settings.Metrics.Enabled)
		assert.Equal(t, 2*time.Second, settings.Scheduler.IdleWait)
	})
}
