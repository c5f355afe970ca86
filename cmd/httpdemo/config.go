package main

import (
	"time"

	"github.com/a-peyrard/blackmagic/config"
)

const envPrefix = "HTTPDEMO"

type (
	Config struct {
		Listen  ListenConfig
		Metrics MetricsConfig
	}

	ListenConfig struct {
		Addr            string
		ShutdownTimeout time.Duration
	}

	MetricsConfig struct {
		Path string
	}
)

func (l *ListenConfig) ApplyDefault() {
	if l.Addr == "" {
		l.Addr = ":8080"
	}
	if l.ShutdownTimeout <= 0 {
		l.ShutdownTimeout = 5 * time.Second
	}
}

func (m *MetricsConfig) ApplyDefault() {
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// loadConfig reads HTTPDEMO_LISTEN_ADDR and friends, after the .env file when there is one.
func loadConfig() (*Config, error) {
	return config.Load[Config](config.WithEnvPrefix(envPrefix), config.WithDotEnv())
}
