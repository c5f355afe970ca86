package config

import (
	"time"

	"github.com/a-peyrard/blackmagic/option"
)

// SettingsPrefix is the env prefix of Settings (BLACKMAGIC_HOOK_POLICY, BLACKMAGIC_METRICS_ENABLED...).
const SettingsPrefix = "BLACKMAGIC"

type (
	// Settings is the runtime configuration applied by blackmagic.Configure.
	Settings struct {
		HookPolicy   string
		InjectPolicy string
		LogLevel     string
		Metrics      *MetricsSettings
		Scheduler    *SchedulerSettings
	}

	MetricsSettings struct {
		Enabled   bool
		Namespace string
	}

	SchedulerSettings struct {
		// IdleWait bounds how long Scheduler.Run sleeps before re-checking an empty queue.
		IdleWait time.Duration
	}
)

func (s *Settings) ApplyDefault() {
	if s.HookPolicy == "" {
		s.HookPolicy = "ignore"
	}
	if s.InjectPolicy == "" {
		s.InjectPolicy = "throw"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

func (m *MetricsSettings) ApplyDefault() {
	if m.Namespace == "" {
		m.Namespace = "blackmagic"
	}
}

func (s *SchedulerSettings) ApplyDefault() {
	if s.IdleWait <= 0 {
		s.IdleWait = 50 * time.Millisecond
	}
}

// LoadSettings loads Settings from the environment with the BLACKMAGIC prefix.
func LoadSettings(opts ...option.Option[Options]) (*Settings, error) {
	return Load[Settings](append([]option.Option[Options]{WithEnvPrefix(SettingsPrefix)}, opts...)...)
}
