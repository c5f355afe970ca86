package blackmagic

import (
	"fmt"

	"github.com/a-peyrard/blackmagic/config"
	"github.com/a-peyrard/blackmagic/depends"
	"github.com/a-peyrard/blackmagic/failure"
	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/a-peyrard/blackmagic/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Configure applies settings: failure policies, the library logger level, the
// default scheduler idle wait and, when enabled, metrics registration on the
// default prometheus registerer.
func Configure(settings *config.Settings) error {
	hookPolicy, err := failure.ParsePolicy(settings.HookPolicy)
	if err != nil {
		return fmt.Errorf("invalid hook policy:\n\t%w", err)
	}
	injectPolicy, err := failure.ParsePolicy(settings.InjectPolicy)
	if err != nil {
		return fmt.Errorf("invalid inject policy:\n\t%w", err)
	}
	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return err
	}

	hook.Failures().SetPolicy(hookPolicy)
	depends.Failures().SetPolicy(injectPolicy)
	if level == zerolog.Disabled {
		logging.Set(nil)
	} else {
		logging.Set(logging.New(level))
	}

	if settings.Scheduler != nil {
		depends.DefaultScheduler().SetIdleWait(settings.Scheduler.IdleWait)
	}
	if settings.Metrics != nil && settings.Metrics.Enabled {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		if ns := settings.Metrics.Namespace; ns != "" && ns != metrics.DefaultNamespace {
			reg = prometheus.WrapRegistererWithPrefix(ns+"_", reg)
		}
		if err := metrics.Default().Register(reg); err != nil {
			return fmt.Errorf("unable to register metrics:\n\t%w", err)
		}
	}
	return nil
}

// LoadAndConfigure loads Settings from the environment and applies them.
func LoadAndConfigure(opts ...option.Option[config.Options]) (*config.Settings, error) {
	settings, err := config.LoadSettings(opts...)
	if err != nil {
		return nil, err
	}
	return settings, Configure(settings)
}
