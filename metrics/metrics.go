// Package metrics holds the prometheus collectors fed by the hook and injection layers.
//
// Collectors always count; exposing them is opt-in through Register (or
// blackmagic.Configure with metrics enabled).
package metrics

import (
	"errors"
	"sync"

	"github.com/a-peyrard/blackmagic/str"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultNamespace = "blackmagic"

type Collectors struct {
	Dispatches       *prometheus.CounterVec
	Vetoes           *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Installs         *prometheus.CounterVec
	Resolutions      *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	AsyncFallbacks   prometheus.Counter
	Sessions         *prometheus.CounterVec
	SchedulerSteps   prometheus.Counter
	SchedulerQueue   prometheus.Gauge
}

var (
	defaultOnce       sync.Once
	defaultCollectors *Collectors
)

// Default returns the process-wide collectors.
func Default() *Collectors {
	defaultOnce.Do(func() {
		defaultCollectors = New(DefaultNamespace)
	})
	return defaultCollectors
}

func New(namespace string) *Collectors {
	namespace = str.ToSnakeCase(namespace)
	return &Collectors{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "dispatches_total",
			Help:      "Calls that entered a decorated pipeline.",
		}, []string{"target"}),
		Vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "vetoes_total",
			Help:      "Calls refused by a decorator before-phase.",
		}, []string{"target"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "call_duration_seconds",
			Help:      "Duration of decorated calls measured by the timing decorator.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
		}, []string{"target"}),
		Installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "installs_total",
			Help:      "Hook install attempts by outcome.",
		}, []string{"target", "outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "depends",
			Name:      "resolutions_total",
			Help:      "Resolved dependencies by source.",
		}, []string{"source"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures reported to a policy sink.",
		}, []string{"layer", "code"}),
		AsyncFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "depends",
			Name:      "async_metadata_fallbacks_total",
			Help:      "Async resolutions that found no async metadata and default-constructed the slot.",
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "depends",
			Name:      "sessions_total",
			Help:      "Injection sessions acquired by kind.",
		}, []string{"kind"}),
		SchedulerSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "steps_total",
			Help:      "Continuations resumed by task schedulers.",
		}),
		SchedulerQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_length",
			Help:      "Continuations waiting in the default scheduler.",
		}),
	}
}

func (c *Collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.Dispatches,
		c.Vetoes,
		c.DispatchDuration,
		c.Installs,
		c.Resolutions,
		c.Failures,
		c.AsyncFallbacks,
		c.Sessions,
		c.SchedulerSteps,
		c.SchedulerQueue,
	}
}

// Register adds every collector to reg. Registering twice on the same registry is not an error.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, collector := range c.all() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
