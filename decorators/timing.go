package decorators

import (
	"time"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Timing measures the wall time of every call, decorators placed after it included.
// Durations feed a histogram and an optional observer.
type Timing struct {
	histogram *prometheus.HistogramVec
	observe   func(target string, d time.Duration)
}

var _ hook.Decorator = (*Timing)(nil)

func NewTiming(observe func(target string, d time.Duration)) *Timing {
	return &Timing{histogram: metrics.Default().DispatchDuration, observe: observe}
}

// start holds the call's start time in the decorator's scratch bytes.
type start struct {
	nanos int64
}

func (t *Timing) ContextSize() int {
	return 8
}

func (t *Timing) Before(ctx hook.CallContext, _ *hook.Invocation) bool {
	if s := hook.ContextAs[start](ctx); s != nil {
		s.nanos = time.Now().UnixNano()
	}
	return true
}

func (t *Timing) After(ctx hook.CallContext, call *hook.Invocation) {
	s := hook.ContextAs[start](ctx)
	if s == nil || s.nanos == 0 {
		return
	}
	elapsed := time.Duration(time.Now().UnixNano() - s.nanos)
	name := call.Target().Name()
	t.histogram.WithLabelValues(name).Observe(elapsed.Seconds())
	if t.observe != nil {
		t.observe(name, elapsed)
	}
}
