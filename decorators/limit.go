package decorators

import (
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/logging"
)

// Limit refuses every call after the first max ones.
type Limit struct {
	max   int64
	calls atomic.Int64
}

var _ hook.Decorator = (*Limit)(nil)

func NewLimit(max int64) *Limit {
	return &Limit{max: max}
}

func (l *Limit) ContextSize() int {
	return 0
}

func (l *Limit) Before(_ hook.CallContext, call *hook.Invocation) bool {
	n := l.calls.Add(1)
	if n <= l.max {
		return true
	}
	logging.Get().Debug().
		Str("target", call.Target().Name()).
		Int64("calls", n).
		Int64("max", l.max).
		Msg("call limit reached")
	return false
}

func (l *Limit) After(hook.CallContext, *hook.Invocation) {}

// Calls returns how many calls reached the decorator, refused ones included.
func (l *Limit) Calls() int64 {
	return l.calls.Load()
}

func (l *Limit) Reset() {
	l.calls.Store(0)
}
