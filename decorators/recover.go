package decorators

import (
	"fmt"
	"runtime/debug"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/rs/zerolog"
)

// PanicError is returned in place of a panic stopped by Recover.
type PanicError struct {
	Target string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Target, e.Value)
}

// Recover turns a panic into the trailing error result. Targets without one keep panicking.
type Recover struct {
	logger *zerolog.Logger
}

var _ hook.Decorator = (*Recover)(nil)

func NewRecover(logger *zerolog.Logger) *Recover {
	return &Recover{logger: logger}
}

func (r *Recover) ContextSize() int {
	return 0
}

func (r *Recover) Before(hook.CallContext, *hook.Invocation) bool {
	return true
}

func (r *Recover) After(_ hook.CallContext, call *hook.Invocation) {
	if _, panicking := call.Panic(); !panicking || call.Target().ErrorResult() < 0 {
		return
	}
	v, _ := call.Recover()
	err := &PanicError{Target: call.Target().Name(), Value: v, Stack: debug.Stack()}
	call.SetError(err)
	r.logger.Error().Err(err).Bytes("stack", err.Stack).Msg("panic recovered")
}
