package failure

import (
	"os"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/fn"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/option"
	"github.com/rs/zerolog"
)

type (
	Sink[E error] struct {
		name          string
		defaultPolicy Policy
		policy        atomic.Int32
		callback      atomic.Pointer[fn.Consumer[E]]
		last          atomic.Pointer[E]
		count         atomic.Uint64
		observer      fn.Consumer[E]
		exit          atomic.Pointer[func(code int)]
	}

	SinkOptions[E error] struct {
		observer fn.Consumer[E]
		exit     func(code int)
	}
)

// WithObserver registers a consumer that sees every failure before the policy applies.
// It is meant for instrumentation and cannot be replaced later.
func WithObserver[E error](observer fn.Consumer[E]) option.Option[SinkOptions[E]] {
	return func(opts *SinkOptions[E]) {
		opts.observer = observer
	}
}

// WithExit replaces os.Exit for the Terminate policy.
func WithExit[E error](exit func(code int)) option.Option[SinkOptions[E]] {
	return func(opts *SinkOptions[E]) {
		opts.exit = exit
	}
}

func NewSink[E error](name string, policy Policy, opts ...option.Option[SinkOptions[E]]) *Sink[E] {
	options := option.Build(&SinkOptions[E]{exit: os.Exit}, opts...)
	s := &Sink[E]{
		name:          name,
		defaultPolicy: policy,
		observer:      options.observer,
	}
	s.policy.Store(int32(policy))
	s.exit.Store(&options.exit)
	return s
}

func (s *Sink[E]) Name() string {
	return s.name
}

func (s *Sink[E]) Policy() Policy {
	return Policy(s.policy.Load())
}

// SetPolicy returns the previous policy.
func (s *Sink[E]) SetPolicy(p Policy) Policy {
	return Policy(s.policy.Swap(int32(p)))
}

// SetCallback installs a callback invoked for every failure, whatever the policy. Nil removes it.
func (s *Sink[E]) SetCallback(cb func(E)) {
	if cb == nil {
		s.callback.Store(nil)
		return
	}
	consumer := fn.Consumer[E](cb)
	s.callback.Store(&consumer)
}

// SetExit replaces the function called by the Terminate policy.
func (s *Sink[E]) SetExit(exit func(code int)) {
	if exit == nil {
		exit = os.Exit
	}
	s.exit.Store(&exit)
}

// Last returns the most recent failure.
func (s *Sink[E]) Last() (E, bool) {
	if p := s.last.Load(); p != nil {
		return *p, true
	}
	var zero E
	return zero, false
}

// Count returns how many failures were reported since creation or the last Reset.
func (s *Sink[E]) Count() uint64 {
	return s.count.Load()
}

// Reset restores the construction policy and drops the callback and the last failure.
func (s *Sink[E]) Reset() {
	s.policy.Store(int32(s.defaultPolicy))
	s.callback.Store(nil)
	s.last.Store(nil)
	s.count.Store(0)
	exit := os.Exit
	s.exit.Store(&exit)
}

// Report hands one failure to the sink. It returns false under Ignore and
// Callback, panics with err under Throw and exits under Terminate.
func (s *Sink[E]) Report(err E) bool {
	s.last.Store(&err)
	s.count.Add(1)
	policy := s.Policy()

	event := logging.Get().Error()
	if policy == Terminate {
		event = logging.Get().WithLevel(zerolog.FatalLevel)
	}
	if marshaler, ok := any(err).(zerolog.LogObjectMarshaler); ok {
		event = event.EmbedObject(marshaler)
	}
	event.Err(err).
		Str("sink", s.name).
		Stringer("policy", policy).
		Msg("failure reported")

	if s.observer != nil {
		s.observer(err)
	}
	if cb := s.callback.Load(); cb != nil {
		(*cb)(err)
	}

	switch policy {
	case Throw:
		panic(err)
	case Terminate:
		(*s.exit.Load())(1)
		return false
	default:
		return false
	}
}
