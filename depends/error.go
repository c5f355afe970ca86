package depends

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/a-peyrard/blackmagic/failure"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/rs/zerolog"
)

type ErrorCode int

const (
	MissingDependency ErrorCode = iota + 1
	TypeMismatch
	FactoryMismatch
	InvalidPlaceholder
	InternalInvariantBreak
)

var (
	ErrMissingDependency      = errors.New("missing dependency")
	ErrTypeMismatch           = errors.New("type mismatch")
	ErrFactoryMismatch        = errors.New("factory mismatch")
	ErrInvalidPlaceholder     = errors.New("invalid placeholder")
	ErrInternalInvariantBreak = errors.New("internal invariant break")
)

func (c ErrorCode) String() string {
	switch c {
	case MissingDependency:
		return "MissingDependency"
	case TypeMismatch:
		return "TypeMismatch"
	case FactoryMismatch:
		return "FactoryMismatch"
	case InvalidPlaceholder:
		return "InvalidPlaceholder"
	case InternalInvariantBreak:
		return "InternalInvariantBreak"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func (c ErrorCode) sentinel() error {
	switch c {
	case MissingDependency:
		return ErrMissingDependency
	case TypeMismatch:
		return ErrTypeMismatch
	case FactoryMismatch:
		return ErrFactoryMismatch
	case InvalidPlaceholder:
		return ErrInvalidPlaceholder
	case InternalInvariantBreak:
		return ErrInternalInvariantBreak
	default:
		return nil
	}
}

// InjectError is the structured record of one resolution failure.
// Index is -1 when the failure is not tied to a parameter.
type InjectError struct {
	Code    ErrorCode
	Target  TargetKey
	Index   int
	Type    reflect.Type
	Factory FactoryKey
	Message string
	Cause   error

	reported bool
}

func newInjectError(code ErrorCode, target TargetKey, index int, typ reflect.Type, factory FactoryKey, msg string) *InjectError {
	return &InjectError{
		Code:    code,
		Target:  target,
		Index:   index,
		Type:    typ,
		Factory: factory,
		Message: msg,
	}
}

func (e *InjectError) withCause(cause error) *InjectError {
	e.Cause = cause
	return e
}

func (e *InjectError) typeName() string {
	if e.Type == nil {
		return "<nil>"
	}
	return e.Type.String()
}

func (e *InjectError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (target=%s", e.Code, e.Message, e.Target)
	if e.Index >= 0 {
		fmt.Fprintf(&b, ", index=%d", e.Index)
	}
	fmt.Fprintf(&b, ", type=%s", e.typeName())
	if !e.Factory.IsZero() {
		fmt.Fprintf(&b, ", factory=%s", e.Factory)
	}
	b.WriteString(")")
	if e.Cause != nil {
		fmt.Fprintf(&b, ":\n\t%v", e.Cause)
	}
	return b.String()
}

func (e *InjectError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Code.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func (e *InjectError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("code", e.Code).
		Stringer("target", e.Target).
		Int("index", e.Index).
		Str("type", e.typeName())
	if !e.Factory.IsZero() {
		ev.Stringer("factory", e.Factory)
	}
}

var failures = failure.NewSink[*InjectError](
	"inject",
	failure.Throw,
	failure.WithObserver[*InjectError](func(e *InjectError) {
		metrics.Default().Failures.WithLabelValues("inject", e.Code.String()).Inc()
	}),
)

// Failures returns the sink receiving every injection failure. Its default policy is failure.Throw.
func Failures() *failure.Sink[*InjectError] {
	return failures
}

// fail reports err once and returns it for callers that continue under Ignore or Callback.
func fail(err *InjectError) error {
	report(err)
	return err
}

// report hands err to the sink the first time only. Under Throw a failure seen
// again is thrown again, so it keeps unwinding past whoever recovered it.
func report(err *InjectError) {
	if err.reported {
		if failures.Policy() == failure.Throw {
			panic(err)
		}
		return
	}
	err.reported = true
	failures.Report(err)
}

// reportedCause returns the failure carried by err when it already reached the sink.
func reportedCause(err error) (*InjectError, bool) {
	var ierr *InjectError
	if errors.As(err, &ierr) && ierr.reported {
		return ierr, true
	}
	return nil, false
}
