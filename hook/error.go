package hook

import (
	"errors"
	"fmt"

	"github.com/a-peyrard/blackmagic/failure"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/rs/zerolog"
)

type ErrorCode int

const (
	InvalidInstallArgument ErrorCode = iota + 1
	CreateHookFailed
	EnableHookFailed
)

var (
	ErrInvalidInstallArgument = errors.New("invalid install argument")
	ErrCreateHookFailed       = errors.New("create hook failed")
	ErrEnableHookFailed       = errors.New("enable hook failed")
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidInstallArgument:
		return "InvalidInstallArgument"
	case CreateHookFailed:
		return "CreateHookFailed"
	case EnableHookFailed:
		return "EnableHookFailed"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func (c ErrorCode) sentinel() error {
	switch c {
	case InvalidInstallArgument:
		return ErrInvalidInstallArgument
	case CreateHookFailed:
		return ErrCreateHookFailed
	case EnableHookFailed:
		return ErrEnableHookFailed
	default:
		return nil
	}
}

// HookError is the structured record of one install-time failure.
type HookError struct {
	Code    ErrorCode
	Target  string
	Addr    uintptr
	Message string
	Cause   error
}

func newHookError(code ErrorCode, target *Target, msg string, cause error) *HookError {
	e := &HookError{Code: code, Message: msg, Cause: cause}
	if target != nil {
		e.Target = target.name
		e.Addr = target.addr
	}
	return e
}

func (e *HookError) Error() string {
	target := e.Target
	if target == "" {
		target = "<nil target>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s for %s: %s:\n\t%v", e.Code, target, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s for %s: %s", e.Code, target, e.Message)
}

func (e *HookError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Code.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func (e *HookError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("code", e.Code).
		Str("target", e.Target).
		Str("addr", fmt.Sprintf("%#x", e.Addr))
}

var failures = failure.NewSink[*HookError](
	"hook",
	failure.Ignore,
	failure.WithObserver[*HookError](func(e *HookError) {
		metrics.Default().Failures.WithLabelValues("hook", e.Code.String()).Inc()
	}),
)

// Failures returns the sink receiving every hook failure. Its default policy is failure.Ignore.
func Failures() *failure.Sink[*HookError] {
	return failures
}

func report(code ErrorCode, target *Target, msg string, cause error) bool {
	return failures.Report(newHookError(code, target, msg, cause))
}
