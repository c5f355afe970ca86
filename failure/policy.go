// Package failure routes structured failures to a configurable policy.
//
// Both the hook and the injection layers own one Sink each. Every failure
// reaches its sink exactly once; the sink decides whether it turns into a
// false return, a panic, a callback notification or process termination.
package failure

import (
	"fmt"
	"strings"
)

type Policy int32

const (
	// Ignore logs the failure and lets the caller return false.
	Ignore Policy = iota
	// Throw panics with the failure value.
	Throw
	// Callback behaves like Ignore; the callback is the expected observer.
	Callback
	// Terminate logs at fatal level and exits the process.
	Terminate
)

func (p Policy) String() string {
	switch p {
	case Ignore:
		return "ignore"
	case Throw:
		return "throw"
	case Callback:
		return "callback"
	case Terminate:
		return "terminate"
	default:
		return fmt.Sprintf("Policy(%d)", int32(p))
	}
}

// ParsePolicy accepts the String() forms, case insensitive.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ignore":
		return Ignore, nil
	case "throw", "panic":
		return Throw, nil
	case "callback":
		return Callback, nil
	case "terminate", "exit":
		return Terminate, nil
	default:
		return Ignore, fmt.Errorf("unknown failure policy %q", raw)
	}
}
