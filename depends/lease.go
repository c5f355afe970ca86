package depends

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/metrics"
)

var ErrLeaseReleased = errors.New("lease already released")

type (
	// Lease pins one scope on a session's stack. Releasing it pops the scope,
	// tears it down and drops the session ownership it held.
	Lease struct {
		mu         sync.Mutex
		state      *State
		local      *Context
		trackDepth bool
		active     bool
	}

	// LeaseHandle shares one lease between several owners.
	LeaseHandle struct {
		lease *Lease
		refs  atomic.Int32
	}

	// LeaseBinder is implemented by results that keep the call's scope alive,
	// typically a pending task.
	LeaseBinder interface {
		BindLease(l *Lease)
	}

	LeaseHandleBinder interface {
		BindLeaseHandle(h *LeaseHandle)
	}

	// InjectContextSetter receives the call's scope through a shared handle.
	InjectContextSetter interface {
		SetInjectContext(h *LeaseHandle)
	}

	// ContextScope is a user-visible scope bound to a session.
	ContextScope struct {
		lease *Lease
	}
)

func newLease(s *State, trackDepth bool) *Lease {
	s.retain()

	s.mu.Lock()
	local := newContext(s.top())
	s.stack = append(s.stack, local)
	if trackDepth {
		s.callDepth++
	}
	s.mu.Unlock()

	return &Lease{state: s, local: local, trackDepth: trackDepth, active: true}
}

// AcquireCallLease opens the scope of one injected call. Inside another injected call
// the caller's session is reused; otherwise the call gets an isolated top-level session.
func AcquireCallLease(s *State) *Lease {
	if s == nil {
		s, _ = ActiveState()
	}
	if s != nil && s.CallDepth() > 0 {
		metrics.Default().Sessions.WithLabelValues("nested").Inc()
		return newLease(s, true)
	}
	return newLease(acquireTopLevel(), true)
}

// JoinCallLease opens the scope of one injected call inside s even when no call is
// in flight, so a session built with NewState can be shared by several top-level calls.
func JoinCallLease(s *State) *Lease {
	metrics.Default().Sessions.WithLabelValues("joined").Inc()
	return newLease(s, true)
}

// NewLease pushes a scope on s without counting it as an injected call.
func NewLease(s *State) *Lease {
	return newLease(s, false)
}

func (l *Lease) State() *State {
	return l.state
}

func (l *Lease) Context() *Context {
	return l.local
}

func (l *Lease) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Release is idempotent. Scopes may be released out of order: the lease removes
// its own scope wherever it sits on the stack.
func (l *Lease) Release() error {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return nil
	}
	l.active = false
	l.mu.Unlock()

	s := l.state
	s.mu.Lock()
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == l.local {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			break
		}
	}
	if len(s.stack) == 0 {
		s.stack = append(s.stack, s.root)
	}
	if l.trackDepth && s.callDepth > 0 {
		s.callDepth--
	}
	owned := l.local.detach()
	s.mu.Unlock()

	err := releaseAll(owned)
	s.release()
	return err
}

func NewLeaseHandle(l *Lease) *LeaseHandle {
	h := &LeaseHandle{lease: l}
	h.refs.Store(1)
	return h
}

func (h *LeaseHandle) Retain() *LeaseHandle {
	h.refs.Add(1)
	return h
}

// Release drops one owner. The last one releases the lease.
func (h *LeaseHandle) Release() error {
	n := h.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		return ErrLeaseReleased
	default:
		return h.lease.Release()
	}
}

func (h *LeaseHandle) Lease() *Lease {
	return h.lease
}

func (h *LeaseHandle) State() *State {
	return h.lease.state
}

// bindLease hands l to result when it knows how to keep it. The first matching adapter wins.
func bindLease(result reflect.Value, l *Lease) bool {
	if !result.IsValid() {
		return false
	}
	switch result.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if result.IsNil() {
			return false
		}
	}
	if !result.CanInterface() {
		return false
	}
	switch r := result.Interface().(type) {
	case LeaseBinder:
		r.BindLease(l)
	case LeaseHandleBinder:
		r.BindLeaseHandle(NewLeaseHandle(l))
	case InjectContextSetter:
		r.SetInjectContext(NewLeaseHandle(l))
	default:
		return false
	}
	return true
}

// NewContextScope opens a scope on s, or on the current session when s is nil.
func NewContextScope(s *State) *ContextScope {
	if s == nil {
		s = CurrentState()
	}
	return &ContextScope{lease: NewLease(s)}
}

func (c *ContextScope) State() *State {
	return c.lease.state
}

func (c *ContextScope) Context() *Context {
	return c.lease.local
}

func (c *ContextScope) Close() error {
	return c.lease.Release()
}
