package depends

import (
	"context"
	"sync"

	"github.com/a-peyrard/blackmagic/internal/contextvar"
	"github.com/a-peyrard/blackmagic/internal/goid"
)

type stateKey struct{}

var (
	active  contextvar.Var[*State]
	ambient sync.Map // goroutine id -> *State
)

// ActiveState returns the session activated on the calling goroutine, if any.
func ActiveState() (*State, bool) {
	s, ok := active.Get()
	return s, ok && s != nil
}

// CurrentState returns the active session, else the calling goroutine's ambient one,
// created on first use.
func CurrentState() *State {
	if s, ok := ActiveState(); ok {
		return s
	}
	gid := goid.Get()
	if s, ok := ambient.Load(gid); ok {
		return s.(*State)
	}
	s, _ := ambient.LoadOrStore(gid, NewState())
	return s.(*State)
}

// ClearAmbient tears down and forgets the calling goroutine's ambient session.
func ClearAmbient() error {
	s, ok := ambient.LoadAndDelete(goid.Get())
	if !ok {
		return nil
	}
	return s.(*State).Reset()
}

// Activate makes s the active session of the calling goroutine until restore is called.
// A nil s activates nothing.
func Activate(s *State) (restore func()) {
	if s == nil {
		return func() {}
	}
	return active.Set(s).Restore
}

// WithState carries s across goroutines through a context.Context.
func WithState(ctx context.Context, s *State) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stateKey{}, s)
}

func StateFrom(ctx context.Context) (*State, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(stateKey{}).(*State)
	return s, ok && s != nil
}
