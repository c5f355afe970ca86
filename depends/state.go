package depends

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/google/uuid"
)

// State is one dependency-resolution session: a root scope, the stack of active
// scopes (never empty) and the counters driving nested calls and factory execution.
type State struct {
	mu        sync.Mutex
	id        uuid.UUID
	root      *Context
	stack     []*Context
	callDepth int
	execDepth int
	tracker   *tracker

	refs   atomic.Int32
	pooled bool
}

var reusable = sync.Pool{
	New: func() any {
		s := NewState()
		s.pooled = true
		return s
	},
}

func NewState() *State {
	root := newContext(nil)
	return &State{
		id:      uuid.New(),
		root:    root,
		stack:   []*Context{root},
		tracker: newTracker(),
	}
}

// acquireTopLevel returns an isolated session, reusing a pooled one when no other owner holds it.
func acquireTopLevel() *State {
	s := reusable.Get().(*State)
	if s.refs.Load() != 0 {
		s = NewState()
		s.pooled = true
		metrics.Default().Sessions.WithLabelValues("fresh").Inc()
		return s
	}
	if err := s.Reset(); err != nil {
		logging.Get().Warn().Err(err).Msg("failed to reset a pooled session")
	}
	metrics.Default().Sessions.WithLabelValues("pooled").Inc()
	return s
}

func (s *State) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *State) Root() *Context {
	return s.root
}

// Current returns the innermost active scope.
func (s *State) Current() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.top()
}

// Depth is the number of scopes on the stack, root included.
func (s *State) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

func (s *State) CallDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callDepth
}

// Executing reports whether factories run when metadata is built.
func (s *State) Executing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execDepth > 0
}

// Reset tears every scope down and returns the session to a fresh root with a new ID.
func (s *State) Reset() error {
	s.mu.Lock()
	var owned []*holder
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] != s.root {
			owned = append(owned, s.stack[i].detach()...)
		}
	}
	owned = append(owned, s.root.detach()...)
	s.root.parent = nil
	s.stack = append(s.stack[:0], s.root)
	s.callDepth = 0
	s.execDepth = 0
	s.tracker.reset()
	s.id = uuid.New()
	s.mu.Unlock()

	return releaseAll(owned)
}

func (s *State) retain() {
	s.refs.Add(1)
}

// release drops one owner. A pooled session with no owner left goes back to the pool.
func (s *State) release() {
	if s.refs.Add(-1) != 0 || !s.pooled {
		return
	}
	if err := s.Reset(); err != nil {
		logging.Get().Warn().Err(err).Msg("failed to tear down a session")
	}
	reusable.Put(s)
}

func (s *State) top() *Context {
	return s.stack[len(s.stack)-1]
}

// enterExecution lets makers invoke their factories until the returned function is called.
func (s *State) enterExecution() func() {
	s.mu.Lock()
	s.execDepth++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.execDepth > 0 {
			s.execDepth--
		}
	}
}

// Find searches the active scope chain, innermost first.
func (s *State) Find(key SlotKey) *Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.top().find(key)
}

// cache stores slot in the innermost scope.
func (s *State) cache(key SlotKey, slot *Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().upsert(key, slot)
}

func (s *State) track(target TargetKey, index int, typ reflect.Type) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tracker.push(resolutionKey{target: target, index: index, typ: typ}); err != nil {
		return nil, err
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tracker.pop()
	}, nil
}
