package depends

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/logging"
)

type Status int32

const (
	StatusCreated Status = iota
	StatusEnqueued
	StatusRunning
	StatusSuspended
	StatusCompleted
	StatusFailed
)

var (
	ErrDeadlock = errors.New("scheduler drained before the task completed")
	ErrPending  = errors.New("task has not completed")

	errAbandoned = errors.New("task abandoned while suspended")
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusEnqueued:
		return "enqueued"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

type (
	// Resumable is a task the scheduler can drive.
	Resumable interface {
		Done() bool
		Status() Status
		resume(sched *Scheduler, state *State)
		markEnqueued() bool
		boundState() *State
		continueWith(c *continuation) bool
	}

	continuation struct {
		task  Resumable
		state *State
	}

	// Awaiter is handed to a task body. It carries the session the current step runs under.
	Awaiter struct {
		task    Resumable
		state   *State
		sched   *Scheduler
		yield   func(struct{}) bool
		restore func()
	}

	// Task is a lazily started coroutine producing a T.
	Task[T any] struct {
		body   func(aw *Awaiter) (T, error)
		status atomic.Int32

		mu     sync.Mutex
		result T
		err    error
		cont   *continuation
		lease  *Lease
		state  *State

		aw   *Awaiter
		next func() (struct{}, bool)
		stop func()
		done chan struct{}
	}

	PanicError struct {
		Value any
		Stack []byte
	}
)

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func NewTask[T any](body func(aw *Awaiter) (T, error)) *Task[T] {
	return &Task[T]{body: body, done: make(chan struct{})}
}

// Resolved returns a completed task holding v.
func Resolved[T any](v T) *Task[T] {
	t := &Task[T]{result: v, done: make(chan struct{})}
	t.status.Store(int32(StatusCompleted))
	close(t.done)
	return t
}

func Failed[T any](err error) *Task[T] {
	t := &Task[T]{err: err, done: make(chan struct{})}
	t.status.Store(int32(StatusFailed))
	close(t.done)
	return t
}

// Yield returns a task that completes as soon as it runs. Awaiting it lets queued work go first.
func Yield() *Task[struct{}] {
	return NewTask(func(*Awaiter) (struct{}, error) {
		return struct{}{}, nil
	})
}

func (aw *Awaiter) State() *State {
	return aw.state
}

func (aw *Awaiter) Scheduler() *Scheduler {
	return aw.sched
}

func (aw *Awaiter) activate() {
	aw.restore = Activate(aw.state)
}

func (aw *Awaiter) deactivate() {
	if aw.restore != nil {
		aw.restore()
		aw.restore = nil
	}
}

func (aw *Awaiter) suspend() {
	aw.deactivate()
	if !aw.yield(struct{}{}) {
		panic(errAbandoned)
	}
	aw.activate()
}

// Await suspends the calling task until child completes and returns its outcome.
// A child never started is enqueued with its own session, else the caller's.
func Await[T any](aw *Awaiter, child *Task[T]) (T, error) {
	if child == nil {
		var zero T
		return zero, errors.New("await on a nil task")
	}
	if !child.Done() && child.continueWith(&continuation{task: aw.task, state: aw.state}) {
		if child.Status() == StatusCreated {
			state := child.boundState()
			if state == nil {
				state = aw.state
			}
			aw.sched.Enqueue(child, state)
		}
		aw.suspend()
	}
	return child.Result()
}

// Start enqueues tasks that have not started yet so they run concurrently with the caller.
func Start(aw *Awaiter, tasks ...Resumable) {
	for _, t := range tasks {
		if t == nil || t.Status() != StatusCreated {
			continue
		}
		state := t.boundState()
		if state == nil {
			state = aw.state
		}
		aw.sched.Enqueue(t, state)
	}
}

func (t *Task[T]) Status() Status {
	return Status(t.status.Load())
}

func (t *Task[T]) Done() bool {
	s := t.Status()
	return s == StatusCompleted || s == StatusFailed
}

// Wait returns a channel closed when the task completes.
func (t *Task[T]) Wait() <-chan struct{} {
	return t.done
}

func (t *Task[T]) Result() (T, error) {
	if !t.Done() {
		var zero T
		return zero, ErrPending
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Get runs the default scheduler until the task completes.
func (t *Task[T]) Get() (T, error) {
	return t.GetOn(DefaultScheduler())
}

func (t *Task[T]) GetOn(sched *Scheduler) (T, error) {
	if t.Status() == StatusCreated {
		sched.Enqueue(t, t.boundState())
	}
	for !t.Done() {
		if !sched.RunOne() {
			var zero T
			return zero, ErrDeadlock
		}
	}
	return t.Result()
}

// taskShape builds and awaits a *Task[T] known only through its reflect.Type.
type taskShape interface {
	Resumable
	deferred(state *State, body func(aw *Awaiter) (any, error)) Resumable
	awaitAny(aw *Awaiter) (any, error)
}

var taskShapeType = reflect.TypeFor[taskShape]()

// deferred returns a new task of the receiver's type, bound to state. The receiver may be nil.
func (*Task[T]) deferred(state *State, body func(aw *Awaiter) (any, error)) Resumable {
	t := NewTask(func(aw *Awaiter) (T, error) {
		v, err := body(aw)
		out, _ := v.(T)
		return out, err
	})
	t.state = state
	return t
}

func (t *Task[T]) awaitAny(aw *Awaiter) (any, error) {
	return Await(aw, t)
}

// BindLease keeps l alive until the task completes.
func (t *Task[T]) BindLease(l *Lease) {
	t.mu.Lock()
	if t.Done() {
		t.mu.Unlock()
		releaseLease(l)
		return
	}
	t.lease = l
	if t.state == nil {
		t.state = l.State()
	}
	t.mu.Unlock()
}

func (t *Task[T]) markEnqueued() bool {
	for {
		s := t.Status()
		if s != StatusCreated && s != StatusSuspended {
			return false
		}
		if t.status.CompareAndSwap(int32(s), int32(StatusEnqueued)) {
			return true
		}
	}
}

func (t *Task[T]) boundState() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task[T]) continueWith(c *continuation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Done() {
		return false
	}
	t.cont = c
	return true
}

func (t *Task[T]) resume(sched *Scheduler, state *State) {
	if t.Done() {
		return
	}
	if t.next == nil {
		aw := &Awaiter{task: t}
		t.aw = aw
		t.next, t.stop = iter.Pull(func(yield func(struct{}) bool) {
			aw.yield = yield
			aw.activate()
			defer aw.deactivate()
			v, err := t.invoke(aw)
			t.complete(v, err)
		})
	}
	t.aw.state = state
	t.aw.sched = sched
	t.status.Store(int32(StatusRunning))

	if _, suspended := t.next(); suspended {
		t.status.CompareAndSwap(int32(StatusRunning), int32(StatusSuspended))
		return
	}
	t.stop()
	t.finish(sched, state)
}

func (t *Task[T]) invoke(aw *Awaiter) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.body(aw)
}

func (t *Task[T]) complete(v T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result, t.err = v, err
	if err != nil {
		t.status.Store(int32(StatusFailed))
		return
	}
	t.status.Store(int32(StatusCompleted))
}

// finish releases the bound lease, then resumes the awaiting task: inline when it
// runs under the same session, through the scheduler otherwise.
func (t *Task[T]) finish(sched *Scheduler, state *State) {
	t.mu.Lock()
	lease, cont := t.lease, t.cont
	t.lease, t.cont = nil, nil
	t.mu.Unlock()

	if lease != nil {
		releaseLease(lease)
	}
	close(t.done)

	if cont == nil {
		return
	}
	if cont.state == nil || cont.state == state {
		cont.task.resume(sched, state)
		return
	}
	sched.Enqueue(cont.task, cont.state)
}

func releaseLease(l *Lease) {
	if err := l.Release(); err != nil {
		logging.Get().Warn().Err(err).Msg("failed to release task lease")
	}
}
