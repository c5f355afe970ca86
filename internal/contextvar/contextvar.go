// Package contextvar provides goroutine-scoped variables with restore tokens.
//
// A Var holds at most one value per goroutine. Set returns a Token that puts
// back whatever the goroutine held before, so nested activations unwind in
// any order their owners choose.
package contextvar

import (
	"sync"

	"github.com/a-peyrard/blackmagic/internal/goid"
)

type Var[T any] struct {
	slots sync.Map // int64 -> T
}

// Token restores the previous value of a Var for the goroutine that called Set.
type Token[T any] struct {
	owner   *Var[T]
	gid     int64
	prev    T
	hadPrev bool
	active  bool
}

// Get returns the value bound to the calling goroutine.
func (v *Var[T]) Get() (T, bool) {
	raw, ok := v.slots.Load(goid.Get())
	if !ok {
		var zero T
		return zero, false
	}
	return raw.(T), true
}

// Set binds val to the calling goroutine.
func (v *Var[T]) Set(val T) *Token[T] {
	gid := goid.Get()
	prev, hadPrev := v.slots.Swap(gid, val)
	tok := &Token[T]{owner: v, gid: gid, hadPrev: hadPrev, active: true}
	if hadPrev {
		tok.prev = prev.(T)
	}
	return tok
}

// Clear drops the value bound to the calling goroutine.
func (v *Var[T]) Clear() {
	v.slots.Delete(goid.Get())
}

// Restore is idempotent. A nil token is a no-op.
func (t *Token[T]) Restore() {
	if t == nil || !t.active {
		return
	}
	t.active = false
	if t.hadPrev {
		t.owner.slots.Store(t.gid, t.prev)
		return
	}
	t.owner.slots.Delete(t.gid)
}
