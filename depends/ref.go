package depends

import (
	"fmt"

	"github.com/a-peyrard/blackmagic/hook"
)

// Ref stands for a reference parameter: a non-owning handle on a T living elsewhere.
type Ref[T any] struct {
	p *T
}

func RefTo[T any](p *T) Ref[T] {
	return Ref[T]{p: p}
}

// Get returns the referenced address.
func (r Ref[T]) Get() *T {
	return r.p
}

// Value returns a copy of the referenced value. It panics on a nil reference.
func (r Ref[T]) Value() T {
	if r.p == nil {
		panic(fmt.Sprintf("nil reference to %T", *new(T)))
	}
	return *r.p
}

func (r Ref[T]) IsNil() bool {
	return r.p == nil
}

func (r Ref[T]) Addr() any {
	return r.p
}

func (r Ref[T]) Rebound(addr any) hook.Reference {
	return Ref[T]{p: addr.(*T)}
}

func (r Ref[T]) String() string {
	if r.p == nil {
		return "Ref(nil)"
	}
	return fmt.Sprintf("Ref(%p)", r.p)
}
