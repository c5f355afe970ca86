package depends

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/config"
)

type (
	// SlotKey identifies one cached dependency inside a scope.
	SlotKey struct {
		Type    reflect.Type
		Factory FactoryKey
	}

	// Slot is one cached object. A slot with a holder owns its object and closes it
	// at scope teardown; a slot without one only borrows it.
	Slot struct {
		obj    reflect.Value // *T
		holder *holder
	}

	holder struct {
		obj    reflect.Value
		closed atomic.Bool
	}

	// Context is one scope level. Lookups walk the parent chain up to the root.
	Context struct {
		parent  *Context
		slots   map[SlotKey]*Slot
		retired []*holder
	}
)

func (k SlotKey) String() string {
	if k.Factory.IsZero() {
		return k.Type.String()
	}
	return fmt.Sprintf("%s[%s]", k.Type, k.Factory)
}

func ownedSlot(obj reflect.Value) *Slot {
	return &Slot{obj: obj, holder: &holder{obj: obj}}
}

func borrowedSlot(obj reflect.Value) *Slot {
	return &Slot{obj: obj}
}

// Object returns the cached *T.
func (s *Slot) Object() reflect.Value {
	return s.obj
}

func (s *Slot) Owned() bool {
	return s.holder != nil
}

func (s *Slot) empty() bool {
	return s == nil || !s.obj.IsValid() || s.obj.IsNil()
}

func (s *Slot) same(obj reflect.Value) bool {
	return !s.empty() && obj.IsValid() && !obj.IsNil() && s.obj.Pointer() == obj.Pointer()
}

// release closes the object once when it implements io.Closer.
func (h *holder) release() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := h.obj.Interface().(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s:\n\t%w", h.obj.Type(), err)
		}
	}
	return nil
}

func newContext(parent *Context) *Context {
	return &Context{parent: parent}
}

func (c *Context) Parent() *Context {
	return c.parent
}

func (c *Context) Len() int {
	return len(c.slots)
}

// Lookup searches this scope only.
func (c *Context) Lookup(key SlotKey) (*Slot, bool) {
	slot, ok := c.slots[key]
	return slot, ok
}

func (c *Context) find(key SlotKey) *Slot {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if slot, ok := ctx.slots[key]; ok {
			return slot
		}
	}
	return nil
}

// upsert stores slot under key. A replaced owned object stays owned by the scope
// until teardown, unless the new slot holds the same object and takes over its holder.
func (c *Context) upsert(key SlotKey, slot *Slot) {
	if c.slots == nil {
		c.slots = make(map[SlotKey]*Slot)
	}
	previous := c.slots[key]
	c.slots[key] = slot
	if previous == nil || previous.holder == nil {
		return
	}
	if previous.same(slot.obj) {
		if slot.holder == nil {
			slot.holder = previous.holder
		}
		return
	}
	c.retired = append(c.retired, previous.holder)
}

// detach empties the scope and returns the holders it owned.
func (c *Context) detach() []*holder {
	owned := c.retired
	c.retired = nil
	for _, slot := range c.slots {
		if slot.holder != nil {
			owned = append(owned, slot.holder)
		}
	}
	clear(c.slots)
	return owned
}

func releaseAll(owned []*holder) error {
	var errs []error
	for _, h := range owned {
		if err := h.release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// construct default-constructs a T and applies its defaults.
func construct(typ reflect.Type) reflect.Value {
	ptr := reflect.New(typ)
	config.ApplyDefaults(ptr)
	return ptr
}
