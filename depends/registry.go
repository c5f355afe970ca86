package depends

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/a-peyrard/blackmagic/hook"
)

type (
	explicitKey struct {
		target  TargetKey
		factory FactoryKey
		typ     reflect.Type
	}

	// ExplicitRegistry maps {target, factory, type} to a borrowed object.
	ExplicitRegistry struct {
		mu     sync.RWMutex
		values map[explicitKey]reflect.Value // *T
	}

	DefaultArgKey struct {
		Target TargetKey
		Index  int
		Type   reflect.Type
	}

	// defaultArgCell is shared by pointer so a lookup keeps working after a re-registration.
	defaultArgCell struct {
		fn   any
		call func() any
	}

	// DefaultArgRegistry maps {target, parameter index, metadata type} to a value-producing closure.
	DefaultArgRegistry struct {
		mu    sync.RWMutex
		cells map[DefaultArgKey]*defaultArgCell
	}
)

var (
	defaultExplicit    = NewExplicitRegistry()
	defaultDefaultArgs = NewDefaultArgRegistry()
)

func NewExplicitRegistry() *ExplicitRegistry {
	return &ExplicitRegistry{values: make(map[explicitKey]reflect.Value)}
}

func Explicit() *ExplicitRegistry {
	return defaultExplicit
}

// borrowedPointer accepts a non-nil *T or a non-nil Ref[T] and returns the *T.
func borrowedPointer(value any) (reflect.Value, bool) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	switch hook.CategoryOf(v.Type()) {
	case hook.CategoryPointer:
		if v.IsNil() {
			return reflect.Value{}, false
		}
		return v, true
	case hook.CategoryReference:
		ptr := reflect.ValueOf(v.Interface().(hook.Reference).Addr())
		if !ptr.IsValid() || ptr.IsNil() {
			return reflect.Value{}, false
		}
		return ptr, true
	default:
		return reflect.Value{}, false
	}
}

// Register stores value, a *T or a Ref[T], for the raw type T. Last write wins.
func (r *ExplicitRegistry) Register(target TargetKey, factory FactoryKey, value any) error {
	ptr, ok := borrowedPointer(value)
	if !ok {
		return newInjectError(TypeMismatch, target, -1, reflect.TypeOf(value), factory,
			fmt.Sprintf("explicit values must be a non-nil pointer or reference, got %T", value))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[explicitKey{target: target, factory: factory, typ: ptr.Type().Elem()}] = ptr
	return nil
}

// Find tries the exact key, then the same factory for every target. A lookup
// never falls back from a factory to the factory-less registration.
func (r *ExplicitRegistry) Find(target TargetKey, factory FactoryKey, typ reflect.Type) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.values[explicitKey{target: target, factory: factory, typ: typ}]; ok {
		return v, true
	}
	if target != AnyTarget {
		if v, ok := r.values[explicitKey{target: AnyTarget, factory: factory, typ: typ}]; ok {
			return v, true
		}
	}
	return reflect.Value{}, false
}

func (r *ExplicitRegistry) FindExact(target TargetKey, factory FactoryKey, typ reflect.Type) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[explicitKey{target: target, factory: factory, typ: typ}]
	return v, ok
}

func (r *ExplicitRegistry) Remove(target TargetKey, factory FactoryKey, typ reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := explicitKey{target: target, factory: factory, typ: typ}
	if _, ok := r.values[key]; !ok {
		return false
	}
	delete(r.values, key)
	return true
}

// Clear drops every registration and returns how many there were.
func (r *ExplicitRegistry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.values)
	clear(r.values)
	return n
}

// ClearForTarget drops the registrations made for exactly this target.
func (r *ExplicitRegistry) ClearForTarget(target TargetKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.values {
		if key.target == target {
			delete(r.values, key)
			n++
		}
	}
	return n
}

func (r *ExplicitRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

func NewDefaultArgRegistry() *DefaultArgRegistry {
	return &DefaultArgRegistry{cells: make(map[DefaultArgKey]*defaultArgCell)}
}

func DefaultArgs() *DefaultArgRegistry {
	return defaultDefaultArgs
}

func (r *DefaultArgRegistry) register(key DefaultArgKey, fn any, call func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells[key] = &defaultArgCell{fn: fn, call: call}
}

// find is an exact-key lookup.
func (r *DefaultArgRegistry) find(key DefaultArgKey) (*defaultArgCell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cell, ok := r.cells[key]
	return cell, ok
}

func (r *DefaultArgRegistry) Contains(key DefaultArgKey) bool {
	_, ok := r.find(key)
	return ok
}

func (r *DefaultArgRegistry) Remove(key DefaultArgKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cells[key]; !ok {
		return false
	}
	delete(r.cells, key)
	return true
}

// ClearForTarget drops every registration of target and returns how many there were.
func (r *DefaultArgRegistry) ClearForTarget(target TargetKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.cells {
		if key.Target == target {
			delete(r.cells, key)
			n++
		}
	}
	return n
}

// RegisterDefaultArg registers the closure producing a U for {target, index}. Last registration wins.
func RegisterDefaultArg[U any](r *DefaultArgRegistry, target TargetKey, index int, fn func() U) {
	r.register(DefaultArgKey{Target: target, Index: index, Type: reflect.TypeFor[U]()}, fn, func() any {
		return fn()
	})
}

func FindDefaultArg[U any](r *DefaultArgRegistry, target TargetKey, index int) (func() U, bool) {
	cell, ok := r.find(DefaultArgKey{Target: target, Index: index, Type: reflect.TypeFor[U]()})
	if !ok {
		return nil, false
	}
	return cell.fn.(func() U), true
}
