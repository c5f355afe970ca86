package depends

import (
	"reflect"
	"sync"
)

// Override is a scoped explicit registration. Restore puts back what it replaced.
type Override struct {
	once     sync.Once
	target   TargetKey
	factory  FactoryKey
	typ      reflect.Type
	previous reflect.Value
	existed  bool
}

// InjectDependency registers value, a *T or a Ref[T], for target and factory.
// A nil target applies to every target; a nil factory means no factory. Both accept
// the function itself or its key.
func InjectDependency(target, factory, value any) error {
	if err := Explicit().Register(targetKeyFrom(target), factoryKeyFrom(factory), value); err != nil {
		return fail(err.(*InjectError))
	}
	return nil
}

func InjectValue[T any](target, factory any, v *T) error {
	return InjectDependency(target, factory, v)
}

func RemoveDependency(target, factory any, typ reflect.Type) bool {
	return Explicit().Remove(targetKeyFrom(target), factoryKeyFrom(factory), typ)
}

func RemoveValue[T any](target, factory any) bool {
	return RemoveDependency(target, factory, reflect.TypeFor[T]())
}

// ClearDependencies drops the registrations made for exactly this target.
func ClearDependencies(target any) int {
	return Explicit().ClearForTarget(targetKeyFrom(target))
}

func ClearAllDependencies() int {
	return Explicit().Clear()
}

// ScopeOverride registers value until the returned override is restored.
func ScopeOverride(target, factory, value any) (*Override, error) {
	ptr, ok := borrowedPointer(value)
	if !ok {
		return nil, InjectDependency(target, factory, value)
	}
	o := &Override{
		target:  targetKeyFrom(target),
		factory: factoryKeyFrom(factory),
		typ:     ptr.Type().Elem(),
	}
	o.previous, o.existed = Explicit().FindExact(o.target, o.factory, o.typ)
	if err := InjectDependency(target, factory, value); err != nil {
		return nil, err
	}
	return o, nil
}

func OverrideValue[T any](target, factory any, v *T) (*Override, error) {
	return ScopeOverride(target, factory, v)
}

// Restore is idempotent.
func (o *Override) Restore() {
	o.once.Do(func() {
		if o.existed {
			_ = Explicit().Register(o.target, o.factory, o.previous.Interface())
			return
		}
		Explicit().Remove(o.target, o.factory, o.typ)
	})
}
