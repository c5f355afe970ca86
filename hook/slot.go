package hook

import (
	"fmt"
	"reflect"

	"github.com/a-peyrard/blackmagic/reflectutils"
)

// Category says how an argument slot may be rebound.
type Category uint8

const (
	CategoryValue Category = iota
	CategoryPointer
	CategoryReference
)

func (c Category) String() string {
	switch c {
	case CategoryValue:
		return "value"
	case CategoryPointer:
		return "pointer"
	case CategoryReference:
		return "reference"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Reference is implemented by handle types standing for a reference parameter.
type Reference interface {
	// Addr returns the referenced address as a typed pointer.
	Addr() any
	// Rebound returns a handle of the same type referencing addr.
	Rebound(addr any) Reference
}

var referenceType = reflect.TypeFor[Reference]()

func CategoryOf(typ reflect.Type) Category {
	switch {
	case typ.Kind() == reflect.Struct && typ.Implements(referenceType):
		return CategoryReference
	case typ.Kind() == reflect.Pointer:
		return CategoryPointer
	default:
		return CategoryValue
	}
}

// ArgSlot is a rebindable view over one argument of an in-flight call.
type ArgSlot struct {
	call  *Invocation
	index int
}

func (s ArgSlot) Index() int {
	return s.index
}

func (s ArgSlot) Type() reflect.Type {
	return s.call.target.ArgType(s.index)
}

func (s ArgSlot) Category() Category {
	return s.call.target.ArgCategory(s.index)
}

func (s ArgSlot) Get() reflect.Value {
	return s.call.args[s.index]
}

func (s ArgSlot) Interface() any {
	return s.call.args[s.index].Interface()
}

// Pointer returns the address held by a pointer or reference slot, as a typed pointer value.
func (s ArgSlot) Pointer() reflect.Value {
	switch s.Category() {
	case CategoryPointer:
		return s.Get()
	case CategoryReference:
		addr := s.Get().Interface().(Reference).Addr()
		if addr == nil {
			return reflect.Zero(reflect.PointerTo(s.referenceElem()))
		}
		return reflect.ValueOf(addr)
	default:
		return reflect.Value{}
	}
}

// Assign replaces the value of a value slot.
func (s ArgSlot) Assign(v any) error {
	if cat := s.Category(); cat != CategoryValue {
		return fmt.Errorf("cannot assign to %s slot %d, rebind it", cat, s.index)
	}
	return s.Set(reflect.ValueOf(v))
}

// Rebind points a pointer or reference slot at another object. Reference slots
// accept either a handle of their own type or a pointer to the referenced type.
func (s ArgSlot) Rebind(v any) error {
	switch s.Category() {
	case CategoryPointer:
		return s.Set(reflect.ValueOf(v))
	case CategoryReference:
		value := reflect.ValueOf(v)
		if value.IsValid() && value.Type() == s.Type() {
			s.call.args[s.index] = value
			return nil
		}
		if !value.IsValid() || value.Kind() != reflect.Pointer || value.Type().Elem() != s.referenceElem() {
			return fmt.Errorf("cannot rebind reference slot %d of %s to %T", s.index, s.Type(), v)
		}
		current := s.Get().Interface().(Reference)
		s.call.args[s.index] = reflect.ValueOf(current.Rebound(v))
		return nil
	default:
		return fmt.Errorf("cannot rebind value slot %d, assign it", s.index)
	}
}

// Set stores v in the slot, whatever its category, as long as it is assignable.
func (s ArgSlot) Set(v reflect.Value) error {
	coerced, err := coerce(v, s.Type())
	if err != nil {
		return fmt.Errorf("argument %d:\n\t%w", s.index, err)
	}
	s.call.args[s.index] = coerced
	return nil
}

func (s ArgSlot) referenceElem() reflect.Type {
	return reflect.TypeOf(s.call.target.zeroReference(s.index).Addr()).Elem()
}

func coerce(v reflect.Value, typ reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		if reflectutils.Nilable(typ.Kind()) {
			return reflect.Zero(typ), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", typ)
	}
	if v.Type() == typ {
		return v, nil
	}
	if v.Type().AssignableTo(typ) {
		out := reflect.New(typ).Elem()
		out.Set(v)
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), typ)
}
