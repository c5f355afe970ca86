package reflectutils

import (
	"iter"
	"reflect"
	"slices"
	"strings"

	"github.com/a-peyrard/blackmagic/fn"
)

// Field is one value met by Fields: the root itself, or an exported field at Path.
type Field struct {
	Value reflect.Value
	Path  []string
}

func (f Field) Type() reflect.Type {
	return f.Value.Type()
}

// Name is the dotted path of the field, empty for the root.
func (f Field) Name() string {
	return strings.Join(f.Path, ".")
}

// Fields yields root and then its exported fields, depth first. A field is
// dereferenced only after the loop body saw it, so allocating a nil struct
// pointer from the body makes its own fields part of the walk.
func Fields(root any) iter.Seq[Field] {
	return func(yield func(Field) bool) {
		walk(reflect.ValueOf(root), nil, yield)
	}
}

func walk(val reflect.Value, path []string, yield func(Field) bool) bool {
	if !val.IsValid() {
		return true
	}
	if !yield(Field{Value: val, Path: path}) {
		return false
	}

	val = Deref(val)
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return true
	}
	typ := val.Type()
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		if !walk(val.Field(i), append(slices.Clip(path), sf.Name), yield) {
			return false
		}
	}
	return true
}

// WalkStruct runs every visitor, in order, on each field yielded by Fields.
func WalkStruct(root any, visitors ...fn.Consumer[Field]) {
	visit := fn.AllConsumer(visitors...)
	for field := range Fields(root) {
		visit(field)
	}
}

// Deref follows pointers and interfaces until it reaches a concrete value, or an invalid one for nil.
func Deref(value reflect.Value) reflect.Value {
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		value = value.Elem()
	}
	return value
}

// AllocNilStruct points a settable nil struct pointer at a fresh zero struct.
func AllocNilStruct(field Field) {
	v := field.Value
	if v.Kind() != reflect.Pointer || !v.IsNil() || !v.CanSet() {
		return
	}
	if elem := v.Type().Elem(); elem.Kind() == reflect.Struct {
		v.Set(reflect.New(elem))
	}
}
