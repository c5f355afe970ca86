package reflectutils

import (
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var pointerFree sync.Map // reflect.Type -> bool

// HasPointers reports whether values of typ hold anything the garbage collector must trace.
// Such values must never be stored in raw byte buffers.
func HasPointers(typ reflect.Type) bool {
	if cached, ok := pointerFree.Load(typ); ok {
		return !cached.(bool)
	}
	has := hasPointers(typ)
	pointerFree.Store(typ, !has)
	return has
}

func hasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return typ.Len() > 0 && hasPointers(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if hasPointers(typ.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Nilable reports whether a value of kind k can be nil.
func Nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// FuncName returns the short qualified name of a function value ("pkg.Func"), or "" when it is not a function.
func FuncName(fnValue reflect.Value) string {
	if fnValue.Kind() != reflect.Func || fnValue.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(fnValue.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// FuncNameAt is FuncName for a raw code address.
func FuncNameAt(pc uintptr) string {
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
