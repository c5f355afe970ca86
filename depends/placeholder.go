package depends

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/a-peyrard/blackmagic/hook"
)

// typeOps holds what reflect-driven resolution needs to reach generic code for one T.
// Entries are created by the generic entry points (placeholders, makers, registrations).
type typeOps struct {
	typ           reflect.Type
	ptrSentinel   reflect.Value // *T, returned by Ptr[T]
	refSentinel   reflect.Value // *T, wrapped by RefOf[T]
	metaType      reflect.Type  // DependsPtrValue[T]
	asyncMetaType reflect.Type  // *Task[DependsPtrValue[T]]
	awaitMeta     func(aw *Awaiter, task any) (ptrMeta, error)
}

// sentinel is never read. The trailing byte keeps the cell address unique even for empty T.
type sentinel[T any] struct {
	v T
	_ byte
}

var ops sync.Map // reflect.Type -> *typeOps

func opsFor[T any]() *typeOps {
	typ := reflect.TypeFor[T]()
	if existing, ok := ops.Load(typ); ok {
		return existing.(*typeOps)
	}
	built := &typeOps{
		typ:           typ,
		ptrSentinel:   reflect.ValueOf(&new(sentinel[T]).v),
		refSentinel:   reflect.ValueOf(&new(sentinel[T]).v),
		metaType:      reflect.TypeFor[DependsPtrValue[T]](),
		asyncMetaType: reflect.TypeFor[*Task[DependsPtrValue[T]]](),
		awaitMeta: func(aw *Awaiter, task any) (ptrMeta, error) {
			meta, err := Await(aw, task.(*Task[DependsPtrValue[T]]))
			if err != nil {
				return ptrMeta{}, err
			}
			return meta.erase(), nil
		},
	}
	actual, _ := ops.LoadOrStore(typ, built)
	return actual.(*typeOps)
}

func lookupOps(typ reflect.Type) (*typeOps, bool) {
	existing, ok := ops.Load(typ)
	if !ok {
		return nil, false
	}
	return existing.(*typeOps), true
}

// placeholderable reports whether a placeholder can stand for T. Interfaces, funcs,
// channels and unsafe pointers have no usable default instance.
func placeholderable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return false
	default:
		return true
	}
}

func checkPlaceholder[T any]() {
	typ := reflect.TypeFor[T]()
	if placeholderable(typ) {
		return
	}
	err := newInjectError(InvalidPlaceholder, 0, -1, typ, FactoryKey{},
		fmt.Sprintf("no placeholder can stand for %s", typ))
	report(err)
	panic(err)
}

// Ptr returns the pointer placeholder of T: a stable address that is never dereferenced.
func Ptr[T any]() *T {
	checkPlaceholder[T]()
	return opsFor[T]().ptrSentinel.Interface().(*T)
}

// RefOf returns the reference placeholder of T.
func RefOf[T any]() Ref[T] {
	checkPlaceholder[T]()
	return Ref[T]{p: opsFor[T]().refSentinel.Interface().(*T)}
}

// Value returns the zero T. Values are never placeholders.
func Value[T any]() T {
	var zero T
	return zero
}

// IsPtrPlaceholder reports whether p is the pointer placeholder of T.
func IsPtrPlaceholder[T any](p *T) bool {
	return p != nil && p == opsFor[T]().ptrSentinel.Interface().(*T)
}

func IsRefPlaceholder[T any](r Ref[T]) bool {
	return r.p != nil && r.p == opsFor[T]().refSentinel.Interface().(*T)
}

// IsPlaceholder detects placeholders by address identity on pointer and reference values.
func IsPlaceholder(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch hook.CategoryOf(v.Type()) {
	case hook.CategoryPointer:
		if v.IsNil() {
			return false
		}
		o, ok := lookupOps(v.Type().Elem())
		return ok && v.Pointer() == o.ptrSentinel.Pointer()
	case hook.CategoryReference:
		addr := reflect.ValueOf(v.Interface().(hook.Reference).Addr())
		if !addr.IsValid() || addr.Kind() != reflect.Pointer || addr.IsNil() {
			return false
		}
		o, ok := lookupOps(addr.Type().Elem())
		return ok && addr.Pointer() == o.refSentinel.Pointer()
	default:
		return false
	}
}

// isPointerSentinel reports whether ptr (a *T value) is the pointer placeholder of T.
func isPointerSentinel(ptr reflect.Value) bool {
	if !ptr.IsValid() || ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return false
	}
	o, ok := lookupOps(ptr.Type().Elem())
	return ok && ptr.Pointer() == o.ptrSentinel.Pointer()
}
