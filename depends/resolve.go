package depends

import (
	"fmt"
	"reflect"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/a-peyrard/blackmagic/option"
)

func metricResolution(source string) {
	metrics.Default().Resolutions.WithLabelValues(source).Inc()
}

// EnsureSlot returns the slot holding T for factory, filling it when needed:
// the cached slot first, then an explicit registration (borrowed), then a
// default-constructed T (owned) when allowDefault is set. The result may be nil.
func EnsureSlot(s *State, target TargetKey, typ reflect.Type, factory FactoryKey, allowDefault, cached bool) *Slot {
	key := SlotKey{Type: typ, Factory: factory}
	if cached {
		if slot := s.Find(key); !slot.empty() {
			metricResolution("cache")
			return slot
		}
	}

	if ptr, ok := Explicit().Find(target, factory, typ); ok {
		slot := borrowedSlot(ptr)
		s.cache(key, slot)
		metricResolution("explicit")
		return slot
	}

	if !allowDefault {
		return nil
	}
	slot := ownedSlot(construct(typ))
	s.cache(key, slot)
	metricResolution("default")
	return slot
}

// applyPtrMeta turns parameter metadata into the object the call receives.
func applyPtrMeta(s *State, target TargetKey, index int, typ reflect.Type, meta ptrMeta) (reflect.Value, *InjectError) {
	key := SlotKey{Type: typ, Factory: meta.factory}

	// an explicit registration wins over whatever the maker produced
	if ptr, ok := Explicit().Find(target, meta.factory, typ); ok {
		if slot := EnsureSlot(s, target, typ, meta.factory, false, meta.cached); !slot.empty() && slot.same(ptr) {
			return slot.obj, nil
		}
		s.cache(key, borrowedSlot(ptr))
		metricResolution("explicit")
		return ptr, nil
	}

	if meta.unresolved() {
		if !meta.factory.IsZero() {
			return reflect.Value{}, newInjectError(FactoryMismatch, target, index, typ, meta.factory,
				"factory did not produce a value")
		}
		slot := EnsureSlot(s, target, typ, meta.factory, true, meta.cached)
		if slot.empty() {
			return reflect.Value{}, newInjectError(MissingDependency, target, index, typ, meta.factory,
				"no value could be resolved")
		}
		return slot.obj, nil
	}

	if meta.ptr.Type().Elem() != typ {
		return reflect.Value{}, newInjectError(TypeMismatch, target, index, typ, meta.factory,
			fmt.Sprintf("metadata holds a %s", meta.ptr.Type()))
	}
	if existing := s.Find(key); existing.same(meta.ptr) {
		return existing.obj, nil
	}
	if meta.owned {
		s.cache(key, ownedSlot(meta.ptr))
	} else {
		s.cache(key, borrowedSlot(meta.ptr))
	}
	return meta.ptr, nil
}

// paramElem returns T for a *T or Ref[T] parameter.
func paramElem(target TargetKey, index int, paramType reflect.Type) (reflect.Type, *InjectError) {
	switch hook.CategoryOf(paramType) {
	case hook.CategoryPointer:
		return paramType.Elem(), nil
	case hook.CategoryReference:
		method, ok := paramType.MethodByName("Get")
		if ok && method.Type.NumOut() == 1 && method.Type.Out(0).Kind() == reflect.Pointer {
			return method.Type.Out(0).Elem(), nil
		}
	}
	return nil, newInjectError(InvalidPlaceholder, target, index, paramType, FactoryKey{},
		"only pointer and reference parameters can be injected")
}

// adapt converts a *T into the parameter's own form.
func adapt(ptr reflect.Value, paramType reflect.Type) reflect.Value {
	if hook.CategoryOf(paramType) != hook.CategoryReference {
		return ptr
	}
	zero := reflect.Zero(paramType).Interface().(hook.Reference)
	return reflect.ValueOf(zero.Rebound(ptr.Interface()))
}

// ResolveParam resolves parameter index of target in session s and reports any failure.
// The returned value has the parameter's own type.
func ResolveParam(s *State, target TargetKey, index int, paramType reflect.Type) (reflect.Value, error) {
	v, err := resolveParam(s, target, index, paramType)
	if err != nil {
		return reflect.Value{}, fail(err)
	}
	return v, nil
}

func resolveParam(s *State, target TargetKey, index int, paramType reflect.Type) (reflect.Value, *InjectError) {
	if s == nil {
		s = CurrentState()
	}
	restore := Activate(s)
	defer restore()

	untrack, trackErr := s.track(target, index, paramType)
	if trackErr != nil {
		return reflect.Value{}, newInjectError(InternalInvariantBreak, target, index, paramType, FactoryKey{},
			"parameter re-entered its own resolution").withCause(trackErr)
	}
	defer untrack()

	elem, ierr := paramElem(target, index, paramType)
	if ierr != nil {
		return reflect.Value{}, ierr
	}

	if o, ok := lookupOps(elem); ok {
		if cell, ok := DefaultArgs().find(DefaultArgKey{Target: target, Index: index, Type: o.metaType}); ok {
			produced, err := evaluate(s, cell)
			if err != nil {
				return reflect.Value{}, makerFailure(err, target, index, elem, cell, "parameter maker failed")
			}
			ptr, ierr := applyPtrMeta(s, target, index, elem, produced.(interface{ erase() ptrMeta }).erase())
			if ierr != nil {
				return reflect.Value{}, ierr
			}
			return adapt(ptr, paramType), nil
		}
	}

	if ptr, ok := Explicit().Find(target, FactoryKey{}, elem); ok {
		s.cache(SlotKey{Type: elem}, borrowedSlot(ptr))
		metricResolution("explicit")
		return adapt(ptr, paramType), nil
	}

	if cell, ok := DefaultArgs().find(DefaultArgKey{Target: target, Index: index, Type: paramType}); ok {
		return evaluateValue(s, target, index, paramType, cell)
	}

	return reflect.Value{}, newInjectError(MissingDependency, target, index, elem, FactoryKey{},
		"no metadata registered for this parameter")
}

func evaluateValue(s *State, target TargetKey, index int, paramType reflect.Type, cell *defaultArgCell) (reflect.Value, *InjectError) {
	produced, err := evaluate(s, cell)
	if err != nil {
		return reflect.Value{}, makerFailure(err, target, index, paramType, cell, "value maker failed")
	}
	v := reflect.ValueOf(produced)
	if !v.IsValid() || IsPlaceholder(v) {
		return reflect.Value{}, newInjectError(MissingDependency, target, index, paramType, FactoryKey{},
			"value maker produced no value")
	}
	metricResolution("value")
	return v, nil
}

// makerFailure describes a failed maker, blaming the maker itself. A failure the
// maker already reported is returned as is so it reaches the sink once.
func makerFailure(err error, target TargetKey, index int, typ reflect.Type, cell *defaultArgCell, msg string) *InjectError {
	if ierr, ok := reportedCause(err); ok {
		return ierr
	}
	return newInjectError(FactoryMismatch, target, index, typ, FactoryKeyOf(cell.fn), msg).withCause(err)
}

// evaluate runs a registered maker inside an execution scope, turning its panics into errors.
func evaluate(s *State, cell *defaultArgCell) (produced any, err error) {
	leave := s.enterExecution()
	defer leave()
	defer func() {
		if r := recover(); r != nil {
			if ierr, ok := r.(*InjectError); ok {
				err = ierr
				return
			}
			err = fmt.Errorf("maker panicked: %v", r)
		}
	}()
	return cell.call(), nil
}

// Resolve returns the session's T, resolving it like a plain injected parameter.
// A nil s uses the current session.
func Resolve[T any](s *State, opts ...option.Option[Options]) (*T, error) {
	if s == nil {
		s = CurrentState()
	}
	o := option.Apply(defaultOptions, opts...)
	opsFor[T]()
	typ := reflect.TypeFor[T]()

	slot := EnsureSlot(s, o.target, typ, o.factory, o.allowDefault, o.cached)
	if slot.empty() {
		return nil, fail(newInjectError(MissingDependency, o.target, -1, typ, o.factory,
			"no value could be resolved"))
	}
	logging.Get().Trace().Stringer("type", typ).Bool("owned", slot.Owned()).Msg("resolved")
	return slot.obj.Interface().(*T), nil
}

// Provide caches v, borrowed, in the innermost scope of s. Later resolutions of T
// (partitioned by WithFactory) in that scope and its children return v.
func Provide[T any](s *State, v *T, opts ...option.Option[Options]) error {
	o := option.Apply(defaultOptions, opts...)
	opsFor[T]()
	typ := reflect.TypeFor[T]()
	if v == nil {
		return fail(newInjectError(TypeMismatch, o.target, -1, typ, o.factory, "cannot provide a nil value"))
	}
	s.cache(SlotKey{Type: typ, Factory: o.factory}, borrowedSlot(reflect.ValueOf(v)))
	return nil
}

// MustResolve panics when T cannot be resolved.
func MustResolve[T any](s *State, opts ...option.Option[Options]) *T {
	v, err := Resolve[T](s, opts...)
	if err != nil {
		panic(err)
	}
	return v
}
