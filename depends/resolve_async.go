package depends

import (
	"reflect"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
)

// ResolveParamAsync resolves parameter index of target as a task running under s.
// Without async metadata it uses the sync metadata when there is some, else a
// default-constructed T.
// Failures are reported when the task completes.
func ResolveParamAsync(s *State, target TargetKey, index int, paramType reflect.Type) *Task[reflect.Value] {
	if s == nil {
		s = CurrentState()
	}
	t := NewTask(func(aw *Awaiter) (reflect.Value, error) {
		v, ierr := resolveParamAsync(aw, s, target, index, paramType)
		if ierr != nil {
			return reflect.Value{}, fail(ierr)
		}
		return v, nil
	})
	t.state = s
	return t
}

func resolveParamAsync(aw *Awaiter, s *State, target TargetKey, index int, paramType reflect.Type) (reflect.Value, *InjectError) {
	elem, ierr := paramElem(target, index, paramType)
	if ierr != nil {
		return reflect.Value{}, ierr
	}

	o, ok := lookupOps(elem)
	if ok {
		if cell, found := DefaultArgs().find(DefaultArgKey{Target: target, Index: index, Type: o.asyncMetaType}); found {
			pending, err := evaluate(s, cell)
			if err != nil {
				return reflect.Value{}, makerFailure(err, target, index, elem, cell, "parameter maker failed")
			}
			meta, err := o.awaitMeta(aw, pending)
			if err != nil {
				return reflect.Value{}, makerFailure(err, target, index, elem, cell, "async factory failed")
			}
			ptr, ierr := applyPtrMeta(s, target, index, elem, meta)
			if ierr != nil {
				return reflect.Value{}, ierr
			}
			return adapt(ptr, paramType), nil
		}
	}

	if hasSyncMetadata(target, index, paramType, o) {
		return resolveParam(s, target, index, paramType)
	}

	metrics.Default().AsyncFallbacks.Inc()
	logging.Get().Debug().
		Stringer("target", target).
		Int("index", index).
		Stringer("type", elem).
		Msg("no async metadata, resolving by default construction")
	slot := EnsureSlot(s, target, elem, FactoryKey{}, true, true)
	return adapt(slot.obj, paramType), nil
}

func hasSyncMetadata(target TargetKey, index int, paramType reflect.Type, o *typeOps) bool {
	if o != nil && DefaultArgs().Contains(DefaultArgKey{Target: target, Index: index, Type: o.metaType}) {
		return true
	}
	return DefaultArgs().Contains(DefaultArgKey{Target: target, Index: index, Type: paramType})
}
