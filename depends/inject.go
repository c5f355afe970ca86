package depends

import (
	"context"
	"reflect"
	"slices"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/logging"
)

type (
	// Injector is the decorator resolving placeholder arguments. Each call runs in
	// its own scope, nested in the caller's session when the caller is itself injected.
	Injector struct{}

	injectFrame struct {
		lease   *Lease
		restore func()
		err     error
	}
)

var _ hook.Decorator = (*Injector)(nil)

func NewInjector() *Injector {
	return &Injector{}
}

func (i *Injector) ContextSize() int {
	return 0
}

func (i *Injector) Before(ctx hook.CallContext, call *hook.Invocation) bool {
	target := call.Target()
	key := TargetKey(target.Addr())

	var (
		parent  *State
		carried bool
		callCtx context.Context
	)
	if target.TakesContext() {
		callCtx, _ = call.Arg(0).Interface().(context.Context)
		parent, carried = StateFrom(callCtx)
	}
	if parent == nil {
		parent, _ = ActiveState()
	}

	// a caller-built session passed through the context is joined; pooled
	// sessions only nest while a call is in flight
	var lease *Lease
	if carried && !parent.pooled {
		lease = JoinCallLease(parent)
	} else {
		lease = AcquireCallLease(parent)
	}
	s := lease.State()
	frame := &injectFrame{lease: lease, restore: Activate(s)}
	ctx.SetFrame(frame)

	logging.Get().Trace().
		Str("target", target.Name()).
		Stringer("session", s.ID()).
		Int("callDepth", s.CallDepth()).
		Msg("call lease acquired")

	if target.TakesContext() {
		if err := call.Arg(0).Assign(WithState(callCtx, s)); err != nil {
			logging.Get().Warn().Err(err).Str("target", target.Name()).Msg("failed to rebind context")
		}
	}

	if returnsTask(target) {
		if pending := placeholderArgs(call); len(pending) > 0 {
			call.Around(resolveInTask(s, key, target, pending))
		}
		return true
	}

	for index := range call.NumArgs() {
		slot := call.Arg(index)
		if !IsPlaceholder(slot.Get()) {
			continue
		}
		v, ierr := resolveParam(s, key, index, slot.Type())
		if ierr == nil {
			if err := slot.Set(v); err != nil {
				ierr = newInjectError(TypeMismatch, key, index, slot.Type(), FactoryKey{},
					"resolved value does not fit the parameter").withCause(err)
			}
		}
		if ierr != nil {
			frame.err = ierr
			i.abort(ctx, frame)
			report(ierr)
			return false
		}
	}
	return true
}

type pendingArg struct {
	index int
	typ   reflect.Type
}

func placeholderArgs(call *hook.Invocation) []pendingArg {
	var pending []pendingArg
	for index := range call.NumArgs() {
		slot := call.Arg(index)
		if IsPlaceholder(slot.Get()) {
			pending = append(pending, pendingArg{index: index, typ: slot.Type()})
		}
	}
	return pending
}

// resolveInTask defers the resolution of an async target's placeholders to the
// task handed back to the caller. That task resolves them on the scheduler that
// runs it, under s, then calls the original and awaits the task it returns.
// A failure is reported from the task and fails it.
func resolveInTask(s *State, key TargetKey, target *hook.Target, pending []pendingArg) func(hook.Proceed, []reflect.Value) []reflect.Value {
	typ := target.Type()
	shape := reflect.Zero(typ.Out(0)).Interface().(taskShape)

	return func(proceed hook.Proceed, args []reflect.Value) []reflect.Value {
		args = slices.Clone(args)
		task := shape.deferred(s, func(aw *Awaiter) (any, error) {
			for _, p := range pending {
				v, ierr := resolveParamAsync(aw, s, key, p.index, p.typ)
				if ierr == nil && !v.Type().AssignableTo(p.typ) {
					ierr = newInjectError(TypeMismatch, key, p.index, p.typ, FactoryKey{},
						"resolved value does not fit the parameter")
				}
				if ierr != nil {
					return nil, fail(ierr)
				}
				args[p.index] = v
			}
			out := proceed(args)
			inner, _ := out[0].Interface().(taskShape)
			return inner.awaitAny(aw)
		})

		results := make([]reflect.Value, typ.NumOut())
		results[0] = reflect.ValueOf(task)
		for i := 1; i < len(results); i++ {
			results[i] = reflect.Zero(typ.Out(i))
		}
		return results
	}
}

// abort releases the call scope before the failure is reported, so a throwing
// policy leaves no scope behind. The error stays in the frame for After.
func (i *Injector) abort(ctx hook.CallContext, frame *injectFrame) {
	releaseLease(frame.lease)
	frame.restore()
	ctx.SetFrame(&injectFrame{err: frame.err, restore: func() {}})
}

func (i *Injector) After(ctx hook.CallContext, call *hook.Invocation) {
	frame, ok := ctx.Frame().(*injectFrame)
	if !ok || frame == nil {
		return
	}
	defer frame.restore()

	if frame.err != nil {
		call.SetError(frame.err)
	}
	if frame.lease == nil {
		return
	}
	if call.Proceeded() && bindLease(call.Result(0), frame.lease) {
		return
	}
	releaseLease(frame.lease)
}

// returnsTask reports whether the target's first result is a *Task.
func returnsTask(target *hook.Target) bool {
	typ := target.Type()
	return typ.NumOut() > 0 && typ.Out(0).Kind() == reflect.Pointer && typ.Out(0).Implements(taskShapeType)
}
