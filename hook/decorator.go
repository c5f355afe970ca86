package hook

// Decorator is one before/after behavior attached to a pipeline.
//
// Decorators are compared by identity: register pointers.
type Decorator interface {
	// ContextSize is the number of scratch bytes the decorator needs per call.
	ContextSize() int
	// Before runs in registration order. Returning false refuses the call:
	// the original is not called and later decorators are skipped.
	Before(ctx CallContext, call *Invocation) bool
	// After runs in reverse order for every decorator whose Before was called,
	// including one that refused or panicked.
	After(ctx CallContext, call *Invocation)
}

// DecoratorFuncs adapts plain functions to Decorator. Nil functions are no-ops.
type DecoratorFuncs struct {
	Size     int
	BeforeFn func(ctx CallContext, call *Invocation) bool
	AfterFn  func(ctx CallContext, call *Invocation)
}

func (d *DecoratorFuncs) ContextSize() int {
	return d.Size
}

func (d *DecoratorFuncs) Before(ctx CallContext, call *Invocation) bool {
	if d.BeforeFn == nil {
		return true
	}
	return d.BeforeFn(ctx, call)
}

func (d *DecoratorFuncs) After(ctx CallContext, call *Invocation) {
	if d.AfterFn != nil {
		d.AfterFn(ctx, call)
	}
}
