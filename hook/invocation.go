package hook

import (
	"fmt"
	"reflect"
)

// Invocation is the record of one in-flight call shared by every decorator of the chain.
type Invocation struct {
	target     *Target
	receiver   reflect.Value
	args       []reflect.Value
	results    []reflect.Value
	proceeded  bool
	vetoed     bool
	panicking  bool
	panicValue any
	around     func(proceed Proceed, args []reflect.Value) []reflect.Value
}

// Proceed calls the original function with args and returns its results. It
// stays usable after the dispatch that handed it out has returned.
type Proceed func(args []reflect.Value) []reflect.Value

func (c *Invocation) reset(target *Target, receiver reflect.Value, args []reflect.Value) {
	*c = Invocation{target: target, receiver: receiver, args: args}
}

func (c *Invocation) Target() *Target {
	return c.target
}

// Receiver is the method receiver under ConventionMethod, invalid otherwise.
func (c *Invocation) Receiver() reflect.Value {
	return c.receiver
}

func (c *Invocation) NumArgs() int {
	return len(c.args)
}

func (c *Invocation) Arg(i int) ArgSlot {
	if i < 0 || i >= len(c.args) {
		panic(fmt.Sprintf("argument index %d out of range [0,%d)", i, len(c.args)))
	}
	return ArgSlot{call: c, index: i}
}

// Results returns the results of the original call, or the zero results of a
// refused call. It is nil during the before-phase unless a decorator set one.
func (c *Invocation) Results() []reflect.Value {
	return c.results
}

func (c *Invocation) Result(i int) reflect.Value {
	if i < 0 || i >= len(c.results) {
		return reflect.Value{}
	}
	return c.results[i]
}

func (c *Invocation) SetResult(i int, v any) error {
	c.ensureResults()
	if i < 0 || i >= len(c.results) {
		return fmt.Errorf("result index %d out of range [0,%d)", i, len(c.results))
	}
	coerced, err := coerce(reflect.ValueOf(v), c.target.typ.Out(i))
	if err != nil {
		return fmt.Errorf("result %d:\n\t%w", i, err)
	}
	c.results[i] = coerced
	return nil
}

// SetError writes err into the trailing error result. It returns false when the
// target has no such result.
func (c *Invocation) SetError(err error) bool {
	idx := c.target.errorResult
	if idx < 0 {
		return false
	}
	c.ensureResults()
	if err == nil {
		c.results[idx] = reflect.Zero(errorType)
		return true
	}
	c.results[idx] = reflect.ValueOf(&err).Elem()
	return true
}

// Err returns the trailing error result, if any.
func (c *Invocation) Err() error {
	idx := c.target.errorResult
	if idx < 0 || idx >= len(c.results) || c.results[idx].IsNil() {
		return nil
	}
	return c.results[idx].Interface().(error)
}

// Around makes the call reach the original through fn: fn receives the final
// arguments and returns the results of the call. The last decorator to set one wins.
func (c *Invocation) Around(fn func(proceed Proceed, args []reflect.Value) []reflect.Value) {
	c.around = fn
}

// Proceeded reports whether the original function was called.
func (c *Invocation) Proceeded() bool {
	return c.proceeded
}

func (c *Invocation) Vetoed() bool {
	return c.vetoed
}

// Panic returns the value the call is panicking with, during the after-phase.
func (c *Invocation) Panic() (any, bool) {
	return c.panicValue, c.panicking
}

func (c *Invocation) ensureResults() {
	if c.results != nil {
		return
	}
	n := c.target.typ.NumOut()
	c.results = make([]reflect.Value, n)
	for i := range n {
		c.results[i] = reflect.Zero(c.target.typ.Out(i))
	}
}

// Recover stops the in-flight panic during the after-phase. The call then returns
// its current results, so a decorator recovering should also set them.
func (c *Invocation) Recover() (any, bool) {
	if !c.panicking {
		return nil, false
	}
	v := c.panicValue
	c.panicking, c.panicValue = false, nil
	return v, true
}
