package hook

import (
	"fmt"
	"reflect"
)

// Convention says how incoming call arguments map to argument slots.
// Go has a single ABI; what differs between variants is whether the first
// parameter is a receiver hidden from decorators.
type Convention uint8

const (
	// ConventionFree exposes every parameter as an argument slot.
	ConventionFree Convention = iota
	// ConventionMethod treats parameter 0 as the receiver (method expressions such as (*T).M).
	ConventionMethod
)

func (c Convention) String() string {
	switch c {
	case ConventionFree:
		return "free"
	case ConventionMethod:
		return "method"
	default:
		return fmt.Sprintf("Convention(%d)", uint8(c))
	}
}

type trampoline interface {
	validate(fnType reflect.Type) error
	offset() int
	split(in []reflect.Value) (receiver reflect.Value, args []reflect.Value)
	join(receiver reflect.Value, args []reflect.Value, buf []reflect.Value) []reflect.Value
}

type (
	freeTrampoline   struct{}
	methodTrampoline struct{}
)

var trampolines = [...]trampoline{
	ConventionFree:   freeTrampoline{},
	ConventionMethod: methodTrampoline{},
}

func (c Convention) trampoline() trampoline {
	if int(c) >= len(trampolines) {
		return invalidTrampoline{c}
	}
	return trampolines[c]
}

func (freeTrampoline) validate(reflect.Type) error { return nil }

func (freeTrampoline) offset() int { return 0 }

func (freeTrampoline) split(in []reflect.Value) (reflect.Value, []reflect.Value) {
	return reflect.Value{}, in
}

func (freeTrampoline) join(_ reflect.Value, args []reflect.Value, _ []reflect.Value) []reflect.Value {
	return args
}

func (methodTrampoline) validate(fnType reflect.Type) error {
	if fnType.NumIn() == 0 {
		return fmt.Errorf("method convention needs a receiver parameter, %s has none", fnType)
	}
	return nil
}

func (methodTrampoline) offset() int { return 1 }

func (methodTrampoline) split(in []reflect.Value) (reflect.Value, []reflect.Value) {
	return in[0], in[1:]
}

func (methodTrampoline) join(receiver reflect.Value, args []reflect.Value, buf []reflect.Value) []reflect.Value {
	buf = append(buf[:0], receiver)
	return append(buf, args...)
}

type invalidTrampoline struct {
	c Convention
}

func (t invalidTrampoline) validate(reflect.Type) error {
	return fmt.Errorf("unknown calling convention %s", t.c)
}

func (invalidTrampoline) offset() int { return 0 }

func (invalidTrampoline) split(in []reflect.Value) (reflect.Value, []reflect.Value) {
	return reflect.Value{}, in
}

func (invalidTrampoline) join(_ reflect.Value, args []reflect.Value, _ []reflect.Value) []reflect.Value {
	return args
}
