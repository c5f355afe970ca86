// Package hook intercepts calls to Go functions and runs an ordered chain of
// decorators around the original call.
//
// A target is installed once through a Backend. The default backend is an
// in-process function table: callers reach the target through the entry stub
// returned by Handle.Func, and the table routes the call either to the
// pipeline dispatcher or straight to the original function.
package hook

import (
	"context"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/a-peyrard/blackmagic/option"
	"github.com/a-peyrard/blackmagic/reflectutils"
	"github.com/rs/zerolog"
)

type (
	// Target identifies one interceptable function by its code address. Method
	// values and closures built from the same literal share that address, so
	// they share one target: the first function value seen is the one called.
	Target struct {
		fn          reflect.Value
		closure     unsafe.Pointer
		typ         reflect.Type
		addr        uintptr
		name        string
		convention  Convention
		errorResult int
		categories  []Category
	}

	TargetOptions struct {
		name       string
		convention Convention
	}
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Named overrides the display name, which defaults to the runtime function name.
func Named(name string) option.Option[TargetOptions] {
	return func(opts *TargetOptions) {
		opts.name = name
	}
}

func WithConvention(convention Convention) option.Option[TargetOptions] {
	return func(opts *TargetOptions) {
		opts.convention = convention
	}
}

// AsMethod marks the first parameter as the receiver.
func AsMethod() option.Option[TargetOptions] {
	return WithConvention(ConventionMethod)
}

func NewTarget(fn any, opts ...option.Option[TargetOptions]) (*Target, error) {
	options := option.Build(&TargetOptions{}, opts...)

	value := reflect.ValueOf(fn)
	if !value.IsValid() || value.Kind() != reflect.Func || value.IsNil() {
		return nil, newHookError(InvalidInstallArgument, nil, fmt.Sprintf("target must be a non-nil function, got %T", fn), nil)
	}
	if err := options.convention.trampoline().validate(value.Type()); err != nil {
		return nil, newHookError(InvalidInstallArgument, nil, err.Error(), nil)
	}

	t := &Target{
		fn:          value,
		closure:     closureOf(fn),
		typ:         value.Type(),
		addr:        value.Pointer(),
		name:        options.name,
		convention:  options.convention,
		errorResult: -1,
	}
	if t.name == "" {
		t.name = reflectutils.FuncName(value)
	}
	if n := t.typ.NumOut(); n > 0 && t.typ.Out(n-1) == errorType {
		t.errorResult = n - 1
	}
	t.categories = make([]Category, t.NumArgs())
	for i := range t.categories {
		t.categories[i] = CategoryOf(t.ArgType(i))
	}
	return t, nil
}

func (t *Target) Addr() uintptr {
	return t.addr
}

func (t *Target) Name() string {
	return t.name
}

func (t *Target) Type() reflect.Type {
	return t.typ
}

// Func returns the target function itself, never the entry stub.
func (t *Target) Func() reflect.Value {
	return t.fn
}

func (t *Target) Convention() Convention {
	return t.convention
}

// NumArgs is the number of argument slots, receiver excluded.
func (t *Target) NumArgs() int {
	return t.typ.NumIn() - t.convention.trampoline().offset()
}

// ArgType returns the declared type of argument slot i.
func (t *Target) ArgType(i int) reflect.Type {
	return t.typ.In(i + t.convention.trampoline().offset())
}

func (t *Target) ArgCategory(i int) Category {
	return t.categories[i]
}

func (t *Target) zeroReference(i int) Reference {
	return reflect.Zero(t.ArgType(i)).Interface().(Reference)
}

// TakesContext reports whether argument slot 0 is a context.Context.
func (t *Target) TakesContext() bool {
	return t.NumArgs() > 0 && t.ArgType(0) == contextType
}

// ErrorResult returns the index of a trailing error result, or -1.
func (t *Target) ErrorResult() int {
	return t.errorResult
}

func (t *Target) String() string {
	return fmt.Sprintf("%s@%#x", t.name, t.addr)
}

func (t *Target) MarshalZerologObject(e *zerolog.Event) {
	e.Str("target", t.name).
		Str("addr", fmt.Sprintf("%#x", t.addr)).
		Stringer("convention", t.convention)
}

// closureOf returns the func value pointer held by fn: static for top-level
// functions, one per method value or closure instance.
func closureOf(fn any) unsafe.Pointer {
	type eface struct {
		typ, data unsafe.Pointer
	}
	return (*eface)(unsafe.Pointer(&fn)).data
}
