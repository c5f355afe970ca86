// Package blackmagic intercepts function calls and injects their dependencies.
//
// A hooked function is called through the function returned by Decorate or
// Inject. Decorators run around every call; the injector replaces placeholder
// arguments (depends.Ptr, depends.RefOf) with objects resolved from the call's session.
package blackmagic

import (
	"github.com/a-peyrard/blackmagic/depends"
	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/option"
)

type (
	Options struct {
		registry   *hook.Registry
		target     []option.Option[hook.TargetOptions]
		decorators []hook.Decorator
		bindings   []func(target any)
	}
)

var injector = depends.NewInjector()

// Named overrides the target name used in logs and metrics.
func Named(name string) option.Option[Options] {
	return func(opts *Options) {
		opts.target = append(opts.target, hook.Named(name))
	}
}

// AsMethod treats the first parameter as the receiver of a method expression.
// Parameter indices of Param and friends then start after it.
func AsMethod() option.Option[Options] {
	return func(opts *Options) {
		opts.target = append(opts.target, hook.AsMethod())
	}
}

// InRegistry installs the pipeline in registry instead of the default one.
func InRegistry(registry *hook.Registry) option.Option[Options] {
	return func(opts *Options) {
		opts.registry = registry
	}
}

// With adds decorators, run in the order given.
func With(decorators ...hook.Decorator) option.Option[Options] {
	return func(opts *Options) {
		opts.decorators = append(opts.decorators, decorators...)
	}
}

// Param declares how parameter index is resolved when a placeholder is passed for it.
func Param[T any](index int, maker func() depends.DependsPtrValue[T]) option.Option[Options] {
	return func(opts *Options) {
		opts.bindings = append(opts.bindings, func(target any) {
			depends.RegisterParam(target, index, maker)
		})
	}
}

func AsyncParam[T any](index int, maker func() *depends.Task[depends.DependsPtrValue[T]]) option.Option[Options] {
	return func(opts *Options) {
		opts.bindings = append(opts.bindings, func(target any) {
			depends.RegisterParamAsync(target, index, maker)
		})
	}
}

func ValueParam[U any](index int, fn func() U) option.Option[Options] {
	return func(opts *Options) {
		opts.bindings = append(opts.bindings, func(target any) {
			depends.RegisterValueParam(target, index, fn)
		})
	}
}

// Decorate installs the given decorators on fn and returns the function to call instead of fn.
func Decorate[F any](fn F, opts ...option.Option[Options]) (F, error) {
	options := option.Build(&Options{registry: hook.DefaultRegistry()}, opts...)
	h, err := hook.InterceptIn(options.registry, fn, options.target, options.decorators...)
	if err != nil {
		var zero F
		return zero, err
	}
	return h.Func(), nil
}

// Inject declares the parameter bindings of fn and installs the injector ahead of the
// other decorators. Injecting the same function twice installs one injector.
func Inject[F any](fn F, opts ...option.Option[Options]) (F, error) {
	options := option.Build(&Options{registry: hook.DefaultRegistry()}, opts...)
	for _, bind := range options.bindings {
		bind(fn)
	}
	decorators := append([]hook.Decorator{injector}, options.decorators...)
	h, err := hook.InterceptIn(options.registry, fn, options.target, decorators...)
	if err != nil {
		var zero F
		return zero, err
	}
	return h.Func(), nil
}

func MustDecorate[F any](fn F, opts ...option.Option[Options]) F {
	decorated, err := Decorate(fn, opts...)
	if err != nil {
		panic(err)
	}
	return decorated
}

func MustInject[F any](fn F, opts ...option.Option[Options]) F {
	injected, err := Inject(fn, opts...)
	if err != nil {
		panic(err)
	}
	return injected
}

// InjectDependency registers value, a pointer or a depends.Ref, for target and factory.
// Nil target and factory mean every target and no factory.
func InjectDependency(target, factory, value any) error {
	return depends.InjectDependency(target, factory, value)
}

// ScopeOverride registers value until the returned override is restored.
func ScopeOverride(target, factory, value any) (*depends.Override, error) {
	return depends.ScopeOverride(target, factory, value)
}

func ClearDependencies(target any) int {
	return depends.ClearDependencies(target)
}

func ClearAllDependencies() int {
	return depends.ClearAllDependencies()
}
