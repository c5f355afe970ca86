package hook

import (
	"fmt"
	"reflect"

	"github.com/a-peyrard/blackmagic/option"
)

// Handle is a typed view over the pipeline of a function of type F.
type Handle[F any] struct {
	pipeline *Pipeline
}

// Intercept returns the handle of fn in the default registry and registers the given decorators.
// Targets are keyed by code address: see Registry.GetOrCreate for method values and closures.
func Intercept[F any](fn F, decorators ...Decorator) (*Handle[F], error) {
	return InterceptIn(DefaultRegistry(), fn, nil, decorators...)
}

func InterceptIn[F any](registry *Registry, fn F, opts []option.Option[TargetOptions], decorators ...Decorator) (*Handle[F], error) {
	if reflect.TypeFor[F]().Kind() != reflect.Func {
		err := newHookError(InvalidInstallArgument, nil, fmt.Sprintf("%T is not a function type", fn), nil)
		failures.Report(err)
		return nil, err
	}
	pipeline, err := registry.GetOrCreate(fn, opts...)
	if err != nil {
		return nil, err
	}
	h := &Handle[F]{pipeline: pipeline}
	for _, d := range decorators {
		if !pipeline.Register(d) {
			return h, fmt.Errorf("failed to register %T on %s:\n\t%w", d, pipeline.target, lastFailure())
		}
	}
	return h, nil
}

// MustIntercept panics when Intercept fails.
func MustIntercept[F any](fn F, decorators ...Decorator) *Handle[F] {
	h, err := Intercept(fn, decorators...)
	if err != nil {
		panic(err)
	}
	return h
}

// Func returns the entry stub callers use to reach the decorated function.
func (h *Handle[F]) Func() F {
	return h.pipeline.Entry().Interface().(F)
}

// Original returns the undecorated function.
func (h *Handle[F]) Original() F {
	return h.pipeline.Original().Interface().(F)
}

func (h *Handle[F]) Pipeline() *Pipeline {
	return h.pipeline
}

func (h *Handle[F]) Use(d Decorator) bool {
	return h.pipeline.Register(d)
}

func (h *Handle[F]) Remove(d Decorator) bool {
	return h.pipeline.Unregister(d)
}

func lastFailure() error {
	if last, ok := failures.Last(); ok {
		return last
	}
	return ErrCreateHookFailed
}
