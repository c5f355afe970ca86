package depends

import (
	"reflect"

	"github.com/a-peyrard/blackmagic/option"
)

type (
	// DependsPtrValue is the metadata a parameter maker produces. Ptr is either the
	// placeholder of T, meaning "resolve it", or a concrete object to use as is.
	DependsPtrValue[T any] struct {
		Ptr     *T
		Owned   bool
		Factory FactoryKey
		Cached  bool
	}

	// ptrMeta is DependsPtrValue without its type parameter.
	ptrMeta struct {
		ptr     reflect.Value
		owned   bool
		factory FactoryKey
		cached  bool
	}

	Options struct {
		cached       bool
		allowDefault bool
		factory      FactoryKey
		target       TargetKey
	}
)

var defaultOptions = Options{cached: true, allowDefault: true}

// Cached(false) forces a fresh resolution instead of reusing the session's slot.
func Cached(cached bool) option.Option[Options] {
	return func(opts *Options) {
		opts.cached = cached
	}
}

func AllowDefault(allow bool) option.Option[Options] {
	return func(opts *Options) {
		opts.allowDefault = allow
	}
}

// WithFactory partitions the slot by factory. fn is a factory function or a FactoryKey.
func WithFactory(fn any) option.Option[Options] {
	return func(opts *Options) {
		opts.factory = factoryKeyFrom(fn)
	}
}

// ForTarget scopes explicit registrations lookups to one injected function.
func ForTarget(fn any) option.Option[Options] {
	return func(opts *Options) {
		opts.target = targetKeyFrom(fn)
	}
}

func targetKeyFrom(v any) TargetKey {
	switch t := v.(type) {
	case nil:
		return AnyTarget
	case TargetKey:
		return t
	default:
		return TargetKeyOf(v)
	}
}

func factoryKeyFrom(v any) FactoryKey {
	switch f := v.(type) {
	case nil:
		return FactoryKey{}
	case FactoryKey:
		return f
	default:
		return FactoryKeyOf(v)
	}
}

func (m DependsPtrValue[T]) erase() ptrMeta {
	return ptrMeta{
		ptr:     reflect.ValueOf(m.Ptr),
		owned:   m.Owned,
		factory: m.Factory,
		cached:  m.Cached,
	}
}

// IsPlaceholder reports whether the metadata still asks for a resolution.
func (m DependsPtrValue[T]) IsPlaceholder() bool {
	return IsPtrPlaceholder(m.Ptr)
}

func (m ptrMeta) unresolved() bool {
	return !m.ptr.IsValid() || m.ptr.IsNil() || isPointerSentinel(m.ptr)
}

// executing returns the session allowed to run factories on this goroutine.
func executing() (*State, bool) {
	s, ok := ActiveState()
	if !ok || !s.Executing() {
		return nil, false
	}
	return s, true
}

// Depends asks for a T resolved from the session: cache, explicit registrations,
// then default construction.
func Depends[T any](opts ...option.Option[Options]) DependsPtrValue[T] {
	o := option.Apply(defaultOptions, opts...)
	return DependsPtrValue[T]{Ptr: Ptr[T](), Factory: o.factory, Cached: o.cached}
}

// cachedFor returns the slot already holding the factory's product in the active chain.
func cachedFor[T any](s *State, factory FactoryKey, cached bool) (DependsPtrValue[T], bool) {
	if !cached {
		return DependsPtrValue[T]{}, false
	}
	slot := s.Find(SlotKey{Type: reflect.TypeFor[T](), Factory: factory})
	if slot.empty() {
		return DependsPtrValue[T]{}, false
	}
	return DependsPtrValue[T]{
		Ptr:     slot.obj.Interface().(*T),
		Owned:   slot.Owned(),
		Factory: factory,
		Cached:  cached,
	}, true
}

// DependsOn asks for the T built by factory. The session owns what the factory returns.
// Outside an execution scope the factory is not called.
func DependsOn[T any](factory func() *T, opts ...option.Option[Options]) DependsPtrValue[T] {
	o := option.Apply(defaultOptions, opts...)
	key := FactoryKeyOf(factory)
	s, ok := executing()
	if !ok {
		return DependsPtrValue[T]{Ptr: Ptr[T](), Factory: key, Cached: o.cached}
	}
	if hit, ok := cachedFor[T](s, key, o.cached); ok {
		return hit
	}
	metricResolution("factory")
	return DependsPtrValue[T]{Ptr: factory(), Owned: true, Factory: key, Cached: o.cached}
}

// DependsOnRef asks for the T referenced by factory. The session only borrows it.
func DependsOnRef[T any](factory func() Ref[T], opts ...option.Option[Options]) DependsPtrValue[T] {
	o := option.Apply(defaultOptions, opts...)
	key := FactoryKeyOf(factory)
	s, ok := executing()
	if !ok {
		return DependsPtrValue[T]{Ptr: Ptr[T](), Factory: key, Cached: o.cached}
	}
	if hit, ok := cachedFor[T](s, key, o.cached); ok {
		return hit
	}
	metricResolution("factory")
	return DependsPtrValue[T]{Ptr: factory().Get(), Factory: key, Cached: o.cached}
}

// DependsAsync is Depends for asynchronously resolved parameters.
func DependsAsync[T any](opts ...option.Option[Options]) *Task[DependsPtrValue[T]] {
	return Resolved(Depends[T](opts...))
}

// DependsOnAsync awaits the task returned by factory. The session owns the result.
func DependsOnAsync[T any](factory func() *Task[*T], opts ...option.Option[Options]) *Task[DependsPtrValue[T]] {
	o := option.Apply(defaultOptions, opts...)
	key := FactoryKeyOf(factory)
	s, ok := executing()
	if !ok {
		return Resolved(DependsPtrValue[T]{Ptr: Ptr[T](), Factory: key, Cached: o.cached})
	}
	if hit, ok := cachedFor[T](s, key, o.cached); ok {
		return Resolved(hit)
	}
	metricResolution("factory")
	pending := factory()
	return NewTask(func(aw *Awaiter) (DependsPtrValue[T], error) {
		ptr, err := Await(aw, pending)
		if err != nil {
			return DependsPtrValue[T]{}, err
		}
		return DependsPtrValue[T]{Ptr: ptr, Owned: true, Factory: key, Cached: o.cached}, nil
	})
}

// DependsOnRefAsync awaits the reference returned by factory. The session only borrows it.
func DependsOnRefAsync[T any](factory func() *Task[Ref[T]], opts ...option.Option[Options]) *Task[DependsPtrValue[T]] {
	o := option.Apply(defaultOptions, opts...)
	key := FactoryKeyOf(factory)
	s, ok := executing()
	if !ok {
		return Resolved(DependsPtrValue[T]{Ptr: Ptr[T](), Factory: key, Cached: o.cached})
	}
	if hit, ok := cachedFor[T](s, key, o.cached); ok {
		return Resolved(hit)
	}
	metricResolution("factory")
	pending := factory()
	return NewTask(func(aw *Awaiter) (DependsPtrValue[T], error) {
		ref, err := Await(aw, pending)
		if err != nil {
			return DependsPtrValue[T]{}, err
		}
		return DependsPtrValue[T]{Ptr: ref.Get(), Factory: key, Cached: o.cached}, nil
	})
}

// RegisterParam declares how parameter index of target is resolved when a
// placeholder is passed for it. Target is the function handed to the interceptor.
func RegisterParam[T any](target any, index int, maker func() DependsPtrValue[T]) {
	o := opsFor[T]()
	DefaultArgs().register(
		DefaultArgKey{Target: targetKeyFrom(target), Index: index, Type: o.metaType},
		maker,
		func() any { return maker() },
	)
}

// RegisterParamAsync declares an asynchronously resolved parameter.
func RegisterParamAsync[T any](target any, index int, maker func() *Task[DependsPtrValue[T]]) {
	o := opsFor[T]()
	DefaultArgs().register(
		DefaultArgKey{Target: targetKeyFrom(target), Index: index, Type: o.asyncMetaType},
		maker,
		func() any { return maker() },
	)
}

// RegisterValueParam declares a parameter whose metadata is the value itself.
func RegisterValueParam[U any](target any, index int, fn func() U) {
	RegisterDefaultArg(DefaultArgs(), targetKeyFrom(target), index, fn)
}
