package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/a-peyrard/blackmagic/concurrent"
	"github.com/a-peyrard/blackmagic/failure"
	"github.com/a-peyrard/blackmagic/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name string
	log  *concurrent.Slice[string]
	veto bool
}

func (r *recorder) ContextSize() int { return 0 }

func (r *recorder) Before(_ CallContext, _ *Invocation) bool {
	r.log.Append(r.name + ".before")
	return !r.veto
}

func (r *recorder) After(_ CallContext, call *Invocation) {
	r.log.Append(fmt.Sprintf("%s.after(proceeded=%t)", r.name, call.Proceeded()))
}

var originalCalls atomic.Int32

func add(a, b int) int {
	originalCalls.Add(1)
	return a + b
}

func multiply(a, b int) int { return a * b }

func explode(int) int { panic("boom") }

func sum(values ...int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

var errDenied = errors.New("denied")

func greet(name string) (string, error) { return "hello " + name, nil }

type counter struct{ n int }

func (c *counter) Add(delta int) int {
	c.n += delta
	return c.n
}

func newTestRegistry() *Registry {
	return NewRegistry(NewFuncTable())
}

func TestPipelineDispatch(t *testing.T) {
	t.Run("it should run before-phases in order and after-phases in reverse", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		h, err := InterceptIn(newTestRegistry(), add, nil,
			&recorder{name: "d1", log: log},
			&recorder{name: "d2", log: log},
			&recorder{name: "d3", log: log},
		)
		require.NoError(t, err)

		// WHEN
		result := h.Func()(1, 2)

		// THEN
		assert.Equal(t, 3, result)
		assert.Equal(t, []string{
			"d1.before", "d2.before", "d3.before",
			"d3.after(proceeded=true)", "d2.after(proceeded=true)", "d1.after(proceeded=true)",
		}, log.Get())
	})

	t.Run("it should stop at the first refusal and unwind the invoked decorators", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		h, err := InterceptIn(newTestRegistry(), add, nil,
			&recorder{name: "d1", log: log},
			&recorder{name: "d2", log: log, veto: true},
			&recorder{name: "d3", log: log},
		)
		require.NoError(t, err)
		before := originalCalls.Load()

		// WHEN
		result := h.Func()(1, 2)

		// THEN
		assert.Equal(t, 0, result)
		assert.Equal(t, before, originalCalls.Load())
		assert.Equal(t, []string{
			"d1.before", "d2.before",
			"d2.after(proceeded=false)", "d1.after(proceeded=false)",
		}, log.Get())
	})

	t.Run("it should run after-phases when the original panics and re-panic", func(t *testing.T) {
		// GIVEN
		var seen any
		observer := &DecoratorFuncs{
			AfterFn: func(_ CallContext, call *Invocation) {
				seen, _ = call.Panic()
			},
		}
		h, err := InterceptIn(newTestRegistry(), explode, nil, observer)
		require.NoError(t, err)

		// WHEN / THEN
		assert.PanicsWithValue(t, "boom", func() { h.Func()(1) })
		assert.Equal(t, "boom", seen)
	})

	t.Run("it should run the after-phases of a panicking before-phase and the earlier ones", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		crashing := &DecoratorFuncs{
			BeforeFn: func(CallContext, *Invocation) bool { panic("crash") },
			AfterFn:  func(CallContext, *Invocation) { log.Append("crashing.after") },
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, &recorder{name: "d1", log: log}, crashing)
		require.NoError(t, err)

		// WHEN / THEN
		assert.PanicsWithValue(t, "crash", func() { h.Func()(2, 3) })
		assert.Equal(t, []string{"d1.before", "crashing.after", "d1.after(proceeded=false)"}, log.Get())
	})

	t.Run("it should call the original directly when the chain is empty", func(t *testing.T) {
		// GIVEN
		d := &recorder{name: "d1", log: concurrent.NewSlice[string]()}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, d)
		require.NoError(t, err)
		require.True(t, h.Remove(d))

		// WHEN
		result := h.Func()(3, 4)

		// THEN
		assert.Equal(t, 12, result)
		assert.Equal(t, 0, h.Pipeline().Len())
		assert.True(t, h.Pipeline().Installed())
	})

	t.Run("it should let an unregistration only affect the next dispatch", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		second := &recorder{name: "d2", log: log}
		var h *Handle[func(int, int) int]
		first := &DecoratorFuncs{
			BeforeFn: func(CallContext, *Invocation) bool {
				h.Remove(second)
				return true
			},
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, first, second)
		require.NoError(t, err)

		// WHEN
		h.Func()(1, 1)
		h.Func()(1, 1)

		// THEN
		assert.Equal(t, []string{"d2.before", "d2.after(proceeded=true)"}, log.Get())
	})

	t.Run("it should accept a registration from inside a decorator", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		late := &recorder{name: "late", log: log}
		var h *Handle[func(int, int) int]
		first := &DecoratorFuncs{
			BeforeFn: func(CallContext, *Invocation) bool {
				return h.Use(late)
			},
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, first)
		require.NoError(t, err)

		// WHEN
		h.Func()(1, 1)
		h.Func()(1, 1)

		// THEN
		assert.Equal(t, []string{"late.before", "late.after(proceeded=true)"}, log.Get())
	})

	t.Run("it should not register the same decorator twice", func(t *testing.T) {
		// GIVEN
		d := &recorder{name: "d1", log: concurrent.NewSlice[string]()}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, d)
		require.NoError(t, err)

		// WHEN
		ok := h.Use(d)

		// THEN
		assert.True(t, ok)
		assert.Equal(t, 1, h.Pipeline().Len())
	})
}

func TestPipelineArguments(t *testing.T) {
	t.Run("it should let a decorator assign a value argument", func(t *testing.T) {
		// GIVEN
		doubler := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				arg := call.Arg(1)
				return arg.Assign(int(arg.Get().Int()*2)) == nil
			},
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, doubler)
		require.NoError(t, err)

		// WHEN
		result := h.Func()(3, 5)

		// THEN
		assert.Equal(t, 30, result)
	})

	t.Run("it should expose the receiver of a method expression", func(t *testing.T) {
		// GIVEN
		var receiver *counter
		var numArgs int
		spy := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				receiver = call.Receiver().Interface().(*counter)
				numArgs = call.NumArgs()
				return call.Arg(0).Assign(10) == nil
			},
		}
		h, err := InterceptIn(newTestRegistry(), (*counter).Add, []option.Option[TargetOptions]{AsMethod()}, spy)
		require.NoError(t, err)
		c := &counter{n: 1}

		// WHEN
		result := h.Func()(c, 2)

		// THEN
		assert.Equal(t, 11, result)
		assert.Same(t, c, receiver)
		assert.Equal(t, 1, numArgs)
	})

	t.Run("it should dispatch variadic targets with their slice", func(t *testing.T) {
		// GIVEN
		var seen []int
		spy := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				seen = call.Arg(0).Interface().([]int)
				return call.Arg(0).Assign(append(seen, 100)) == nil
			},
		}
		h, err := InterceptIn(newTestRegistry(), sum, nil, spy)
		require.NoError(t, err)

		// WHEN
		result := h.Func()(1, 2, 3)

		// THEN
		assert.Equal(t, []int{1, 2, 3}, seen)
		assert.Equal(t, 106, result)
	})

	t.Run("it should write the trailing error of a refused call", func(t *testing.T) {
		// GIVEN
		guard := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				call.SetError(errDenied)
				return false
			},
		}
		h, err := InterceptIn(newTestRegistry(), greet, nil, guard)
		require.NoError(t, err)

		// WHEN
		result, callErr := h.Func()("bob")

		// THEN
		assert.Equal(t, "", result)
		assert.ErrorIs(t, callErr, errDenied)
	})

	t.Run("it should let an after-phase replace the result", func(t *testing.T) {
		// GIVEN
		shout := &DecoratorFuncs{
			AfterFn: func(_ CallContext, call *Invocation) {
				_ = call.SetResult(0, call.Result(0).String()+"!")
			},
		}
		h, err := InterceptIn(newTestRegistry(), greet, nil, shout)
		require.NoError(t, err)

		// WHEN
		result, callErr := h.Func()("bob")

		// THEN
		require.NoError(t, callErr)
		assert.Equal(t, "hello bob!", result)
	})

	t.Run("it should let a before-phase take over the call to the original", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		var later func() string
		deferring := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				call.Around(func(proceed Proceed, args []reflect.Value) []reflect.Value {
					kept := append([]reflect.Value(nil), args...)
					later = func() string { return proceed(kept)[0].String() }
					return []reflect.Value{reflect.ValueOf("pending"), reflect.Zero(reflect.TypeFor[error]())}
				})
				return true
			},
		}
		h, err := InterceptIn(newTestRegistry(), greet, nil, deferring, &recorder{name: "d2", log: log})
		require.NoError(t, err)

		// WHEN
		result, callErr := h.Func()("bob")

		// THEN
		require.NoError(t, callErr)
		assert.Equal(t, "pending", result)
		assert.Equal(t, []string{"d2.before", "d2.after(proceeded=true)"}, log.Get())
		require.NotNil(t, later)
		assert.Equal(t, "hello bob", later())
	})

	t.Run("it should refuse to rebind a value slot", func(t *testing.T) {
		// GIVEN
		var rebindErr error
		spy := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				rebindErr = call.Arg(0).Rebind(4)
				return true
			},
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, spy)
		require.NoError(t, err)

		// WHEN
		h.Func()(1, 1)

		// THEN
		assert.Error(t, rebindErr)
	})
}

type intRef struct{ p *int }

func (r intRef) Addr() any { return r.p }

func (r intRef) Rebound(addr any) Reference { return intRef{p: addr.(*int)} }

func readRef(r intRef) int { return *r.p }

func readPtr(p *int) int { return *p }

func TestArgSlotRebind(t *testing.T) {
	t.Run("it should rebind a reference slot from a pointer", func(t *testing.T) {
		// GIVEN
		replacement := 42
		var category Category
		spy := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				category = call.Arg(0).Category()
				return call.Arg(0).Rebind(&replacement) == nil
			},
		}
		h, err := InterceptIn(newTestRegistry(), readRef, nil, spy)
		require.NoError(t, err)
		original := 1

		// WHEN
		result := h.Func()(intRef{p: &original})

		// THEN
		assert.Equal(t, CategoryReference, category)
		assert.Equal(t, 42, result)
	})

	t.Run("it should rebind a pointer slot", func(t *testing.T) {
		// GIVEN
		replacement := 7
		var pointed reflect.Value
		spy := &DecoratorFuncs{
			BeforeFn: func(_ CallContext, call *Invocation) bool {
				pointed = call.Arg(0).Pointer()
				return call.Arg(0).Rebind(&replacement) == nil
			},
		}
		h, err := InterceptIn(newTestRegistry(), readPtr, nil, spy)
		require.NoError(t, err)
		original := 1

		// WHEN
		result := h.Func()(&original)

		// THEN
		assert.Equal(t, 7, result)
		assert.Equal(t, &original, pointed.Interface())
	})
}

func TestPipelineConcurrency(t *testing.T) {
	t.Run("it should never share call contexts between concurrent dispatches", func(t *testing.T) {
		// GIVEN
		var mismatches atomic.Int32
		var dispatched atomic.Int32
		checker := &DecoratorFuncs{
			Size: 8,
			BeforeFn: func(ctx CallContext, call *Invocation) bool {
				slot := ContextAs[int64](ctx)
				if *slot != 0 {
					mismatches.Add(1)
				}
				*slot = call.Arg(0).Get().Int()
				return true
			},
			AfterFn: func(ctx CallContext, call *Invocation) {
				if *ContextAs[int64](ctx) != call.Arg(0).Get().Int() {
					mismatches.Add(1)
				}
				dispatched.Add(1)
			},
		}
		h, err := InterceptIn(newTestRegistry(), multiply, nil, checker)
		require.NoError(t, err)
		f := h.Func()

		// WHEN
		var wg sync.WaitGroup
		for g := 1; g <= 32; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for range 100 {
					f(g, 2)
				}
			}(g)
		}
		wg.Wait()

		// THEN
		assert.Equal(t, int32(0), mismatches.Load())
		assert.Equal(t, int32(3200), dispatched.Load())
	})
}

func TestPipelineInstall(t *testing.T) {
	t.Run("it should roll back the registration when the hook cannot be created", func(t *testing.T) {
		// GIVEN
		t.Cleanup(Failures().Reset)
		backend := &fakeBackend{createErr: errors.New("no trampoline")}
		p, err := NewRegistry(backend).GetOrCreate(multiply)
		require.NoError(t, err)

		// WHEN
		ok := p.Register(&DecoratorFuncs{})

		// THEN
		assert.False(t, ok)
		assert.Equal(t, 0, p.Len())
		assert.False(t, p.Installed())
		last, _ := Failures().Last()
		require.NotNil(t, last)
		assert.Equal(t, CreateHookFailed, last.Code)
		assert.ErrorIs(t, last, ErrCreateHookFailed)
	})

	t.Run("it should remove the created hook when it cannot be enabled", func(t *testing.T) {
		// GIVEN
		t.Cleanup(Failures().Reset)
		backend := &fakeBackend{enableFails: true}
		p, err := NewRegistry(backend).GetOrCreate(multiply)
		require.NoError(t, err)

		// WHEN
		ok := p.Register(&DecoratorFuncs{})

		// THEN
		assert.False(t, ok)
		assert.Equal(t, []string{"create", "enable", "remove"}, backend.calls)
		last, _ := Failures().Last()
		assert.Equal(t, EnableHookFailed, last.Code)
	})

	t.Run("it should create and enable the hook only once", func(t *testing.T) {
		// GIVEN
		backend := &fakeBackend{}
		p, err := NewRegistry(backend).GetOrCreate(multiply)
		require.NoError(t, err)

		// WHEN
		p.Register(&DecoratorFuncs{})
		p.Register(&DecoratorFuncs{})

		// THEN
		assert.Equal(t, []string{"create", "enable"}, backend.calls)
		assert.Equal(t, 2, p.Len())
	})

	t.Run("it should panic and still roll back under the throw policy", func(t *testing.T) {
		// GIVEN
		t.Cleanup(Failures().Reset)
		Failures().SetPolicy(failure.Throw)
		p, err := NewRegistry(&fakeBackend{createErr: errors.New("nope")}).GetOrCreate(multiply)
		require.NoError(t, err)

		// WHEN / THEN
		assert.Panics(t, func() { p.Register(&DecoratorFuncs{}) })
		assert.Equal(t, 0, p.Len())
	})

	t.Run("it should refuse a non comparable decorator", func(t *testing.T) {
		// GIVEN
		t.Cleanup(Failures().Reset)
		p, err := newTestRegistry().GetOrCreate(multiply)
		require.NoError(t, err)

		// WHEN
		ok := p.Register(sliceDecorator{1})

		// THEN
		assert.False(t, ok)
		last, _ := Failures().Last()
		assert.Equal(t, InvalidInstallArgument, last.Code)
	})

	t.Run("it should uninstall and route back to the original", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		h, err := InterceptIn(newTestRegistry(), multiply, nil, &recorder{name: "d1", log: log})
		require.NoError(t, err)

		// WHEN
		ok := h.Pipeline().Uninstall()
		result := h.Func()(2, 5)

		// THEN
		assert.True(t, ok)
		assert.False(t, h.Pipeline().Installed())
		assert.Equal(t, 10, result)
		assert.Empty(t, log.Get())
	})
}

type sliceDecorator []int

func (sliceDecorator) ContextSize() int                     { return 0 }
func (sliceDecorator) Before(CallContext, *Invocation) bool { return true }
func (sliceDecorator) After(CallContext, *Invocation)       {}

type fakeBackend struct {
	mu          sync.Mutex
	calls       []string
	createErr   error
	enableFails bool
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) CreateHook(target *Target, _ reflect.Value) (reflect.Value, error) {
	b.record("create")
	if b.createErr != nil {
		return reflect.Value{}, b.createErr
	}
	return target.Func(), nil
}

func (b *fakeBackend) EnableHook(*Target) bool {
	b.record("enable")
	return !b.enableFails
}

func (b *fakeBackend) DisableHook(*Target) bool {
	b.record("disable")
	return true
}

func (b *fakeBackend) RemoveHook(*Target) bool {
	b.record("remove")
	return true
}
