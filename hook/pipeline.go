package hook

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
)

// Pipeline owns the decorator chain of one target and is the only place calling the original.
type Pipeline struct {
	target  *Target
	backend Backend
	state   *State
	detour  reflect.Value

	mu    sync.Mutex
	chain atomic.Pointer[chain]

	entryOnce sync.Once
	entry     reflect.Value
}

type frame struct {
	call   Invocation
	buf    []byte
	slots  []any
	joined []reflect.Value
}

var frames = sync.Pool{
	New: func() any {
		return &frame{}
	},
}

func NewPipeline(target *Target, backend Backend) *Pipeline {
	if backend == nil {
		backend = DefaultBackend()
	}
	p := &Pipeline{
		target:  target,
		backend: backend,
		state:   NewState(backend),
	}
	p.chain.Store(emptyChain)
	p.detour = reflect.MakeFunc(target.typ, p.Dispatch)
	return p
}

func (p *Pipeline) Target() *Target {
	return p.target
}

// Register appends node unless it is already part of the chain, and installs the
// hook on first use. The registration is rolled back when the install fails.
func (p *Pipeline) Register(node Decorator) (ok bool) {
	if node == nil {
		return report(InvalidInstallArgument, p.target, "nil decorator", nil)
	}
	if !reflect.TypeOf(node).Comparable() {
		return report(InvalidInstallArgument, p.target, fmt.Sprintf("decorator %T is not comparable", node), nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.chain.Load()
	if current.index(node) >= 0 {
		return true
	}
	p.chain.Store(current.with(node))
	defer func() {
		if !ok {
			p.chain.Store(current)
		}
	}()

	ok = p.state.InstallAt(p.target, p.detour)
	if ok {
		logging.Get().Debug().EmbedObject(p.target).Type("decorator", node).Msg("decorator registered")
	}
	return ok
}

// Unregister removes node by identity. A dispatch already running keeps its snapshot.
func (p *Pipeline) Unregister(node Decorator) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.chain.Load()
	pos := current.index(node)
	if pos < 0 {
		return false
	}
	p.chain.Store(current.without(pos))
	return true
}

func (p *Pipeline) Decorators() []Decorator {
	nodes := p.chain.Load().nodes
	out := make([]Decorator, len(nodes))
	copy(out, nodes)
	return out
}

func (p *Pipeline) Len() int {
	return len(p.chain.Load().nodes)
}

// Layout returns the arena layout of the current chain, computing it if needed.
func (p *Pipeline) Layout() Layout {
	return p.chain.Load().Layout()
}

func (p *Pipeline) Installed() bool {
	return p.state.IsInstalled()
}

// Original returns the trampoline reaching the undecorated function.
func (p *Pipeline) Original() reflect.Value {
	if original, ok := p.state.Original(); ok {
		return original
	}
	return p.target.fn
}

// Uninstall removes the hook and clears the chain.
func (p *Pipeline) Uninstall() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chain.Store(emptyChain)
	return p.state.Uninstall(p.target)
}

// Entry returns the function callers should invoke to reach the target through the backend.
func (p *Pipeline) Entry() reflect.Value {
	router, ok := p.backend.(Router)
	if !ok {
		return p.target.fn
	}
	p.entryOnce.Do(func() {
		target := p.target
		variadic := target.typ.IsVariadic()
		p.entry = reflect.MakeFunc(target.typ, func(in []reflect.Value) []reflect.Value {
			fn := router.Route(target)
			if variadic {
				return fn.CallSlice(in)
			}
			return fn.Call(in)
		})
	})
	return p.entry
}

// Dispatch runs the chain around the original function. It is the detour installed for the target.
func (p *Pipeline) Dispatch(in []reflect.Value) (out []reflect.Value) {
	receiver, args := p.target.convention.trampoline().split(in)

	snapshot := p.chain.Load()
	if len(snapshot.nodes) == 0 {
		return p.callOriginal(receiver, args, nil)
	}
	layout := snapshot.Layout()
	metrics.Default().Dispatches.WithLabelValues(p.target.name).Inc()

	fr := frames.Get().(*frame)
	defer releaseFrame(fr)

	var arena []byte
	fr.buf, arena = alignedArena(fr.buf, layout.Total)
	fr.slots = resize(fr.slots, len(layout.Entries))
	call := &fr.call
	call.reset(p.target, receiver, args)

	contextOf := func(i int) CallContext {
		e := layout.Entries[i]
		return CallContext{bytes: arena[e.Offset : e.Offset+e.Size : e.Offset+e.Size], frame: &fr.slots[i]}
	}

	invoked := 0
	defer func() {
		if r := recover(); r != nil {
			call.panicking = true
			call.panicValue = r
		}
		if !call.proceeded {
			call.ensureResults()
		}
		runAfters(layout.Entries[:invoked], contextOf, call)
		if call.panicking {
			panic(call.panicValue)
		}
		out = call.results
	}()

	for i, entry := range layout.Entries {
		invoked = i + 1
		if !entry.Node.Before(contextOf(i), call) {
			call.vetoed = true
			metrics.Default().Vetoes.WithLabelValues(p.target.name).Inc()
			logging.Get().Trace().EmbedObject(p.target).Type("decorator", entry.Node).Msg("call refused")
			return nil
		}
	}

	if call.around != nil {
		call.results = call.around(p.proceed(receiver), call.args)
	} else {
		call.results = p.callOriginal(receiver, call.args, fr)
	}
	call.proceeded = true
	return nil
}

// proceed calls the original outside any pooled frame.
func (p *Pipeline) proceed(receiver reflect.Value) Proceed {
	return func(args []reflect.Value) []reflect.Value {
		return p.callOriginal(receiver, args, nil)
	}
}

func (p *Pipeline) callOriginal(receiver reflect.Value, args []reflect.Value, fr *frame) []reflect.Value {
	var buf []reflect.Value
	if fr != nil {
		buf = fr.joined
	}
	in := p.target.convention.trampoline().join(receiver, args, buf)
	if fr != nil && p.target.convention == ConventionMethod {
		fr.joined = in
	}
	original := p.Original()
	if p.target.typ.IsVariadic() {
		return original.CallSlice(in)
	}
	return original.Call(in)
}

// runAfters calls the after-phases in reverse. Each one is deferred so a panicking
// after-phase does not skip the ones registered before it.
func runAfters(entries []DecoratorEntry, contextOf func(int) CallContext, call *Invocation) {
	n := len(entries)
	if n == 0 {
		return
	}
	defer runAfters(entries[:n-1], contextOf, call)
	entries[n-1].Node.After(contextOf(n-1), call)
}

func releaseFrame(fr *frame) {
	fr.call = Invocation{}
	clear(fr.slots)
	clear(fr.joined)
	fr.joined = fr.joined[:0]
	frames.Put(fr)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}
