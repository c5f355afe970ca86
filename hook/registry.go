package hook

import (
	"errors"
	"sync"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/option"
)

// Registry hands out one pipeline per target address for the process lifetime.
type Registry struct {
	backend   Backend
	pipelines sync.Map // uintptr -> *Pipeline
}

var defaultRegistry = NewRegistry(nil)

func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry installing hooks through backend, the default function table when nil.
func NewRegistry(backend Backend) *Registry {
	if backend == nil {
		backend = DefaultBackend()
	}
	return &Registry{backend: backend}
}

func (r *Registry) Backend() Backend {
	return r.backend
}

// GetOrCreate returns the pipeline of fn's code address, creating it on first use.
// Invalid targets are reported to the hook sink. A method value or closure sharing
// the address of an earlier one gets the earlier pipeline, whose original is the
// first function value; a warning is logged when that happens.
func (r *Registry) GetOrCreate(fn any, opts ...option.Option[TargetOptions]) (*Pipeline, error) {
	target, err := NewTarget(fn, opts...)
	if err != nil {
		var herr *HookError
		if errors.As(err, &herr) {
			failures.Report(herr)
		}
		return nil, err
	}
	if existing, ok := r.pipelines.Load(target.addr); ok {
		p := existing.(*Pipeline)
		warnShared(p.target, target)
		return p, nil
	}
	actual, _ := r.pipelines.LoadOrStore(target.addr, NewPipeline(target, r.backend))
	return actual.(*Pipeline), nil
}

// Lookup returns the pipeline of fn if one was created.
func (r *Registry) Lookup(fn any) (*Pipeline, bool) {
	target, err := NewTarget(fn)
	if err != nil {
		return nil, false
	}
	existing, ok := r.pipelines.Load(target.addr)
	if !ok {
		return nil, false
	}
	return existing.(*Pipeline), true
}

func (r *Registry) Range(f func(p *Pipeline) bool) {
	r.pipelines.Range(func(_, value any) bool {
		return f(value.(*Pipeline))
	})
}

func warnShared(existing, requested *Target) {
	if existing.closure == requested.closure {
		return
	}
	logging.Get().Warn().
		EmbedObject(existing).
		Msg("function value shares its code address with an intercepted one, calls reach the first one")
}
