package hook

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

type (
	// Backend creates, enables, disables and removes one detour per target address.
	Backend interface {
		CreateHook(target *Target, detour reflect.Value) (original reflect.Value, err error)
		EnableHook(target *Target) bool
		DisableHook(target *Target) bool
		RemoveHook(target *Target) bool
	}

	// Router is implemented by backends that do not patch machine code and
	// instead need callers to go through an entry stub.
	Router interface {
		Route(target *Target) reflect.Value
	}

	// FuncTable is an in-process indirection table keyed by code address.
	FuncTable struct {
		entries sync.Map // uintptr -> *tableEntry
	}

	tableEntry struct {
		original reflect.Value
		detour   reflect.Value
		enabled  atomic.Bool
	}
)

var defaultBackend = NewFuncTable()

func DefaultBackend() *FuncTable {
	return defaultBackend
}

func NewFuncTable() *FuncTable {
	return &FuncTable{}
}

func (t *FuncTable) CreateHook(target *Target, detour reflect.Value) (reflect.Value, error) {
	if target == nil || !detour.IsValid() {
		return reflect.Value{}, fmt.Errorf("nil target or detour")
	}
	entry := &tableEntry{original: target.fn, detour: detour}
	if _, loaded := t.entries.LoadOrStore(target.addr, entry); loaded {
		return reflect.Value{}, fmt.Errorf("a hook already exists at %#x", target.addr)
	}
	return target.fn, nil
}

func (t *FuncTable) EnableHook(target *Target) bool {
	entry, ok := t.lookup(target)
	if !ok {
		return false
	}
	entry.enabled.Store(true)
	return true
}

func (t *FuncTable) DisableHook(target *Target) bool {
	entry, ok := t.lookup(target)
	if !ok {
		return false
	}
	entry.enabled.Store(false)
	return true
}

func (t *FuncTable) RemoveHook(target *Target) bool {
	if target == nil {
		return false
	}
	_, loaded := t.entries.LoadAndDelete(target.addr)
	return loaded
}

// Route returns the detour of an enabled hook, the original function otherwise.
func (t *FuncTable) Route(target *Target) reflect.Value {
	if entry, ok := t.lookup(target); ok && entry.enabled.Load() {
		return entry.detour
	}
	return target.fn
}

// Enabled reports whether a hook exists and is enabled at the target address.
func (t *FuncTable) Enabled(target *Target) bool {
	entry, ok := t.lookup(target)
	return ok && entry.enabled.Load()
}

func (t *FuncTable) lookup(target *Target) (*tableEntry, bool) {
	if target == nil {
		return nil, false
	}
	raw, ok := t.entries.Load(target.addr)
	if !ok {
		return nil, false
	}
	return raw.(*tableEntry), true
}
