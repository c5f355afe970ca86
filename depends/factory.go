package depends

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/a-peyrard/blackmagic/reflectutils"
)

type (
	// TargetKey identifies an injected function by its code address.
	TargetKey uintptr

	// FactoryKey is an opaque comparable identity of a factory function.
	// The zero key means "no factory".
	FactoryKey struct {
		id uint64
	}

	// FactoryRegistry turns function values into stable keys.
	FactoryRegistry struct {
		mu    sync.RWMutex
		keys  map[factoryIdentity]FactoryKey
		names map[FactoryKey]string
		next  uint64
	}

	factoryIdentity struct {
		signature reflect.Type
		bytes     [8]byte
	}
)

// AnyTarget registers a value for every target.
const AnyTarget TargetKey = 0

var defaultFactories = NewFactoryRegistry()

func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		keys:  make(map[factoryIdentity]FactoryKey),
		names: make(map[FactoryKey]string),
	}
}

func DefaultFactoryRegistry() *FactoryRegistry {
	return defaultFactories
}

// TargetKeyOf returns the key of a function value, AnyTarget for nil.
func TargetKeyOf(fn any) TargetKey {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return AnyTarget
	}
	return TargetKey(v.Pointer())
}

func (k TargetKey) String() string {
	if k == AnyTarget {
		return "*"
	}
	if name := reflectutils.FuncNameAt(uintptr(k)); name != "" {
		return name
	}
	return fmt.Sprintf("%#x", uintptr(k))
}

// FactoryKeyOf returns the key of fn in the default registry. Closures built from
// the same literal share a key.
func FactoryKeyOf(fn any) FactoryKey {
	return defaultFactories.Key(fn)
}

func (k FactoryKey) IsZero() bool {
	return k.id == 0
}

func (k FactoryKey) String() string {
	if k.IsZero() {
		return "<none>"
	}
	if name := defaultFactories.Name(k); name != "" {
		return name
	}
	return fmt.Sprintf("factory#%d", k.id)
}

// Key hashes the signature type together with the little-endian bytes of the code address.
func (r *FactoryRegistry) Key(fn any) FactoryKey {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return FactoryKey{}
	}
	identity := factoryIdentity{signature: v.Type()}
	binary.LittleEndian.PutUint64(identity.bytes[:], uint64(v.Pointer()))

	r.mu.RLock()
	key, ok := r.keys[identity]
	r.mu.RUnlock()
	if ok {
		return key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok = r.keys[identity]; ok {
		return key
	}
	r.next++
	key = FactoryKey{id: r.next}
	r.keys[identity] = key
	r.names[key] = reflectutils.FuncName(v)
	return key
}

func (r *FactoryRegistry) Name(key FactoryKey) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[key]
}
