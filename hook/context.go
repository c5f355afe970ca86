package hook

import (
	"reflect"
	"unsafe"

	"github.com/a-peyrard/blackmagic/reflectutils"
)

// MaxAlign is the alignment of every decorator slice inside the arena.
const MaxAlign = 16

type (
	// CallContext is the scratch memory handed to one decorator for one call.
	// The bytes are zeroed before the call and reused afterwards, so nothing may keep them.
	CallContext struct {
		bytes []byte
		frame *any
	}

	DecoratorEntry struct {
		Node   Decorator
		Offset int
		Size   int
	}

	// Layout places every decorator of one chain snapshot inside the arena.
	Layout struct {
		Entries []DecoratorEntry
		Total   int
	}
)

func (c CallContext) Bytes() []byte {
	return c.bytes
}

func (c CallContext) Size() int {
	return len(c.bytes)
}

// Frame returns the per-call value stored with SetFrame. Use it for state holding
// pointers: the garbage collector does not scan the byte arena.
func (c CallContext) Frame() any {
	if c.frame == nil {
		return nil
	}
	return *c.frame
}

func (c CallContext) SetFrame(v any) {
	if c.frame != nil {
		*c.frame = v
	}
}

// ContextAs views the slice as a *T. It returns nil when T is empty, holds
// pointers, or does not fit the slice.
func ContextAs[T any](ctx CallContext) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 || uintptr(len(ctx.bytes)) < size {
		return nil
	}
	if reflectutils.HasPointers(reflect.TypeFor[T]()) {
		return nil
	}
	p := unsafe.Pointer(unsafe.SliceData(ctx.bytes))
	if uintptr(p)%unsafe.Alignof(zero) != 0 {
		return nil
	}
	return (*T)(p)
}

func alignUp(n int) int {
	return (n + MaxAlign - 1) &^ (MaxAlign - 1)
}

func buildLayout(nodes []Decorator) Layout {
	layout := Layout{Entries: make([]DecoratorEntry, len(nodes))}
	offset := 0
	for i, node := range nodes {
		size := node.ContextSize()
		if size < 0 {
			size = 0
		}
		if size > 0 {
			offset = alignUp(offset)
		}
		layout.Entries[i] = DecoratorEntry{Node: node, Offset: offset, Size: size}
		offset += size
	}
	layout.Total = alignUp(offset)
	return layout
}

// alignedArena returns a zeroed slice of n bytes starting on a MaxAlign boundary,
// reusing buf when it is large enough.
func alignedArena(buf []byte, n int) ([]byte, []byte) {
	if cap(buf) < n+MaxAlign {
		buf = make([]byte, n+MaxAlign)
	}
	buf = buf[:cap(buf)]
	pad := 0
	if rem := uintptr(unsafe.Pointer(unsafe.SliceData(buf))) % MaxAlign; rem != 0 {
		pad = int(MaxAlign - rem)
	}
	arena := buf[pad : pad+n : pad+n]
	clear(arena)
	return buf, arena
}
