package hook

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valueOf(v any) reflect.Value {
	return reflect.ValueOf(v)
}

func sizedDecorator(size int) Decorator {
	return &DecoratorFuncs{Size: size}
}

func TestLayout(t *testing.T) {
	t.Run("it should align every non empty slice", func(t *testing.T) {
		// GIVEN
		nodes := []Decorator{sizedDecorator(3), sizedDecorator(0), sizedDecorator(20)}

		// WHEN
		layout := buildLayout(nodes)

		// THEN
		require.Len(t, layout.Entries, 3)
		assert.Equal(t, 0, layout.Entries[0].Offset)
		assert.Equal(t, 3, layout.Entries[1].Offset)
		assert.Equal(t, 0, layout.Entries[1].Size)
		assert.Equal(t, 16, layout.Entries[2].Offset)
		assert.Equal(t, 48, layout.Total)
	})

	t.Run("it should recompute the layout after a chain mutation", func(t *testing.T) {
		// GIVEN
		p, err := newTestRegistry().GetOrCreate(multiply)
		require.NoError(t, err)
		first := sizedDecorator(8)
		require.True(t, p.Register(first))
		require.Equal(t, 16, p.Layout().Total)

		// WHEN
		require.True(t, p.Register(sizedDecorator(24)))

		// THEN
		assert.Equal(t, 48, p.Layout().Total)
		assert.Equal(t, 16, p.Layout().Entries[1].Offset)
	})
}

func TestContextAs(t *testing.T) {
	arena := func(n int) []byte {
		_, a := alignedArena(nil, n)
		return a
	}

	t.Run("it should view an aligned slice as a typed value", func(t *testing.T) {
		// GIVEN
		ctx := CallContext{bytes: arena(16)}

		// WHEN
		v := ContextAs[[2]int64](ctx)

		// THEN
		require.NotNil(t, v)
		v[1] = 42
		assert.Equal(t, byte(42), ctx.Bytes()[8])
	})

	t.Run("it should refuse a slice too small", func(t *testing.T) {
		assert.Nil(t, ContextAs[int64](CallContext{bytes: arena(4)}))
	})

	t.Run("it should refuse types holding pointers", func(t *testing.T) {
		assert.Nil(t, ContextAs[*int](CallContext{bytes: arena(16)}))
		assert.Nil(t, ContextAs[string](CallContext{bytes: arena(16)}))
	})

	t.Run("it should refuse empty contexts", func(t *testing.T) {
		assert.Nil(t, ContextAs[int64](CallContext{}))
		assert.Nil(t, ContextAs[struct{}](CallContext{bytes: arena(16)}))
	})

	t.Run("it should keep frames next to the bytes", func(t *testing.T) {
		// GIVEN
		var slot any
		ctx := CallContext{frame: &slot}

		// WHEN
		ctx.SetFrame("state")

		// THEN
		assert.Equal(t, "state", ctx.Frame())
		assert.Nil(t, CallContext{}.Frame())
	})
}
