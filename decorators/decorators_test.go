package decorators

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-peyrard/blackmagic/hook"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *hook.Registry {
	return hook.NewRegistry(hook.NewFuncTable())
}

func bufferLogger(buf *bytes.Buffer) *zerolog.Logger {
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &logger
}

func countLines(buf *bytes.Buffer, msg string) int {
	return strings.Count(buf.String(), `"message":"`+msg+`"`)
}

func TestLoggingAndLimit(t *testing.T) {
	t.Run("it should log the first calls and refuse the ones past the limit", func(t *testing.T) {
		// GIVEN
		var calls atomic.Int32
		f := func(x int) int {
			calls.Add(1)
			return x * 10
		}
		var buf bytes.Buffer
		limit := NewLimit(2)
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, NewLogging(bufferLogger(&buf)), limit)
		require.NoError(t, err)
		call := h.Func()

		// WHEN
		first := call(1)
		second := call(2)
		third := call(3)

		// THEN
		assert.Equal(t, 10, first)
		assert.Equal(t, 20, second)
		assert.Equal(t, 0, third)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int64(3), limit.Calls())
		assert.Equal(t, 3, countLines(&buf, "call started"))
		assert.Equal(t, 2, countLines(&buf, "call finished"))
		assert.Equal(t, 1, countLines(&buf, "call refused"))
	})

	t.Run("it should accept calls again after a reset", func(t *testing.T) {
		// GIVEN
		f := func(x int) int { return x + 1 }
		limit := NewLimit(1)
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, limit)
		require.NoError(t, err)
		call := h.Func()
		call(1)
		require.Equal(t, 0, call(1))

		// WHEN
		limit.Reset()

		// THEN
		assert.Equal(t, 2, call(1))
	})

	t.Run("it should log arguments and errors", func(t *testing.T) {
		// GIVEN
		f := func(name string) error { return assert.AnError }
		var buf bytes.Buffer
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, NewLogging(bufferLogger(&buf), WithArgs(), AtLevel(zerolog.InfoLevel)))
		require.NoError(t, err)

		// WHEN
		callErr := h.Func()("bob")

		// THEN
		assert.ErrorIs(t, callErr, assert.AnError)
		assert.Contains(t, buf.String(), `"args":["bob"]`)
		assert.Contains(t, buf.String(), `"level":"info"`)
		assert.Equal(t, 1, countLines(&buf, "call failed"))
	})
}

func TestTiming(t *testing.T) {
	t.Run("it should observe the duration of every call", func(t *testing.T) {
		// GIVEN
		f := func() { time.Sleep(2 * time.Millisecond) }
		var observed []time.Duration
		timing := NewTiming(func(_ string, d time.Duration) { observed = append(observed, d) })
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, timing)
		require.NoError(t, err)

		// WHEN
		h.Func()()
		h.Func()()

		// THEN
		require.Len(t, observed, 2)
		assert.GreaterOrEqual(t, observed[0], 2*time.Millisecond)
		assert.Equal(t, 16, h.Pipeline().Layout().Total)
	})
}

func TestRecover(t *testing.T) {
	t.Run("it should turn a panic into the error result", func(t *testing.T) {
		// GIVEN
		f := func(x int) (int, error) { panic("bad input") }
		var buf bytes.Buffer
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, NewRecover(bufferLogger(&buf)))
		require.NoError(t, err)

		// WHEN
		v, callErr := h.Func()(1)

		// THEN
		assert.Equal(t, 0, v)
		var pe *PanicError
		require.ErrorAs(t, callErr, &pe)
		assert.Equal(t, "bad input", pe.Value)
		assert.Equal(t, 1, countLines(&buf, "panic recovered"))
	})

	t.Run("it should let the panic through when there is no error result", func(t *testing.T) {
		// GIVEN
		f := func() int { panic("bad input") }
		h, err := hook.InterceptIn(newTestRegistry(), f, nil, NewRecover(bufferLogger(&bytes.Buffer{})))
		require.NoError(t, err)

		// WHEN / THEN
		assert.PanicsWithValue(t, "bad input", func() { h.Func()() })
	})
}
