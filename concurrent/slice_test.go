package concurrent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice(t *testing.T) {
	t.Run("it should keep append order for a single writer", func(t *testing.T) {
		// GIVEN
		s := NewSlice[string]()

		// WHEN
		s.Append("before:logging", "before:limit")
		s.Append("after:limit")

		// THEN
		assert.Equal(t, []string{"before:logging", "before:limit", "after:limit"}, s.Get())
	})

	t.Run("it should accept concurrent writers", func(t *testing.T) {
		// GIVEN
		s := NewSlice[int]()
		var wg sync.WaitGroup

		// WHEN
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Append(i)
			}()
		}
		wg.Wait()

		// THEN
		assert.Equal(t, 50, s.Length())
	})

	t.Run("it should return copies", func(t *testing.T) {
		// GIVEN
		s := NewSlice[int]()
		s.Append(1, 2)

		// WHEN
		snapshot := s.Get()
		snapshot[0] = 42

		// THEN
		assert.Equal(t, []int{1, 2}, s.Get())
	})

	t.Run("it should drain the entries", func(t *testing.T) {
		// GIVEN
		s := NewSlice[int]()
		s.Append(1, 2)

		// WHEN
		drained := s.Drain()

		// THEN
		assert.Equal(t, []int{1, 2}, drained)
		assert.Equal(t, 0, s.Length())
		assert.Equal(t, []int{}, s.Drain())
	})

	t.Run("it should wake up a waiter once enough entries are appended", func(t *testing.T) {
		// GIVEN
		s := NewSlice[string]()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		go func() {
			s.Append("a")
			s.Append("b")
		}()

		// WHEN
		err := s.WaitLength(ctx, 2)

		// THEN
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, s.Get())
	})

	t.Run("it should give up when the context is done", func(t *testing.T) {
		// GIVEN
		s := NewSlice[string]()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// WHEN
		err := s.WaitLength(ctx, 1)

		// THEN
		assert.ErrorIs(t, err, context.Canceled)
	})
}
