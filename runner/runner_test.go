package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunAll(t *testing.T) {
	t.Run("it should run every runnable", func(t *testing.T) {
		// GIVEN
		var counter atomic.Int32
		inc := func(v int32) Runnable {
			return RunnableFunc(func(context.Context) error {
				counter.Add(v)
				return nil
			})
		}

		// WHEN
		err := RunAll(context.Background(), inc(1), inc(2), inc(3))

		// THEN
		assert.NoError(t, err)
		assert.Equal(t, int32(6), counter.Load())
	})

	t.Run("it should cancel the others when one runnable fails", func(t *testing.T) {
		// GIVEN
		failing := RunnableFunc(func(context.Context) error {
			return errors.New("scheduler crashed")
		})
		blocking := RunnableFunc(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("not cancelled")
			}
		})

		// WHEN
		err := RunAll(context.Background(), failing, blocking)

		// THEN
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler crashed")
	})

	t.Run("it should handle empty runnable list", func(t *testing.T) {
		// GIVEN / WHEN
		err := RunAll(context.Background())

		// THEN
		assert.NoError(t, err)
	})
}
