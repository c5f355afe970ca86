package depends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/a-peyrard/blackmagic/concurrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask(t *testing.T) {
	t.Run("it should run a task to completion", func(t *testing.T) {
		// GIVEN
		task := NewTask(func(*Awaiter) (int, error) { return 42, nil })

		// WHEN
		v, err := task.GetOn(NewScheduler())

		// THEN
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, StatusCompleted, task.Status())
		assert.True(t, task.Done())
	})

	t.Run("it should not start a task before it is scheduled", func(t *testing.T) {
		// GIVEN
		started := false
		task := NewTask(func(*Awaiter) (int, error) {
			started = true
			return 1, nil
		})

		// WHEN
		_, err := task.Result()

		// THEN
		assert.ErrorIs(t, err, ErrPending)
		assert.False(t, started)
		assert.Equal(t, StatusCreated, task.Status())
	})

	t.Run("it should resume the parent with the child's result", func(t *testing.T) {
		// GIVEN
		child := NewTask(func(*Awaiter) (string, error) { return "child", nil })
		parent := NewTask(func(aw *Awaiter) (string, error) {
			v, err := Await(aw, child)
			return "parent+" + v, err
		})

		// WHEN
		v, err := parent.GetOn(NewScheduler())

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "parent+child", v)
	})

	t.Run("it should propagate failures and recover panics", func(t *testing.T) {
		// GIVEN
		failing := NewTask(func(*Awaiter) (int, error) { return 0, errors.New("no luck") })
		panicking := NewTask(func(*Awaiter) (int, error) { panic("boom") })

		// WHEN
		_, failErr := failing.GetOn(NewScheduler())
		_, panicErr := panicking.GetOn(NewScheduler())

		// THEN
		assert.EqualError(t, failErr, "no luck")
		assert.Equal(t, StatusFailed, failing.Status())
		var pe *PanicError
		require.ErrorAs(t, panicErr, &pe)
		assert.Equal(t, "boom", pe.Value)
		assert.NotEmpty(t, pe.Stack)
	})

	t.Run("it should return completed tasks without scheduling", func(t *testing.T) {
		// GIVEN
		sched := NewScheduler()

		// WHEN
		v, err := Resolved(7).GetOn(sched)
		_, failErr := Failed[int](errors.New("nope")).GetOn(sched)

		// THEN
		require.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.EqualError(t, failErr, "nope")
		assert.Equal(t, 0, sched.Len())
	})

	t.Run("it should report a deadlock when the queue drains first", func(t *testing.T) {
		// GIVEN
		elsewhere := NewScheduler()
		orphan := NewTask(func(*Awaiter) (int, error) { return 1, nil })
		elsewhere.Enqueue(orphan, NewState())
		waiting := NewTask(func(aw *Awaiter) (int, error) { return Await(aw, orphan) })

		// WHEN
		_, err := waiting.GetOn(NewScheduler())

		// THEN
		assert.ErrorIs(t, err, ErrDeadlock)
		assert.Equal(t, StatusSuspended, waiting.Status())
	})

	t.Run("it should interleave started tasks", func(t *testing.T) {
		// GIVEN
		log := concurrent.NewSlice[string]()
		worker := func(name string) *Task[string] {
			return NewTask(func(aw *Awaiter) (string, error) {
				log.Append(name + ".start")
				if _, err := Await(aw, Yield()); err != nil {
					return "", err
				}
				log.Append(name + ".end")
				return name, nil
			})
		}
		first, second := worker("first"), worker("second")
		driver := NewTask(func(aw *Awaiter) ([]string, error) {
			Start(aw, first, second)
			a, err := Await(aw, first)
			if err != nil {
				return nil, err
			}
			b, err := Await(aw, second)
			return []string{a, b}, err
		})

		// WHEN
		v, err := driver.GetOn(NewScheduler())

		// THEN
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, v)
		assert.Equal(t, []string{"first.start", "second.start", "first.end", "second.end"}, log.Get())
	})

	t.Run("it should release a bound lease on completion", func(t *testing.T) {
		// GIVEN
		s := NewState()
		lease := NewLease(s)
		task := NewTask(func(*Awaiter) (int, error) { return 1, nil })
		task.BindLease(lease)

		// WHEN
		_, err := task.GetOn(NewScheduler())

		// THEN
		require.NoError(t, err)
		assert.False(t, lease.Active())
		<-task.Wait()
	})

	t.Run("it should run each step with its session active", func(t *testing.T) {
		// GIVEN
		s := NewState()
		task := NewTask(func(aw *Awaiter) (bool, error) {
			before := CurrentState() == s
			if _, err := Await(aw, Yield()); err != nil {
				return false, err
			}
			return before && CurrentState() == s && aw.State() == s, nil
		})
		task.state = s

		// WHEN
		same, err := task.GetOn(NewScheduler())

		// THEN
		require.NoError(t, err)
		assert.True(t, same)
		_, active := ActiveState()
		assert.False(t, active)
	})
}

func TestScheduler(t *testing.T) {
	t.Run("it should run steps in FIFO order", func(t *testing.T) {
		// GIVEN
		sched := NewScheduler()
		log := concurrent.NewSlice[int]()
		for i := range 3 {
			sched.Enqueue(NewTask(func(*Awaiter) (int, error) {
				log.Append(i)
				return i, nil
			}), NewState())
		}

		// WHEN
		steps := sched.RunUntilIdle()

		// THEN
		assert.Equal(t, 3, steps)
		assert.Equal(t, []int{0, 1, 2}, log.Get())
		assert.Equal(t, 0, sched.Len())
	})

	t.Run("it should not enqueue a task twice", func(t *testing.T) {
		// GIVEN
		sched := NewScheduler()
		task := NewTask(func(*Awaiter) (int, error) { return 1, nil })

		// WHEN
		first := sched.Enqueue(task, NewState())
		second := sched.Enqueue(task, NewState())

		// THEN
		assert.True(t, first)
		assert.False(t, second)
		assert.Equal(t, 1, sched.Len())
	})

	t.Run("it should drive tasks until the context is done", func(t *testing.T) {
		// GIVEN
		sched := NewScheduler(WithIdleWait(5 * time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() { errs <- sched.Run(ctx) }()
		task := NewTask(func(*Awaiter) (int, error) { return 9, nil })

		// WHEN
		sched.Enqueue(task, NewState())

		// THEN
		select {
		case <-task.Wait():
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
		v, err := task.Result()
		require.NoError(t, err)
		assert.Equal(t, 9, v)
		cancel()
		assert.NoError(t, <-errs)
	})
	t.Run("it should run tasks enqueued from several goroutines", func(t *testing.T) {
		// GIVEN
		sched := NewScheduler(WithIdleWait(5 * time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs := make(chan error, 1)
		go func() { errs <- sched.Run(ctx) }()
		log := concurrent.NewSlice[int]()

		// WHEN
		for i := range 10 {
			go sched.Enqueue(NewTask(func(*Awaiter) (int, error) {
				log.Append(i)
				return i, nil
			}), NewState())
		}

		// THEN
		require.NoError(t, log.WaitLength(ctx, 10))
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, log.Get())
		cancel()
		assert.NoError(t, <-errs)
	})
}
