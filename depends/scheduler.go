package depends

import (
	"context"
	"sync"
	"time"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/a-peyrard/blackmagic/option"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultIdleWait = 50 * time.Millisecond

type (
	step struct {
		task  Resumable
		state *State
	}

	// Scheduler is a FIFO of task steps. Each step runs with its session active
	// on the goroutine driving the scheduler; drive it from one goroutine at a time.
	Scheduler struct {
		mu       sync.Mutex
		queue    []step
		wake     chan struct{}
		idleWait time.Duration
		gauge    prometheus.Gauge
	}

	SchedulerOptions struct {
		idleWait time.Duration
		gauge    prometheus.Gauge
	}
)

var (
	defaultScheduler     *Scheduler
	defaultSchedulerOnce sync.Once
)

// WithIdleWait sets how long Run sleeps on an empty queue before polling again.
func WithIdleWait(d time.Duration) option.Option[SchedulerOptions] {
	return func(opts *SchedulerOptions) {
		if d > 0 {
			opts.idleWait = d
		}
	}
}

// WithQueueGauge publishes the queue length.
func WithQueueGauge(g prometheus.Gauge) option.Option[SchedulerOptions] {
	return func(opts *SchedulerOptions) {
		opts.gauge = g
	}
}

func NewScheduler(opts ...option.Option[SchedulerOptions]) *Scheduler {
	options := option.Build(&SchedulerOptions{idleWait: defaultIdleWait}, opts...)
	return &Scheduler{
		wake:     make(chan struct{}, 1),
		idleWait: options.idleWait,
		gauge:    options.gauge,
	}
}

// DefaultScheduler is the process-wide scheduler used by Task.Get.
func DefaultScheduler() *Scheduler {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = NewScheduler(WithQueueGauge(metrics.Default().SchedulerQueue))
	})
	return defaultScheduler
}

// Enqueue queues task to run under state, the current session when nil.
// A task already queued, running or done is left alone.
func (s *Scheduler) Enqueue(task Resumable, state *State) bool {
	if task == nil || !task.markEnqueued() {
		return false
	}
	if state == nil {
		state = CurrentState()
	}
	state.retain()

	s.mu.Lock()
	s.queue = append(s.queue, step{task: task, state: state})
	s.publish()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// RunOne runs the oldest step and reports whether there was one.
func (s *Scheduler) RunOne() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	next := s.queue[0]
	s.queue[0] = step{}
	s.queue = s.queue[1:]
	s.publish()
	s.mu.Unlock()

	restore := Activate(next.state)
	defer func() {
		restore()
		next.state.release()
	}()
	next.task.resume(s, next.state)
	metrics.Default().SchedulerSteps.Inc()
	return true
}

// RunUntilIdle drains the queue and returns how many steps ran.
func (s *Scheduler) RunUntilIdle() int {
	n := 0
	for s.RunOne() {
		n++
	}
	return n
}

// SetIdleWait changes the polling interval of Run. Non-positive values are ignored.
func (s *Scheduler) SetIdleWait(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleWait = d
}

func (s *Scheduler) IdleWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleWait
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run drives the scheduler until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := logging.Get()
	logger.Debug().Dur("idleWait", s.IdleWait()).Msg("scheduler started")
	timer := time.NewTimer(s.IdleWait())
	defer timer.Stop()
	for {
		if n := s.RunUntilIdle(); n > 0 {
			logger.Trace().Int("steps", n).Msg("scheduler drained")
		}
		timer.Reset(s.IdleWait())
		select {
		case <-ctx.Done():
			logger.Debug().Msg("scheduler stopped")
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) publish() {
	if s.gauge != nil {
		s.gauge.Set(float64(len(s.queue)))
	}
}
