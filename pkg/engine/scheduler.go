package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context) error

// Handle controls one scheduled task.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the task. A run already in progress sees its context
// cancelled; no further runs are started.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed once the task's loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Scheduler runs tasks at fixed intervals. A task that fails is retried
// with exponential backoff instead of at its regular interval until it
// succeeds again.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler whose tasks stop when parent is done or
// Stop is called.
func NewScheduler(parent context.Context, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel, logger: logger}
}

// Every runs task immediately and then every interval. Non-positive
// intervals are rejected with a nil handle.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) *Handle {
	return s.After(name, 0, interval, task)
}

// After is Every with the first run delayed by delay.
func (s *Scheduler) After(name string, delay, interval time.Duration, task Task) *Handle {
	if interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{name: name, cancel: cancel, done: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		s.loop(ctx, name, delay, interval, task)
	}()
	return h
}

func (s *Scheduler) loop(ctx context.Context, name string, first, interval time.Duration, task Task) {
	backoff := failureBackoff(interval)
	failures := 0
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduled_task_stopped", zap.String("task", name))
			return
		case <-timer.C:
		}

		delay := interval
		if err := task(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			delay = backoff.Next(failures - 1)
			s.logger.Warn("scheduled_task_failed",
				zap.String("task", name),
				zap.Int("failures", failures),
				zap.Duration("retry_in", delay),
				zap.Error(err))
		} else {
			failures = 0
		}
		timer.Reset(delay)
	}
}

// Stop cancels every task and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
