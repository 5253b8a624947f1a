package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
)

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	h := s.Every("tick", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NotNil(t, h)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestScheduler_HandleStop(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	h := s.Every("tick", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	h.Stop()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
	n := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
}

func TestScheduler_StopWaitsForTasks(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	started := make(chan struct{})
	var finished atomic.Bool
	s.Every("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		finished.Store(true)
		return ctx.Err()
	})
	<-started
	s.Stop()
	assert.True(t, finished.Load())
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()
	assert.Nil(t, s.Every("never", 0, func(context.Context) error { return nil }))
}

func TestScheduler_FailuresBackOff(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	s.Every("failing", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("down")
	})
	// Delays after the first failure are 20ms, 40ms, 80ms (±10%), so far
	// fewer runs fit in the window than the interval alone would allow.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), int32(4))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestHealthMonitor(t *testing.T) {
	gw := newFakeGateway()
	m := NewHealthMonitor(gw, nil)
	assert.Nil(t, m.Healthy())
	assert.False(t, m.IsChecking())

	require.NoError(t, m.Check(context.Background()))
	require.NotNil(t, m.Healthy())
	assert.True(t, *m.Healthy())
	assert.Equal(t, "ok", m.State().Status)

	gw.healthErr = &gateway.RemoteError{StatusCode: 0, Message: "refused"}
	require.Error(t, m.Check(context.Background()))
	assert.False(t, *m.Healthy())
	assert.NotEmpty(t, m.State().Error)
}

func TestPruneWorker(t *testing.T) {
	backend := cache.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, "a", []byte("1")))
	require.NoError(t, backend.Put(ctx, "b", []byte("2")))

	w := NewPruneWorker(backend, RetentionConfig{Retention: time.Hour}, nil)
	assert.Zero(t, w.Prune(ctx))

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, int64(2), w.Prune(ctx))

	_, ok, err := backend.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPruneWorker_DisabledRunReturns(t *testing.T) {
	w := NewPruneWorker(cache.NewMemoryBackend(), RetentionConfig{}, nil)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker kept running")
	}
}

func TestPruneWorker_RunStopsWithContext(t *testing.T) {
	w := NewPruneWorker(cache.NewMemoryBackend(), RetentionConfig{Retention: time.Hour, CheckInterval: time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker ignored cancellation")
	}
}
