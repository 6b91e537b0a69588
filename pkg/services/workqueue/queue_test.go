package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTask(fn func(ctx context.Context) error) *FuncTask {
	return NewFuncTask(uuid.NewString(), "test-task", fn)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestQueue_EnqueueAndComplete(t *testing.T) {
	q := New(zap.NewNop())

	var executed atomic.Bool
	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})))

	require.NoError(t, q.Wait(waitCtx(t)))
	assert.True(t, executed.Load())

	p := q.Progress()
	assert.Equal(t, 1, p.Completed)
}

func TestQueue_FailureIsNotRetried(t *testing.T) {
	q := New(zap.NewNop())

	var attempts atomic.Int32
	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("boom")
	})))

	require.NoError(t, q.Wait(waitCtx(t)))
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 1, q.Progress().Failed)
}

func TestQueue_PanicBecomesFailure(t *testing.T) {
	q := New(zap.NewNop())

	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
		panic("unexpected")
	})))

	require.NoError(t, q.Wait(waitCtx(t)))
	assert.Equal(t, 1, q.Progress().Failed)
}

func TestQueue_SerializedStrategy(t *testing.T) {
	q := New(zap.NewNop())

	var running, maxSeen atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
			cur := running.Add(1)
			for {
				prev := maxSeen.Load()
				if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		})))
	}

	require.NoError(t, q.Wait(waitCtx(t)))
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 3, q.Progress().Completed)
}

func TestQueue_ThrottledStrategy(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewThrottledStrategy(2)))

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
			started.Done()
			<-release
			return nil
		})))
	}

	started.Wait()
	p := q.Progress()
	assert.Equal(t, 2, p.Running)
	assert.Equal(t, 1, p.Pending)

	// the third task calls started.Done once more; absorb it
	started.Add(1)
	close(release)
	require.NoError(t, q.Wait(waitCtx(t)))
	assert.Equal(t, 3, q.Progress().Completed)
}

func TestQueue_CancelRunningTask(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewUnboundedStrategy()))

	started := make(chan struct{})
	task := newTestTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, q.Enqueue(task))
	<-started

	assert.True(t, q.Cancel(task.ID()))
	require.NoError(t, q.Wait(waitCtx(t)))
	assert.Equal(t, 1, q.Progress().Cancelled)
	assert.False(t, q.Cancel(task.ID()))
}

func TestQueue_CancelPendingTask(t *testing.T) {
	q := New(zap.NewNop())

	release := make(chan struct{})
	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
		<-release
		return nil
	})))

	var ran atomic.Bool
	pending := newTestTask(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, q.Enqueue(pending))

	assert.True(t, q.Cancel(pending.ID()))
	close(release)
	require.NoError(t, q.Wait(waitCtx(t)))

	assert.False(t, ran.Load())
	p := q.Progress()
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 1, p.Cancelled)
}

func TestQueue_DuplicateID(t *testing.T) {
	q := New(zap.NewNop())

	release := make(chan struct{})
	defer close(release)
	first := NewFuncTask("same", "a", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, q.Enqueue(first))
	assert.Error(t, q.Enqueue(NewFuncTask("same", "b", func(ctx context.Context) error { return nil })))
}

func TestQueue_Shutdown(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})))
	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error { return nil })))
	<-started

	require.NoError(t, q.Shutdown(waitCtx(t)))
	assert.Equal(t, 2, q.Progress().Cancelled)

	err := q.Enqueue(newTestTask(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_OnUpdate(t *testing.T) {
	var mu sync.Mutex
	var updates []Progress
	q := New(zap.NewNop(), WithOnUpdate(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, p)
	}))

	require.NoError(t, q.Enqueue(newTestTask(func(ctx context.Context) error { return nil })))
	require.NoError(t, q.Wait(waitCtx(t)))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	assert.Equal(t, 1, updates[len(updates)-1].Completed)
}
