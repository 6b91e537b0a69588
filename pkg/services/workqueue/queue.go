package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("work queue is shut down")

// Queue runs background tasks under a concurrency strategy. Every task gets
// its own cancellable context derived from the queue's root context. Tasks
// run once; there is no retry.
type Queue struct {
	mu     sync.Mutex
	active []*TaskState // pending and running tasks, in enqueue order
	byID   map[string]*TaskState
	closed bool

	// counters for tasks that already left the active list
	completed int
	failed    int
	cancelled int

	strategy ConcurrencyStrategy

	// done is closed whenever the active list drains
	done chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	onUpdate func(Progress)

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithOnUpdate sets a callback invoked with fresh progress whenever a task
// changes state.
//
// WARNING: The callback is invoked while holding the queue's internal lock.
// Do NOT call any Queue methods from within the callback or it will deadlock.
func WithOnUpdate(callback func(Progress)) QueueOption {
	return func(q *Queue) {
		q.onUpdate = callback
	}
}

// New creates a new work queue. The default strategy is serialized.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)
	q := &Queue{
		byID:     make(map[string]*TaskState),
		strategy: NewSerializedStrategy(),
		done:     done,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue adds a task and starts it if the strategy allows.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("queue shut down, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return ErrQueueClosed
	}
	if _, exists := q.byID[task.ID()]; exists {
		return fmt.Errorf("task %s already enqueued", task.ID())
	}

	q.resetDoneLocked()

	state := NewTaskState(task)
	q.active = append(q.active, state)
	q.byID[task.ID()] = state

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()))

	q.notifyUpdateLocked()
	q.tryStartTasksLocked()
	return nil
}

// tryStartTasksLocked starts pending tasks while the strategy allows.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.closed {
		return
	}

	for _, ts := range q.active {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}
		if !q.strategy.CanStart() {
			return
		}

		q.strategy.OnStart()
		ctx, cancel := context.WithCancel(q.ctx)
		ts.cancel = cancel
		ts.SetStatus(TaskStatusRunning)
		q.notifyUpdateLocked()

		q.logger.Debug("starting task",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))

		q.wg.Add(1)
		go q.runTask(ctx, ts)
	}
}

func (q *Queue) runTask(ctx context.Context, ts *TaskState) {
	defer q.wg.Done()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		err = ts.Task.Execute(ctx)
	}()

	q.completeTask(ts, err)
}

// completeTask records the outcome and starts the next eligible tasks.
func (q *Queue) completeTask(ts *TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete()
	if ts.cancel != nil {
		ts.cancel()
	}

	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.completed++
		q.logger.Debug("task completed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		ts.SetError(err)
		q.cancelled++
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	default:
		ts.SetStatus(TaskStatusFailed)
		ts.SetError(err)
		q.failed++
		q.logger.Error("task failed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Error(err))
	}

	q.removeLocked(ts)
	q.notifyUpdateLocked()

	if len(q.active) == 0 {
		q.closeDoneLocked()
		return
	}
	q.tryStartTasksLocked()
}

func (q *Queue) removeLocked(ts *TaskState) {
	delete(q.byID, ts.Task.ID())
	for i, s := range q.active {
		if s == ts {
			q.active = append(q.active[:i], q.active[i+1:]...)
			return
		}
	}
}

// Cancel stops one task. A pending task is dropped; a running task has its
// context cancelled and finishes on its own. Returns false if the task is
// unknown or already finished.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts, ok := q.byID[taskID]
	if !ok {
		return false
	}

	switch ts.GetStatus() {
	case TaskStatusPending:
		ts.SetStatus(TaskStatusCancelled)
		ts.SetError(context.Canceled)
		q.cancelled++
		q.removeLocked(ts)
		q.notifyUpdateLocked()
		if len(q.active) == 0 {
			q.closeDoneLocked()
		}
	case TaskStatusRunning:
		if ts.cancel != nil {
			ts.cancel()
		}
	}

	q.logger.Info("task cancellation requested", zap.String("task_id", taskID))
	return true
}

// Shutdown stops accepting tasks, cancels pending and running ones and waits
// for running tasks to return or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.logger.Info("work queue shutting down", zap.Int("active", len(q.active)))
		q.cancel()

		remaining := q.active[:0]
		for _, ts := range q.active {
			if ts.GetStatus() == TaskStatusPending {
				ts.SetStatus(TaskStatusCancelled)
				ts.SetError(context.Canceled)
				q.cancelled++
				delete(q.byID, ts.Task.ID())
				continue
			}
			remaining = append(remaining, ts)
		}
		q.active = remaining
		q.notifyUpdateLocked()
		if len(q.active) == 0 {
			q.closeDoneLocked()
		}
	}
	q.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every active task has finished or ctx expires.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeDoneLocked safely closes the done channel.
// Must be called with lock held.
func (q *Queue) closeDoneLocked() {
	select {
	case <-q.done:
		// Already closed
	default:
		close(q.done)
	}
}

// resetDoneLocked recreates the done channel if it was closed.
// Must be called with lock held.
func (q *Queue) resetDoneLocked() {
	select {
	case <-q.done:
		q.done = make(chan struct{})
	default:
	}
}

// notifyUpdateLocked calls the update callback with current progress.
// Must be called with lock held.
func (q *Queue) notifyUpdateLocked() {
	if q.onUpdate == nil {
		return
	}
	q.onUpdate(q.progressLocked())
}

// Progress returns a progress summary.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progressLocked()
}

func (q *Queue) progressLocked() Progress {
	p := Progress{
		Completed: q.completed,
		Failed:    q.failed,
		Cancelled: q.cancelled,
	}
	for _, ts := range q.active {
		switch ts.GetStatus() {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning:
			p.Running++
		}
	}
	p.Total = p.Pending + p.Running + p.Completed + p.Failed + p.Cancelled
	return p
}

// Progress holds queue progress statistics.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
