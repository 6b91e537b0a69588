package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// TaskStore holds deployment tasks. Implementations return copies, so a
// caller never observes a task mid-update.
type TaskStore interface {
	Create(ctx context.Context, task *models.DeployTask) error

	// Get wraps apperrors.ErrNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*models.DeployTask, error)

	// Update applies fn to the stored task atomically and returns the
	// result. When fn fails nothing is written.
	Update(ctx context.Context, id uuid.UUID, fn func(*models.DeployTask) error) (*models.DeployTask, error)
}

// MemoryTaskStore keeps tasks in process memory. Tasks are lost on restart.
// Terminal tasks older than the TTL are dropped on the next Create.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.DeployTask
	ttl   time.Duration
	now   func() time.Time
}

var _ TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty store. ttl <= 0 keeps tasks forever.
func NewMemoryTaskStore(ttl time.Duration) *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[uuid.UUID]*models.DeployTask),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryTaskStore) Create(ctx context.Context, task *models.DeployTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s: %w", task.ID, apperrors.ErrConflict)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryTaskStore) Get(ctx context.Context, id uuid.UUID) (*models.DeployTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	return task.Clone(), nil
}

func (s *MemoryTaskStore) Update(ctx context.Context, id uuid.UUID, fn func(*models.DeployTask) error) (*models.DeployTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.tasks[id] = working
	return working.Clone(), nil
}

// Len returns the number of stored tasks.
func (s *MemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *MemoryTaskStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, t := range s.tasks {
		if t.Status.IsTerminal() && t.EndTime != nil && t.EndTime.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}

const redisTaskKeyPrefix = "admingen:deploy_task:"

// RedisTaskStore keeps tasks as JSON in Redis so status survives restarts
// and is visible to every instance. Keys expire after the TTL.
type RedisTaskStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ TaskStore = (*RedisTaskStore)(nil)

// NewRedisTaskStore creates a store on client. ttl <= 0 disables expiry.
func NewRedisTaskStore(client redis.UniversalClient, ttl time.Duration) *RedisTaskStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisTaskStore{client: client, ttl: ttl}
}

func redisTaskKey(id uuid.UUID) string {
	return redisTaskKeyPrefix + id.String()
}

func (s *RedisTaskStore) Create(ctx context.Context, task *models.DeployTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	ok, err := s.client.SetNX(ctx, redisTaskKey(task.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, apperrors.ErrConflict)
	}
	return nil
}

func (s *RedisTaskStore) Get(ctx context.Context, id uuid.UUID) (*models.DeployTask, error) {
	data, err := s.client.Get(ctx, redisTaskKey(id)).Bytes()
	if err != nil {
		return nil, redisErr(id, err)
	}
	return decodeTask(id, data)
}

func (s *RedisTaskStore) Update(ctx context.Context, id uuid.UUID, fn func(*models.DeployTask) error) (*models.DeployTask, error) {
	key := redisTaskKey(id)
	var updated *models.DeployTask

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return redisErr(id, err)
		}
		task, err := decodeTask(id, data)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}
		out, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("store task %s: %w", id, err)
		}
		updated = task
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func redisErr(id uuid.UUID, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	return fmt.Errorf("load task %s: %w", id, err)
}

func decodeTask(id uuid.UUID, data []byte) (*models.DeployTask, error) {
	var task models.DeployTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &task, nil
}
