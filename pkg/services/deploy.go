package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/fsutil"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services/workqueue"
)

// groupMilestones is the progress reached after each group, in deploy order.
var groupMilestones = map[string]int{
	models.GroupFrontend: 33,
	models.GroupBackend:  66,
	models.GroupSQL:      90,
}

// Previewer renders a stored config. Satisfied by GeneratorService.
type Previewer interface {
	Preview(ctx context.Context, configID uuid.UUID) (*PreviewResult, error)
}

// GeneratedMarker records successful deployments. Satisfied by GenConfigService.
type GeneratedMarker interface {
	MarkGenerated(ctx context.Context, id uuid.UUID) error
}

// DeployService writes generated files into destination trees in the
// background. Callers poll GetTaskStatus for the outcome.
type DeployService interface {
	// Deploy renders the config synchronously, then queues the write phase
	// and returns the new task id without waiting for it.
	Deploy(ctx context.Context, configID uuid.UUID, opts models.DeployOptions) (uuid.UUID, error)

	// GetTaskStatus wraps apperrors.ErrNotFound for unknown ids.
	GetTaskStatus(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error)

	// Cancel fails a processing task and stops its job at the next file.
	Cancel(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error)
}

type deployService struct {
	generator Previewer
	configs   GeneratedMarker
	store     TaskStore
	queue     *workqueue.Queue
	fs        *fsutil.FS
	roots     config.GeneratorConfig
	logger    *zap.Logger
}

var _ DeployService = (*deployService)(nil)

// NewDeployService creates a deploy service. roots supplies the destination
// trees used when options leave a path empty.
func NewDeployService(
	generator Previewer,
	configs GeneratedMarker,
	store TaskStore,
	queue *workqueue.Queue,
	fs *fsutil.FS,
	roots config.GeneratorConfig,
	logger *zap.Logger,
) DeployService {
	return &deployService{
		generator: generator,
		configs:   configs,
		store:     store,
		queue:     queue,
		fs:        fs,
		roots:     roots,
		logger:    logger.Named("deploy"),
	}
}

func (s *deployService) Deploy(ctx context.Context, configID uuid.UUID, opts models.DeployOptions) (uuid.UUID, error) {
	if err := validateStruct(opts); err != nil {
		return uuid.Nil, err
	}
	if !opts.GenerateFrontend && !opts.GenerateBackend && !opts.GenerateSQL {
		return uuid.Nil, fmt.Errorf("no target group selected: %w", apperrors.ErrInvalidInput)
	}

	preview, err := s.generator.Preview(ctx, configID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, g := range models.Groups {
		if opts.Enabled(g) {
			if err := preview.GroupErr(g); err != nil {
				return uuid.Nil, fmt.Errorf("%s: %w", g, err)
			}
		}
	}

	task := models.NewDeployTask(configID, opts)
	_ = task.Log("deployment queued")
	if err := s.store.Create(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("create deploy task: %w", err)
	}

	job := workqueue.NewFuncTask(task.ID.String(), "deploy "+configID.String(), func(jobCtx context.Context) error {
		return s.run(jobCtx, task.ID, configID, opts, preview)
	})
	if err := s.queue.Enqueue(job); err != nil {
		s.fail(task.ID, fmt.Sprintf("could not queue deployment: %v", err))
		return uuid.Nil, fmt.Errorf("queue deploy task: %w", err)
	}

	s.logger.Info("Deployment queued",
		zap.String("task_id", task.ID.String()),
		zap.String("config_id", configID.String()),
		zap.Bool("frontend", opts.GenerateFrontend),
		zap.Bool("backend", opts.GenerateBackend),
		zap.Bool("sql", opts.GenerateSQL),
		zap.Bool("overwrite", opts.Overwrite),
	)
	return task.ID, nil
}

func (s *deployService) GetTaskStatus(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error) {
	return s.store.Get(ctx, taskID)
}

func (s *deployService) Cancel(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error) {
	task, err := s.store.Update(ctx, taskID, func(t *models.DeployTask) error {
		return t.Fail("cancelled")
	})
	if err != nil {
		return nil, err
	}
	s.queue.Cancel(taskID.String())

	s.logger.Info("Deployment cancelled", zap.String("task_id", taskID.String()))
	return task, nil
}

// run is the background write phase. Errors end up on the task, never with
// the Deploy caller.
func (s *deployService) run(ctx context.Context, taskID, configID uuid.UUID, opts models.DeployOptions, preview *PreviewResult) error {
	start := time.Now()
	if err := s.update(taskID, func(t *models.DeployTask) error {
		return t.Log("deployment started")
	}); err != nil {
		return s.stopped(taskID, err)
	}

	for _, group := range models.Groups {
		if opts.Enabled(group) {
			if err := s.writeGroup(ctx, taskID, group, s.root(group, opts), preview.Files(group), opts.Overwrite); err != nil {
				return s.finishFailed(taskID, start, err)
			}
		}
		if err := s.update(taskID, func(t *models.DeployTask) error {
			return t.Advance(groupMilestones[group])
		}); err != nil {
			return s.stopped(taskID, err)
		}
	}

	if err := s.configs.MarkGenerated(ctx, configID); err != nil {
		return s.finishFailed(taskID, start, fmt.Errorf("mark config generated: %w", err))
	}

	if err := s.update(taskID, func(t *models.DeployTask) error {
		if err := t.Log("deployment completed"); err != nil {
			return err
		}
		return t.Complete()
	}); err != nil {
		return s.stopped(taskID, err)
	}

	deployTasks.WithLabelValues(string(models.DeployStatusCompleted)).Inc()
	deployDuration.WithLabelValues(string(models.DeployStatusCompleted)).Observe(time.Since(start).Seconds())
	s.logger.Info("Deployment completed",
		zap.String("task_id", taskID.String()),
		zap.String("config_id", configID.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *deployService) writeGroup(ctx context.Context, taskID uuid.UUID, group, root string, files []models.GeneratedFile, overwrite bool) error {
	written, skipped := 0, 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(root, filepath.FromSlash(f.RelativePath))

		exists, err := s.fs.Exists(dest)
		if err != nil {
			return err
		}
		if exists && !overwrite {
			skipped++
			deployFiles.WithLabelValues(group, "skipped").Inc()
			if err := s.update(taskID, func(t *models.DeployTask) error {
				return t.Log("skipped existing file %s", dest)
			}); err != nil {
				return err
			}
			continue
		}

		if err := s.fs.WriteFile(dest, []byte(f.Content)); err != nil {
			return err
		}
		written++
		deployFiles.WithLabelValues(group, "written").Inc()
		if err := s.update(taskID, func(t *models.DeployTask) error {
			return t.Log("wrote %s", dest)
		}); err != nil {
			return err
		}
	}

	return s.update(taskID, func(t *models.DeployTask) error {
		return t.Log("%s files deployed to %s (%d written, %d skipped)", group, root, written, skipped)
	})
}

func (s *deployService) root(group string, opts models.DeployOptions) string {
	switch group {
	case models.GroupFrontend:
		if opts.FrontendPath != "" {
			return opts.FrontendPath
		}
		return s.roots.FrontendRoot
	case models.GroupBackend:
		if opts.BackendPath != "" {
			return opts.BackendPath
		}
		return s.roots.BackendRoot
	}
	if opts.SQLPath != "" {
		return opts.SQLPath
	}
	return s.roots.SQLRoot
}

// update writes task changes with a context detached from the job, so a
// cancelled job can still record why it stopped.
func (s *deployService) update(taskID uuid.UUID, fn func(*models.DeployTask) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.store.Update(ctx, taskID, fn)
	return err
}

func (s *deployService) fail(taskID uuid.UUID, reason string) {
	if err := s.update(taskID, func(t *models.DeployTask) error { return t.Fail(reason) }); err != nil &&
		!errors.Is(err, apperrors.ErrTaskTerminal) {
		s.logger.Error("Failed to record deployment failure",
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
	}
}

func (s *deployService) finishFailed(taskID uuid.UUID, start time.Time, cause error) error {
	if errors.Is(cause, apperrors.ErrTaskTerminal) {
		return s.stopped(taskID, cause)
	}
	reason := cause.Error()
	if errors.Is(cause, context.Canceled) {
		reason = "cancelled"
	}
	s.fail(taskID, reason)

	deployTasks.WithLabelValues(string(models.DeployStatusFailed)).Inc()
	deployDuration.WithLabelValues(string(models.DeployStatusFailed)).Observe(time.Since(start).Seconds())
	s.logger.Error("Deployment failed",
		zap.String("task_id", taskID.String()),
		zap.String("reason", reason),
	)
	return cause
}

// stopped handles a task that was already ended elsewhere, usually by Cancel.
func (s *deployService) stopped(taskID uuid.UUID, err error) error {
	if errors.Is(err, apperrors.ErrTaskTerminal) {
		deployTasks.WithLabelValues(string(models.DeployStatusFailed)).Inc()
		s.logger.Info("Deployment stopped, task already terminal", zap.String("task_id", taskID.String()))
		return context.Canceled
	}
	s.logger.Error("Deployment task update failed",
		zap.String("task_id", taskID.String()),
		zap.Error(err),
	)
	return err
}
