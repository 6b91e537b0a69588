package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

// DeployStatus is the lifecycle state of a deployment task.
type DeployStatus string

const (
	DeployStatusProcessing DeployStatus = "processing"
	DeployStatusCompleted  DeployStatus = "completed"
	DeployStatusFailed     DeployStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s DeployStatus) IsTerminal() bool {
	return s == DeployStatusCompleted || s == DeployStatusFailed
}

// DeployOptions selects what a deployment writes and where.
// Empty paths fall back to the configured generator roots.
type DeployOptions struct {
	GenerateFrontend bool   `json:"generate_frontend"`
	GenerateBackend  bool   `json:"generate_backend"`
	GenerateSQL      bool   `json:"generate_sql"`
	Overwrite        bool   `json:"overwrite"`
	FrontendPath     string `json:"frontend_path,omitempty" validate:"omitempty,max=4096"`
	BackendPath      string `json:"backend_path,omitempty" validate:"omitempty,max=4096"`
	SQLPath          string `json:"sql_path,omitempty" validate:"omitempty,max=4096"`
}

// Enabled reports whether the group is selected for writing.
func (o DeployOptions) Enabled(group string) bool {
	switch group {
	case GroupFrontend:
		return o.GenerateFrontend
	case GroupBackend:
		return o.GenerateBackend
	case GroupSQL:
		return o.GenerateSQL
	}
	return false
}

// AllTargets returns options enabling every group with overwrite on.
func AllTargets() DeployOptions {
	return DeployOptions{
		GenerateFrontend: true,
		GenerateBackend:  true,
		GenerateSQL:      true,
		Overwrite:        true,
	}
}

// LogLine is one timestamped entry of a deployment log.
type LogLine struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// DeployTask tracks one asynchronous deployment. It starts in processing and
// ends in completed or failed; a terminal task never changes again.
type DeployTask struct {
	ID        uuid.UUID     `json:"id"`
	ConfigID  uuid.UUID     `json:"config_id"`
	Status    DeployStatus  `json:"status"`
	Progress  int           `json:"progress"`
	Logs      []LogLine     `json:"logs"`
	Options   DeployOptions `json:"options"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewDeployTask creates a task in the processing state.
func NewDeployTask(configID uuid.UUID, opts DeployOptions) *DeployTask {
	return &DeployTask{
		ID:        uuid.New(),
		ConfigID:  configID,
		Status:    DeployStatusProcessing,
		Logs:      []LogLine{},
		Options:   opts,
		StartTime: time.Now(),
	}
}

// Log appends a timestamped line. Terminal tasks reject new lines.
func (t *DeployTask) Log(format string, args ...any) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("task %s: %w", t.ID, apperrors.ErrTaskTerminal)
	}
	t.Logs = append(t.Logs, LogLine{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
	return nil
}

// Advance moves progress forward, clamped to 0..100. Lower values are ignored.
func (t *DeployTask) Advance(progress int) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("task %s: %w", t.ID, apperrors.ErrTaskTerminal)
	}
	progress = min(max(progress, 0), 100)
	if progress > t.Progress {
		t.Progress = progress
	}
	return nil
}

// Complete marks the task completed at 100%.
func (t *DeployTask) Complete() error {
	if err := t.Advance(100); err != nil {
		return err
	}
	t.finish(DeployStatusCompleted)
	return nil
}

// Fail marks the task failed and records the reason as a final log line.
func (t *DeployTask) Fail(reason string) error {
	if err := t.Log("deploy failed: %s", reason); err != nil {
		return err
	}
	t.Error = reason
	t.finish(DeployStatusFailed)
	return nil
}

func (t *DeployTask) finish(status DeployStatus) {
	now := time.Now()
	t.Status = status
	t.EndTime = &now
}

// Clone returns a deep copy safe to hand to callers.
func (t *DeployTask) Clone() *DeployTask {
	c := *t
	c.Logs = append([]LogLine(nil), t.Logs...)
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}
