package handlers

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services"
)

type mockPreviewer struct {
	result *services.PreviewResult
	err    error
}

func (m *mockPreviewer) Preview(ctx context.Context, configID uuid.UUID) (*services.PreviewResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockDeployService struct {
	taskID   uuid.UUID
	task     *models.DeployTask
	err      error
	gotOpts  models.DeployOptions
	gotID    uuid.UUID
	canceled bool
}

func (m *mockDeployService) Deploy(ctx context.Context, configID uuid.UUID, opts models.DeployOptions) (uuid.UUID, error) {
	m.gotID = configID
	m.gotOpts = opts
	if m.err != nil {
		return uuid.Nil, m.err
	}
	return m.taskID, nil
}

func (m *mockDeployService) GetTaskStatus(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error) {
	m.gotID = taskID
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockDeployService) Cancel(ctx context.Context, taskID uuid.UUID) (*models.DeployTask, error) {
	m.gotID = taskID
	if m.err != nil {
		return nil, m.err
	}
	m.canceled = true
	return m.task, nil
}

type mockDownloadService struct {
	archive  *services.Archive
	content  string
	err      error
	openErr  error
	cleanups int
}

func (m *mockDownloadService) BuildArchive(ctx context.Context, configID uuid.UUID) (*services.Archive, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.archive, nil
}

func (m *mockDownloadService) Open(a *services.Archive) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return io.NopCloser(strings.NewReader(m.content)), nil
}

func (m *mockDownloadService) Cleanup(a *services.Archive) {
	m.cleanups++
}

type mockVersionService struct {
	version     *models.Version
	versions    []*models.Version
	rollback    *services.RollbackResult
	err         error
	description string
	createdBy   string
}

func (m *mockVersionService) CreateSnapshot(ctx context.Context, configID uuid.UUID, description, createdBy string) (*models.Version, error) {
	m.description = description
	m.createdBy = createdBy
	if m.err != nil {
		return nil, m.err
	}
	return m.version, nil
}

func (m *mockVersionService) List(ctx context.Context, configID uuid.UUID) ([]*models.Version, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.versions, nil
}

func (m *mockVersionService) Get(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.version, nil
}

func (m *mockVersionService) Rollback(ctx context.Context, versionID uuid.UUID) (*services.RollbackResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rollback, nil
}
