package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
)

// InitialVersion labels the first snapshot of a config.
const InitialVersion = "v1.0.0"

// ConfigStore reads and overwrites configs. Satisfied by GenConfigService.
type ConfigStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.GenConfig, error)
	Update(ctx context.Context, cfg *models.GenConfig) (*models.GenConfig, error)
}

// ConfigPreviewer renders a config already in hand. Satisfied by GeneratorService.
type ConfigPreviewer interface {
	PreviewConfig(ctx context.Context, cfg *models.GenConfig) *PreviewResult
}

// Deployer starts a deployment. Satisfied by DeployService.
type Deployer interface {
	Deploy(ctx context.Context, configID uuid.UUID, opts models.DeployOptions) (uuid.UUID, error)
}

// RollbackResult names the deployment started by a rollback and the
// version that was restored.
type RollbackResult struct {
	TaskID  uuid.UUID `json:"task_id"`
	Version string    `json:"version"`
}

// VersionService snapshots configs with their rendered output and restores
// them. Labels only ever bump PATCH.
type VersionService interface {
	// CreateSnapshot stores the config and its rendered files as the next
	// version. Fails when any group does not render.
	CreateSnapshot(ctx context.Context, configID uuid.UUID, description, createdBy string) (*models.Version, error)

	// List returns the versions of a config, newest first.
	List(ctx context.Context, configID uuid.UUID) ([]*models.Version, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Version, error)

	// Rollback overwrites the live config with the snapshot, discarding
	// later edits, and deploys every group with overwrite on.
	Rollback(ctx context.Context, versionID uuid.UUID) (*RollbackResult, error)
}

type versionService struct {
	repo      repositories.VersionRepository
	configs   ConfigStore
	generator ConfigPreviewer
	deployer  Deployer
	logger    *zap.Logger
}

var _ VersionService = (*versionService)(nil)

// NewVersionService creates a version service.
func NewVersionService(
	repo repositories.VersionRepository,
	configs ConfigStore,
	generator ConfigPreviewer,
	deployer Deployer,
	logger *zap.Logger,
) VersionService {
	return &versionService{
		repo:      repo,
		configs:   configs,
		generator: generator,
		deployer:  deployer,
		logger:    logger.Named("version"),
	}
}

func (s *versionService) CreateSnapshot(ctx context.Context, configID uuid.UUID, description, createdBy string) (*models.Version, error) {
	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, err
	}

	preview := s.generator.PreviewConfig(ctx, cfg)
	if err := preview.Err(); err != nil {
		return nil, fmt.Errorf("snapshot of config %s: %w", configID, err)
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config snapshot: %w", err)
	}
	filesJSON, err := json.Marshal(preview.FileSnapshot())
	if err != nil {
		return nil, fmt.Errorf("encode file snapshot: %w", err)
	}

	// Concurrent snapshots of one config may compute the same label.
	latest, err := s.repo.GetLatest(ctx, configID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("latest version of config %s: %w", configID, err)
	}
	label := InitialVersion
	if latest != nil {
		if label, err = NextVersion(latest.Version); err != nil {
			return nil, err
		}
	}

	v := &models.Version{
		ConfigID:       configID,
		ConfigSnapshot: configJSON,
		FileSnapshot:   filesJSON,
		Version:        label,
		Description:    description,
		CreatedBy:      createdBy,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	s.logger.Info("Created version snapshot",
		zap.String("id", v.ID.String()),
		zap.String("config_id", configID.String()),
		zap.String("version", label),
	)
	return v, nil
}

func (s *versionService) List(ctx context.Context, configID uuid.UUID) ([]*models.Version, error) {
	list, err := s.repo.ListByConfig(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("list versions of config %s: %w", configID, err)
	}
	return list, nil
}

func (s *versionService) Get(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", id, err)
	}
	return v, nil
}

func (s *versionService) Rollback(ctx context.Context, versionID uuid.UUID) (*RollbackResult, error) {
	v, err := s.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var snapshot models.GenConfig
	if err := json.Unmarshal(v.ConfigSnapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("decode config snapshot of version %s: %w", v.Version, err)
	}

	live, err := s.configs.Get(ctx, v.ConfigID)
	if err != nil {
		return nil, err
	}
	snapshot.ID = live.ID
	snapshot.CreatedAt = live.CreatedAt
	snapshot.IsGenerated = live.IsGenerated
	snapshot.GeneratedAt = live.GeneratedAt

	if _, err := s.configs.Update(ctx, &snapshot); err != nil {
		return nil, fmt.Errorf("restore config %s: %w", v.ConfigID, err)
	}

	taskID, err := s.deployer.Deploy(ctx, v.ConfigID, models.AllTargets())
	if err != nil {
		return nil, fmt.Errorf("deploy restored config %s: %w", v.ConfigID, err)
	}

	s.logger.Info("Rolled back config",
		zap.String("config_id", v.ConfigID.String()),
		zap.String("version", v.Version),
		zap.String("task_id", taskID.String()),
	)
	return &RollbackResult{TaskID: taskID, Version: v.Version}, nil
}

// NextVersion bumps the PATCH component: "v1.0.2" becomes "v1.0.3".
// Prerelease and build suffixes are dropped.
func NextVersion(current string) (string, error) {
	if !semver.IsValid(current) {
		return "", fmt.Errorf("stored version %q is not semantic: %w", current, apperrors.ErrInvalidInput)
	}
	canonical := semver.Canonical(current)
	core := strings.TrimSuffix(canonical, semver.Build(canonical))
	core = strings.TrimSuffix(core, semver.Prerelease(core))

	parts := strings.Split(strings.TrimPrefix(core, "v"), ".")
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("stored version %q: %w", current, err)
	}
	next := fmt.Sprintf("v%s.%s.%d", parts[0], parts[1], patch+1)
	if semver.Compare(next, canonical) <= 0 {
		return "", fmt.Errorf("version %s does not follow %s: %w", next, current, apperrors.ErrInvalidInput)
	}
	return next, nil
}
