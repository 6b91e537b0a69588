package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-admingen/pkg/templates"
)

// TemplateService manages template sources. The generator reads templates
// through GetByKey only.
type TemplateService interface {
	Create(ctx context.Context, tpl *models.Template) (*models.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Template, error)

	// GetByKey returns the active template for key. Missing and inactive
	// templates both wrap apperrors.ErrTemplateNotFound.
	GetByKey(ctx context.Context, key string) (*models.Template, error)

	// List returns templates of one group, or all when group is empty.
	List(ctx context.Context, group string) ([]*models.Template, error)

	// Update edits a template. Builtin templates may be edited.
	Update(ctx context.Context, tpl *models.Template) (*models.Template, error)

	// Delete removes a user template. Builtin templates wrap
	// apperrors.ErrBuiltinTemplate.
	Delete(ctx context.Context, id uuid.UUID) error

	// SeedBuiltin inserts the builtin templates when the store is empty and
	// returns how many were inserted.
	SeedBuiltin(ctx context.Context) (int, error)
}

type templateService struct {
	repo    repositories.TemplateRepository
	builtin func() ([]*models.Template, error)
	logger  *zap.Logger
}

var _ TemplateService = (*templateService)(nil)

// NewTemplateService creates a template service seeded from the embedded
// builtin pack.
func NewTemplateService(repo repositories.TemplateRepository, logger *zap.Logger) TemplateService {
	return &templateService{
		repo:    repo,
		builtin: templates.Builtin,
		logger:  logger.Named("template"),
	}
}

func (s *templateService) Create(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	if tpl == nil {
		return nil, fmt.Errorf("template is required: %w", apperrors.ErrInvalidInput)
	}
	if err := validateStruct(tpl); err != nil {
		return nil, err
	}
	tpl.IsBuiltin = false
	tpl.IsActive = true
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template %s: %w", tpl.TemplateKey, err)
	}

	s.logger.Info("Created template",
		zap.String("id", tpl.ID.String()),
		zap.String("key", tpl.TemplateKey),
	)
	return tpl, nil
}

func (s *templateService) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return tpl, nil
}

func (s *templateService) GetByKey(ctx context.Context, key string) (*models.Template, error) {
	tpl, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, apperrors.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", key, err)
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%s is inactive: %w", key, apperrors.ErrTemplateNotFound)
	}
	return tpl, nil
}

func (s *templateService) List(ctx context.Context, group string) ([]*models.Template, error) {
	list, err := s.repo.List(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return list, nil
}

func (s *templateService) Update(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	if tpl == nil {
		return nil, fmt.Errorf("template is required: %w", apperrors.ErrInvalidInput)
	}
	if err := validateStruct(tpl); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, err)
	}
	tpl.IsBuiltin = existing.IsBuiltin
	if existing.IsBuiltin && tpl.TemplateKey != existing.TemplateKey {
		return nil, fmt.Errorf("builtin template key cannot change: %w", apperrors.ErrInvalidInput)
	}

	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("update template %s: %w", tpl.ID, err)
	}

	s.logger.Info("Updated template",
		zap.String("id", tpl.ID.String()),
		zap.String("key", tpl.TemplateKey),
		zap.Bool("active", tpl.IsActive),
	)
	return tpl, nil
}

func (s *templateService) Delete(ctx context.Context, id uuid.UUID) error {
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("template %s: %w", id, err)
	}
	if tpl.IsBuiltin {
		return fmt.Errorf("template %s: %w", tpl.TemplateKey, apperrors.ErrBuiltinTemplate)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}

	s.logger.Info("Deleted template", zap.String("id", id.String()), zap.String("key", tpl.TemplateKey))
	return nil
}

func (s *templateService) SeedBuiltin(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	if count > 0 {
		s.logger.Debug("Template store not empty, skipping seed", zap.Int64("count", count))
		return 0, nil
	}

	builtin, err := s.builtin()
	if err != nil {
		return 0, err
	}
	for i, tpl := range builtin {
		if err := s.repo.Create(ctx, tpl); err != nil {
			return i, fmt.Errorf("seed template %s: %w", tpl.TemplateKey, err)
		}
	}

	s.logger.Info("Seeded builtin templates", zap.Int("count", len(builtin)))
	return len(builtin), nil
}
