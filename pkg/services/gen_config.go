package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services/inference"
)

// TableDetailer loads table metadata. Satisfied by IntrospectionService.
type TableDetailer interface {
	GetTableDetail(ctx context.Context, datasourceID uuid.UUID, table string) (*models.TableDetail, error)
}

// ImportTableRequest names a table to turn into a GenConfig. Empty optional
// fields fall back to values derived from the table or the generator config.
type ImportTableRequest struct {
	DatasourceID uuid.UUID `json:"datasource_id" validate:"required"`
	TableName    string    `json:"table_name" validate:"required,max=128"`
	ModuleName   string    `json:"module_name,omitempty" validate:"omitempty,max=100,module_name"`
	APIPrefix    string    `json:"api_prefix,omitempty"`
	PackageName  string    `json:"package_name,omitempty"`
	Author       string    `json:"author,omitempty"`
}

// GenConfigService manages generation configs.
type GenConfigService interface {
	Create(ctx context.Context, cfg *models.GenConfig) (*models.GenConfig, error)
	Get(ctx context.Context, id uuid.UUID) (*models.GenConfig, error)

	// List returns one page of configs and the total matching the filter.
	List(ctx context.Context, filter repositories.GenConfigFilter) ([]*models.GenConfig, int64, error)

	Update(ctx context.Context, cfg *models.GenConfig) (*models.GenConfig, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ImportTable introspects a table, infers its fields and persists a new
	// config with the default page layout.
	ImportTable(ctx context.Context, req ImportTableRequest) (*models.GenConfig, error)

	// MarkGenerated records a successful deployment.
	MarkGenerated(ctx context.Context, id uuid.UUID) error
}

type genConfigService struct {
	repo     repositories.GenConfigRepository
	tables   TableDetailer
	defaults config.GeneratorConfig
	logger   *zap.Logger
}

var _ GenConfigService = (*genConfigService)(nil)

// NewGenConfigService creates a config service. defaults supplies the
// author, template type, API prefix and package name of imported tables.
func NewGenConfigService(
	repo repositories.GenConfigRepository,
	tables TableDetailer,
	defaults config.GeneratorConfig,
	logger *zap.Logger,
) GenConfigService {
	return &genConfigService{
		repo:     repo,
		tables:   tables,
		defaults: defaults,
		logger:   logger.Named("gen-config"),
	}
}

func (s *genConfigService) Create(ctx context.Context, cfg *models.GenConfig) (*models.GenConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required: %w", apperrors.ErrInvalidInput)
	}
	s.applyDefaults(cfg)
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}

	s.logger.Info("Created config",
		zap.String("id", cfg.ID.String()),
		zap.String("module", cfg.ModuleName),
		zap.String("table", cfg.TableName),
	)
	return cfg, nil
}

func (s *genConfigService) Get(ctx context.Context, id uuid.UUID) (*models.GenConfig, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", id, err)
	}
	return cfg, nil
}

func (s *genConfigService) List(ctx context.Context, filter repositories.GenConfigFilter) ([]*models.GenConfig, int64, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list configs: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count configs: %w", err)
	}
	return items, total, nil
}

func (s *genConfigService) Update(ctx context.Context, cfg *models.GenConfig) (*models.GenConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required: %w", apperrors.ErrInvalidInput)
	}
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update config %s: %w", cfg.ID, err)
	}

	s.logger.Info("Updated config",
		zap.String("id", cfg.ID.String()),
		zap.String("module", cfg.ModuleName),
	)
	return cfg, nil
}

func (s *genConfigService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete config %s: %w", id, err)
	}
	s.logger.Info("Deleted config", zap.String("id", id.String()))
	return nil
}

func (s *genConfigService) ImportTable(ctx context.Context, req ImportTableRequest) (*models.GenConfig, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	detail, err := s.tables.GetTableDetail(ctx, req.DatasourceID, req.TableName)
	if err != nil {
		return nil, err
	}

	moduleName := req.ModuleName
	if moduleName == "" {
		moduleName = ModuleNameFromTable(detail.Name)
	}
	dsID := req.DatasourceID

	cfg := &models.GenConfig{
		ModuleName:   moduleName,
		TableName:    req.TableName,
		DatasourceID: &dsID,
		APIPrefix:    req.APIPrefix,
		PackageName:  req.PackageName,
		Author:       req.Author,
		Fields:       inference.InferFields(detail.Columns),
		PageConfig:   models.DefaultPageConfig(permissionPrefix(moduleName)),
	}

	created, err := s.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Imported table",
		zap.String("datasource_id", req.DatasourceID.String()),
		zap.String("table", req.TableName),
		zap.Int("fields", len(created.Fields)),
	)
	return created, nil
}

func (s *genConfigService) MarkGenerated(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkGenerated(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("mark config %s generated: %w", id, err)
	}
	return nil
}

func (s *genConfigService) applyDefaults(cfg *models.GenConfig) {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = path.Join("/", s.defaults.DefaultAPIPrefix, KebabCase(cfg.ModuleName))
	}
	if cfg.PackageName == "" {
		cfg.PackageName = s.defaults.DefaultPackageName
	}
	if cfg.TemplateType == "" {
		cfg.TemplateType = s.defaults.DefaultTemplateType
	}
	if cfg.Author == "" {
		cfg.Author = s.defaults.DefaultAuthor
	}
	if cfg.Fields == nil {
		cfg.Fields = []models.FieldDescriptor{}
	}
	if cfg.PageConfig.Permission.Prefix == "" && len(cfg.PageConfig.Permission.Actions) == 0 && cfg.PageConfig.List.PageSize == 0 {
		cfg.PageConfig = models.DefaultPageConfig(permissionPrefix(cfg.ModuleName))
	}
}

// permissionPrefix turns "user_role" into "user:role".
func permissionPrefix(moduleName string) string {
	return strings.Join(splitWords(moduleName), ":")
}
