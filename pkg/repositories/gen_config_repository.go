package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/database"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// GenConfigFilter narrows List and Count. Zero values match everything.
type GenConfigFilter struct {
	ModuleName   string
	TableName    string
	DatasourceID *uuid.UUID
	Limit        int
	Offset       int
}

// GenConfigRepository defines the interface for generation config data access.
type GenConfigRepository interface {
	Create(ctx context.Context, cfg *models.GenConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GenConfig, error)
	List(ctx context.Context, filter GenConfigFilter) ([]*models.GenConfig, error)
	Count(ctx context.Context, filter GenConfigFilter) (int64, error)

	// Update overwrites every mutable column, including fields and page config.
	Update(ctx context.Context, cfg *models.GenConfig) error

	// MarkGenerated records a successful deploy.
	MarkGenerated(ctx context.Context, id uuid.UUID, at time.Time) error

	Delete(ctx context.Context, id uuid.UUID) error
}

type genConfigRepository struct {
	db *database.DB
}

// NewGenConfigRepository creates a new generation config repository.
func NewGenConfigRepository(db *database.DB) GenConfigRepository {
	return &genConfigRepository{db: db}
}

const genConfigColumns = `id, module_name, table_name, datasource_id, api_prefix, package_name,
	template_type, fields, page_config, is_generated, generated_at, author, created_at, updated_at`

func (r *genConfigRepository) Create(ctx context.Context, cfg *models.GenConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	fields, pageConfig, err := marshalConfigBlobs(cfg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO gen_configs (` + genConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		cfg.ID,
		cfg.ModuleName,
		cfg.TableName,
		cfg.DatasourceID,
		cfg.APIPrefix,
		cfg.PackageName,
		cfg.TemplateType,
		fields,
		pageConfig,
		cfg.IsGenerated,
		cfg.GeneratedAt,
		cfg.Author,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create config", err)
	}
	return nil
}

func (r *genConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GenConfig, error) {
	query := `SELECT ` + genConfigColumns + ` FROM gen_configs WHERE id = $1`

	cfg, err := scanGenConfig(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr("get config", err)
	}
	return cfg, nil
}

func (r *genConfigRepository) List(ctx context.Context, filter GenConfigFilter) ([]*models.GenConfig, error) {
	where, args := filter.where()
	query := `SELECT ` + genConfigColumns + ` FROM gen_configs` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	configs := []*models.GenConfig{}
	for rows.Next() {
		cfg, err := scanGenConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configs: %w", err)
	}
	return configs, nil
}

func (r *genConfigRepository) Count(ctx context.Context, filter GenConfigFilter) (int64, error) {
	where, args := filter.where()
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM gen_configs`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count configs: %w", err)
	}
	return count, nil
}

func (r *genConfigRepository) Update(ctx context.Context, cfg *models.GenConfig) error {
	cfg.UpdatedAt = time.Now()

	fields, pageConfig, err := marshalConfigBlobs(cfg)
	if err != nil {
		return err
	}

	query := `
		UPDATE gen_configs
		SET module_name = $2, table_name = $3, datasource_id = $4, api_prefix = $5, package_name = $6,
		    template_type = $7, fields = $8, page_config = $9, is_generated = $10, generated_at = $11,
		    author = $12, updated_at = $13
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		cfg.ID,
		cfg.ModuleName,
		cfg.TableName,
		cfg.DatasourceID,
		cfg.APIPrefix,
		cfg.PackageName,
		cfg.TemplateType,
		fields,
		pageConfig,
		cfg.IsGenerated,
		cfg.GeneratedAt,
		cfg.Author,
		cfg.UpdatedAt,
	)
	if err != nil {
		return wrapErr("update config", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("config %s: %w", cfg.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *genConfigRepository) MarkGenerated(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.Exec(ctx,
		`UPDATE gen_configs SET is_generated = TRUE, generated_at = $2, updated_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to mark config generated: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("config %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *genConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM gen_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("config %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (f GenConfigFilter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.ModuleName != "" {
		add("module_name = ?", f.ModuleName)
	}
	if f.TableName != "" {
		add("table_name = ?", f.TableName)
	}
	if f.DatasourceID != nil {
		add("datasource_id = ?", *f.DatasourceID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func marshalConfigBlobs(cfg *models.GenConfig) ([]byte, []byte, error) {
	fields := cfg.Fields
	if fields == nil {
		fields = []models.FieldDescriptor{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	pageJSON, err := json.Marshal(cfg.PageConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal page config: %w", err)
	}
	return fieldsJSON, pageJSON, nil
}

func scanGenConfig(row pgx.Row) (*models.GenConfig, error) {
	var cfg models.GenConfig
	var fields, pageConfig []byte
	err := row.Scan(
		&cfg.ID,
		&cfg.ModuleName,
		&cfg.TableName,
		&cfg.DatasourceID,
		&cfg.APIPrefix,
		&cfg.PackageName,
		&cfg.TemplateType,
		&fields,
		&pageConfig,
		&cfg.IsGenerated,
		&cfg.GeneratedAt,
		&cfg.Author,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &cfg.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(pageConfig, &cfg.PageConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page config: %w", err)
	}
	return &cfg, nil
}

var _ GenConfigRepository = (*genConfigRepository)(nil)
