package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/database"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// TemplateRepository defines the interface for template data access.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *models.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)

	// GetByKey looks a template up by its stable key, active or not.
	GetByKey(ctx context.Context, key string) (*models.Template, error)

	// List returns templates ordered by key; an empty group returns all.
	List(ctx context.Context, group string) ([]*models.Template, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, tpl *models.Template) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type templateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *database.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, name, type, template_key, content, description, is_builtin, is_active, created_at, updated_at`

func (r *templateRepository) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	now := time.Now()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	query := `
		INSERT INTO gen_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		tpl.ID,
		tpl.Name,
		tpl.Type,
		tpl.TemplateKey,
		tpl.Content,
		tpl.Description,
		tpl.IsBuiltin,
		tpl.IsActive,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create template", err)
	}
	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	tpl, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM gen_templates WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get template", err)
	}
	return tpl, nil
}

func (r *templateRepository) GetByKey(ctx context.Context, key string) (*models.Template, error) {
	tpl, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM gen_templates WHERE template_key = $1`, key))
	if err != nil {
		return nil, wrapErr("get template "+key, err)
	}
	return tpl, nil
}

func (r *templateRepository) List(ctx context.Context, group string) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM gen_templates WHERE ($1 = '' OR type = $1) ORDER BY template_key`

	rows, err := r.db.Query(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []*models.Template{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

func (r *templateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM gen_templates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return count, nil
}

func (r *templateRepository) Update(ctx context.Context, tpl *models.Template) error {
	tpl.UpdatedAt = time.Now()

	query := `
		UPDATE gen_templates
		SET name = $2, type = $3, template_key = $4, content = $5, description = $6,
		    is_active = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		tpl.ID,
		tpl.Name,
		tpl.Type,
		tpl.TemplateKey,
		tpl.Content,
		tpl.Description,
		tpl.IsActive,
		tpl.UpdatedAt,
	)
	if err != nil {
		return wrapErr("update template", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", tpl.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *templateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM gen_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var tpl models.Template
	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Type,
		&tpl.TemplateKey,
		&tpl.Content,
		&tpl.Description,
		&tpl.IsBuiltin,
		&tpl.IsActive,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

var _ TemplateRepository = (*templateRepository)(nil)
