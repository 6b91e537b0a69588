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

// DatasourceRepository defines the interface for datasource data access.
// Passwords are stored encrypted; encryption is handled by the service layer.
type DatasourceRepository interface {
	// Create inserts a new datasource. Returns ErrConflict if the name exists.
	Create(ctx context.Context, ds *models.Datasource, encryptedPassword string) error

	// GetByID retrieves a datasource and its encrypted password.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, string, error)

	// List retrieves all datasources with their encrypted passwords.
	List(ctx context.Context) ([]*models.Datasource, []string, error)

	// Update modifies an existing datasource.
	Update(ctx context.Context, ds *models.Datasource, encryptedPassword string) error

	// Delete removes a datasource by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

type datasourceRepository struct {
	db *database.DB
}

// NewDatasourceRepository creates a new datasource repository.
func NewDatasourceRepository(db *database.DB) DatasourceRepository {
	return &datasourceRepository{db: db}
}

const datasourceColumns = `id, name, datasource_type, host, port, database_name, username,
	encrypted_password, options, is_active, created_at, updated_at`

func (r *datasourceRepository) Create(ctx context.Context, ds *models.Datasource, encryptedPassword string) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO gen_datasources (` + datasourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		ds.ID,
		ds.Name,
		ds.DatasourceType,
		ds.Host,
		ds.Port,
		ds.Database,
		ds.Username,
		encryptedPassword,
		optionsOrEmpty(ds.Options),
		ds.IsActive,
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create datasource", err)
	}
	return nil
}

func (r *datasourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, string, error) {
	query := `SELECT ` + datasourceColumns + ` FROM gen_datasources WHERE id = $1`

	ds, encrypted, err := scanDatasource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, "", wrapErr("get datasource", err)
	}
	return ds, encrypted, nil
}

func (r *datasourceRepository) List(ctx context.Context) ([]*models.Datasource, []string, error) {
	query := `SELECT ` + datasourceColumns + ` FROM gen_datasources ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	var datasources []*models.Datasource
	var passwords []string
	for rows.Next() {
		ds, encrypted, err := scanDatasource(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		datasources = append(datasources, ds)
		passwords = append(passwords, encrypted)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating datasources: %w", err)
	}
	return datasources, passwords, nil
}

func (r *datasourceRepository) Update(ctx context.Context, ds *models.Datasource, encryptedPassword string) error {
	ds.UpdatedAt = time.Now()

	query := `
		UPDATE gen_datasources
		SET name = $2, datasource_type = $3, host = $4, port = $5, database_name = $6,
		    username = $7, encrypted_password = $8, options = $9, is_active = $10, updated_at = $11
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		ds.ID,
		ds.Name,
		ds.DatasourceType,
		ds.Host,
		ds.Port,
		ds.Database,
		ds.Username,
		encryptedPassword,
		optionsOrEmpty(ds.Options),
		ds.IsActive,
		ds.UpdatedAt,
	)
	if err != nil {
		return wrapErr("update datasource", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("datasource %s: %w", ds.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *datasourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM gen_datasources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete datasource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("datasource %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanDatasource(row pgx.Row) (*models.Datasource, string, error) {
	var ds models.Datasource
	var encrypted string
	err := row.Scan(
		&ds.ID,
		&ds.Name,
		&ds.DatasourceType,
		&ds.Host,
		&ds.Port,
		&ds.Database,
		&ds.Username,
		&encrypted,
		&ds.Options,
		&ds.IsActive,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, "", err
	}
	return &ds, encrypted, nil
}

func optionsOrEmpty(opts map[string]any) map[string]any {
	if opts == nil {
		return map[string]any{}
	}
	return opts
}

var _ DatasourceRepository = (*datasourceRepository)(nil)
