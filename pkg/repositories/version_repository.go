package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-admingen/pkg/database"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// VersionRepository defines the interface for version snapshot data access.
// Versions are immutable: there is no update.
type VersionRepository interface {
	Create(ctx context.Context, v *models.Version) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error)

	// ListByConfig returns versions newest first.
	ListByConfig(ctx context.Context, configID uuid.UUID) ([]*models.Version, error)

	// GetLatest returns the most recently created version, or ErrNotFound.
	GetLatest(ctx context.Context, configID uuid.UUID) (*models.Version, error)
}

type versionRepository struct {
	db *database.DB
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *database.DB) VersionRepository {
	return &versionRepository{db: db}
}

const versionColumns = `id, config_id, config_snapshot, file_snapshot, version, description, created_by, created_at`

func (r *versionRepository) Create(ctx context.Context, v *models.Version) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()

	query := `
		INSERT INTO gen_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		v.ID,
		v.ConfigID,
		[]byte(v.ConfigSnapshot),
		[]byte(v.FileSnapshot),
		v.Version,
		v.Description,
		v.CreatedBy,
		v.CreatedAt,
	)
	if err != nil {
		return wrapErr("create version", err)
	}
	return nil
}

func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	v, err := scanVersion(r.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM gen_versions WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get version", err)
	}
	return v, nil
}

func (r *versionRepository) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM gen_versions WHERE config_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []*models.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return versions, nil
}

func (r *versionRepository) GetLatest(ctx context.Context, configID uuid.UUID) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM gen_versions WHERE config_id = $1 ORDER BY created_at DESC LIMIT 1`

	v, err := scanVersion(r.db.QueryRow(ctx, query, configID))
	if err != nil {
		return nil, wrapErr("get latest version", err)
	}
	return v, nil
}

func scanVersion(row pgx.Row) (*models.Version, error) {
	var v models.Version
	var configSnapshot, fileSnapshot []byte
	err := row.Scan(
		&v.ID,
		&v.ConfigID,
		&configSnapshot,
		&fileSnapshot,
		&v.Version,
		&v.Description,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.ConfigSnapshot = configSnapshot
	v.FileSnapshot = fileSnapshot
	return &v, nil
}

var _ VersionRepository = (*versionRepository)(nil)
