package datasource

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// PoolOptions sizes the pool opened for a datasource.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	MaxIdleTime time.Duration
}

// Dialect is the per-engine adapter. Adding an engine means adding one
// Dialect implementation and registering it; callers never branch on type.
//
// Every method is read-only against the target database.
type Dialect interface {
	// Info describes the dialect for discovery endpoints.
	Info() DialectInfo

	// Open creates a connection pool and verifies it with a ping.
	// Failures wrap apperrors.ErrConnection.
	Open(ctx context.Context, params models.ConnectionParams, opts PoolOptions) (PoolConnector, error)

	// Probe runs the engine's version query.
	Probe(ctx context.Context, conn PoolConnector) (string, error)

	// ListTables returns a page of user tables matching q.Filter.
	ListTables(ctx context.Context, conn PoolConnector, q models.TableQuery) (*models.TablePage, error)

	// TableDetail returns columns and indexes for one table.
	// A missing table wraps apperrors.ErrNotFound.
	TableDetail(ctx context.Context, conn PoolConnector, table string) (*models.TableDetail, error)
}

// DialectInfo describes a registered dialect.
type DialectInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "MySQL", "PostgreSQL"
	DefaultPort int    `json:"default_port"`
	// SQLPaging is true when ListTables filters and pages in SQL, false when
	// it fetches every table and pages in memory.
	SQLPaging bool `json:"sql_paging"`
}
