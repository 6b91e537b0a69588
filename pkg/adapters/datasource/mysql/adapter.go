package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// Dialect introspects MySQL through information_schema. Table listings are
// filtered and paged in SQL.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Info() datasource.DialectInfo {
	return datasource.DialectInfo{
		Type:        models.DatasourceMySQL,
		DisplayName: "MySQL",
		DefaultPort: DefaultPort,
		SQLPaging:   true,
	}
}

// Open creates a database/sql pool and pings it.
func (Dialect) Open(ctx context.Context, params models.ConnectionParams, opts datasource.PoolOptions) (datasource.PoolConnector, error) {
	cfg := FromParams(params)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w: %w", apperrors.ErrConnection, err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(int(opts.MaxConns))
	}
	db.SetMaxIdleConns(max(int(opts.MinConns), 1))
	if opts.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s:%d: %w: %w", cfg.Host, cfg.Port, apperrors.ErrConnection, err)
	}
	return datasource.NewSQLPoolWrapper(db, models.DatasourceMySQL), nil
}

// Probe returns the server version.
func (Dialect) Probe(ctx context.Context, conn datasource.PoolConnector) (string, error) {
	db, err := datasource.SQLDB(conn)
	if err != nil {
		return "", err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("query version: %w: %w", apperrors.ErrConnection, err)
	}
	return version, nil
}
