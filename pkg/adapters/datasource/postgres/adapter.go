package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// Dialect introspects PostgreSQL through pg_catalog. Table listings are
// fetched in full and filtered and paged in memory, so Total always reflects
// the filtered count.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Info() datasource.DialectInfo {
	return datasource.DialectInfo{
		Type:        models.DatasourcePostgres,
		DisplayName: "PostgreSQL",
		DefaultPort: DefaultPort,
		SQLPaging:   false,
	}
}

// Open creates a pgx pool and pings it. The schema to introspect travels
// with the pool.
func (Dialect) Open(ctx context.Context, params models.ConnectionParams, opts datasource.PoolOptions) (datasource.PoolConnector, error) {
	cfg := FromParams(params)

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w: %w", apperrors.ErrConnection, err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MinConns = opts.MinConns
	if opts.MaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w: %w", apperrors.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w: %w", cfg.Host, cfg.Port, apperrors.ErrConnection, err)
	}
	return &Conn{PostgresPoolWrapper: datasource.NewPostgresPoolWrapper(pool), pool: pool, schema: cfg.Schema}, nil
}

// Conn is a pooled PostgreSQL connection bound to one schema.
type Conn struct {
	*datasource.PostgresPoolWrapper
	pool   *pgxpool.Pool
	schema string
}

// NewConn wraps an existing pool.
func NewConn(pool *pgxpool.Pool, schema string) *Conn {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Conn{PostgresPoolWrapper: datasource.NewPostgresPoolWrapper(pool), pool: pool, schema: schema}
}

func asConn(conn datasource.PoolConnector) (*Conn, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("connector of type %s is not a PostgreSQL connection", conn.GetType())
	}
	return c, nil
}

// Probe returns the server version string.
func (Dialect) Probe(ctx context.Context, conn datasource.PoolConnector) (string, error) {
	c, err := asConn(conn)
	if err != nil {
		return "", err
	}
	var version string
	if err := c.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("query version: %w: %w", apperrors.ErrConnection, err)
	}
	return version, nil
}
