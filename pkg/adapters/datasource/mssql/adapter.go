package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// Dialect introspects SQL Server through INFORMATION_SCHEMA and the sys
// catalog views. Table listings are filtered and paged in SQL.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Info() datasource.DialectInfo {
	return datasource.DialectInfo{
		Type:        models.DatasourceMSSQL,
		DisplayName: "Microsoft SQL Server",
		DefaultPort: DefaultPort,
		SQLPaging:   true,
	}
}

// Open creates a database/sql pool and pings it.
func (Dialect) Open(ctx context.Context, params models.ConnectionParams, opts datasource.PoolOptions) (datasource.PoolConnector, error) {
	cfg := FromParams(params)

	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w: %w", apperrors.ErrConnection, err)
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
		return nil, fmt.Errorf("ping sqlserver %s:%d: %w: %w", cfg.Host, cfg.Port, apperrors.ErrConnection, err)
	}
	return NewConn(db, cfg.Schema), nil
}

// Conn is a pooled SQL Server connection bound to one default schema.
type Conn struct {
	*datasource.SQLPoolWrapper
	db     *sql.DB
	schema string
}

// NewConn wraps an existing pool.
func NewConn(db *sql.DB, schema string) *Conn {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Conn{SQLPoolWrapper: datasource.NewSQLPoolWrapper(db, models.DatasourceMSSQL), db: db, schema: schema}
}

func asConn(conn datasource.PoolConnector) (*Conn, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("connector of type %s is not a SQL Server connection", conn.GetType())
	}
	return c, nil
}

// Probe returns the server version banner.
func (Dialect) Probe(ctx context.Context, conn datasource.PoolConnector) (string, error) {
	c, err := asConn(conn)
	if err != nil {
		return "", err
	}
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
		return "", fmt.Errorf("query version: %w: %w", apperrors.ErrConnection, err)
	}
	return version, nil
}
