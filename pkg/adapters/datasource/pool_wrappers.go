package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolWrapper wraps *pgxpool.Pool to implement PoolConnector.
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
}

// NewPostgresPoolWrapper creates a new PostgreSQL pool wrapper.
func NewPostgresPoolWrapper(pool *pgxpool.Pool) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool}
}

func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

func (w *PostgresPoolWrapper) Close() error {
	w.pool.Close()
	return nil
}

func (w *PostgresPoolWrapper) GetType() string {
	return "postgres"
}

// SQLPoolWrapper wraps a database/sql pool (MySQL, SQL Server) to implement PoolConnector.
type SQLPoolWrapper struct {
	db     *sql.DB
	dbType string
}

// NewSQLPoolWrapper wraps db, reporting dbType from GetType.
func NewSQLPoolWrapper(db *sql.DB, dbType string) *SQLPoolWrapper {
	return &SQLPoolWrapper{db: db, dbType: dbType}
}

func (w *SQLPoolWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *SQLPoolWrapper) Close() error {
	return w.db.Close()
}

func (w *SQLPoolWrapper) GetType() string {
	return w.dbType
}

// PostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
func PostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector of type %s is not a PostgreSQL pool", connector.GetType())
	}
	return wrapper.pool, nil
}

// SQLDB extracts the underlying *sql.DB from a PoolConnector.
func SQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*SQLPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector of type %s is not a database/sql pool", connector.GetType())
	}
	return wrapper.db, nil
}
