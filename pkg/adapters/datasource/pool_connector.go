package datasource

import "context"

// PoolConnector abstracts a live connection pool across database engines.
type PoolConnector interface {
	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes all connections in the pool
	Close() error

	// GetType returns the datasource type for logging/stats
	GetType() string
}
