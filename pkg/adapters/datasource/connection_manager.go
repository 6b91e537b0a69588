package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/logging"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultPoolMaxConns         = 5
	DefaultProbeTimeout         = 5 * time.Second
)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTLMinutes   int
	PoolMaxConns int32
	PoolMinConns int32
	ProbeTimeout time.Duration
}

// ConnectionManager caches one live pool per datasource id. Idle pools are
// closed after the TTL by a background goroutine. Failed opens and pings are
// never retried here; the caller decides.
type ConnectionManager struct {
	mu              sync.RWMutex
	connections     map[uuid.UUID]*ManagedConnection
	ttl             time.Duration
	poolOpts        PoolOptions
	probeTimeout    time.Duration
	cleanupInterval time.Duration
	lookup          func(string) (Dialect, error)
	stopped         bool
	stopChan        chan struct{}
	logger          *zap.Logger
}

// ManagedConnection is a cached pool and its last use.
type ManagedConnection struct {
	conn     PoolConnector
	lastUsed time.Time
	mu       sync.Mutex
}

// ManagerOption customizes a ConnectionManager.
type ManagerOption func(*ConnectionManager)

// WithDialectLookup replaces the global registry lookup.
func WithDialectLookup(lookup func(string) (Dialect, error)) ManagerOption {
	return func(m *ConnectionManager) {
		m.lookup = lookup
	}
}

// WithCleanupInterval sets how often idle connections are swept.
func WithCleanupInterval(d time.Duration) ManagerOption {
	return func(m *ConnectionManager) {
		if d > 0 {
			m.cleanupInterval = d
		}
	}
}

// NewConnectionManager creates a connection manager and starts its cleanup
// goroutine, which runs until Close is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger, opts ...ManagerOption) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns < 0 {
		cfg.PoolMinConns = 0
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	m := &ConnectionManager{
		connections: make(map[uuid.UUID]*ManagedConnection),
		ttl:         ttl,
		poolOpts: PoolOptions{
			MaxConns:    cfg.PoolMaxConns,
			MinConns:    cfg.PoolMinConns,
			MaxIdleTime: ttl,
		},
		probeTimeout:    cfg.ProbeTimeout,
		cleanupInterval: DefaultCleanupInterval,
		lookup:          Lookup,
		stopChan:        make(chan struct{}),
		logger:          logger.Named("connections"),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupExpiredConnections()
	return m
}

// GetConnection returns the cached pool for the datasource if it still
// answers a ping, otherwise opens, caches and returns a new one.
func (m *ConnectionManager) GetConnection(ctx context.Context, ds *models.Datasource) (PoolConnector, error) {
	dialect, err := m.lookup(ds.DatasourceType)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	managed, exists := m.connections[ds.ID]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()
		pingCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		err := managed.conn.Ping(pingCtx)
		cancel()

		if err == nil {
			managed.lastUsed = time.Now()
			conn := managed.conn
			managed.mu.Unlock()
			return conn, nil
		}
		managed.mu.Unlock()

		m.logger.Warn("cached connection unhealthy, reopening",
			zap.String("datasource_id", ds.ID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		m.removeConnection(ds.ID, managed)
	}

	return m.openConnection(ctx, ds, dialect)
}

// openConnection opens and caches a pool. Caller must NOT hold m.mu.
func (m *ConnectionManager) openConnection(ctx context.Context, ds *models.Datasource, dialect Dialect) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager closed: %w", apperrors.ErrConnection)
	}

	// Another goroutine may have opened it while we waited for the lock.
	if managed, exists := m.connections[ds.ID]; exists {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.conn, nil
	}

	conn, err := dialect.Open(ctx, ds.ConnectionParams(), m.poolOpts)
	if err != nil {
		m.logger.Error("failed to open datasource connection",
			zap.String("datasource_id", ds.ID.String()),
			zap.String("type", ds.DatasourceType),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, err
	}

	m.connections[ds.ID] = &ManagedConnection{
		conn:     conn,
		lastUsed: time.Now(),
	}

	m.logger.Info("opened datasource connection",
		zap.String("datasource_id", ds.ID.String()),
		zap.String("type", conn.GetType()),
		zap.Int("total_connections", len(m.connections)),
	)
	return conn, nil
}

// removeConnection closes and evicts the entry for id if it is still the
// given one. Caller must NOT hold m.mu.
func (m *ConnectionManager) removeConnection(id uuid.UUID, expected *ManagedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	managed, exists := m.connections[id]
	if !exists || (expected != nil && managed != expected) {
		return
	}
	delete(m.connections, id)
	m.closeManaged(id, managed)
}

func (m *ConnectionManager) closeManaged(id uuid.UUID, managed *ManagedConnection) {
	if err := managed.conn.Close(); err != nil {
		m.logger.Warn("error closing datasource connection",
			zap.String("datasource_id", id.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// CloseConnection closes the cached pool for a datasource. Unknown ids are ignored.
func (m *ConnectionManager) CloseConnection(id uuid.UUID) {
	m.removeConnection(id, nil)
}

// CloseAll closes every cached pool but keeps the manager usable.
func (m *ConnectionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, managed := range m.connections {
		m.closeManaged(id, managed)
	}
	m.connections = make(map[uuid.UUID]*ManagedConnection)
}

// TestConnection opens a throwaway pool, runs the dialect probe and measures
// latency. The pool is never cached and is closed on every path. Connection
// failures are reported in the result; the error is reserved for unknown
// dialects.
func (m *ConnectionManager) TestConnection(ctx context.Context, params models.ConnectionParams) (*models.ConnectionTestResult, error) {
	dialect, err := m.lookup(params.Type)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	conn, err := dialect.Open(ctx, params, PoolOptions{MaxConns: 1})
	if err != nil {
		return &models.ConnectionTestResult{
			Success:   false,
			LatencyMS: time.Since(start).Milliseconds(),
			Message:   logging.SanitizeError(err),
		}, nil
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.logger.Warn("error closing test connection", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	version, err := dialect.Probe(ctx, conn)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &models.ConnectionTestResult{
			Success:   false,
			LatencyMS: latency,
			Message:   logging.SanitizeError(err),
		}, nil
	}

	return &models.ConnectionTestResult{
		Success:   true,
		Version:   version,
		LatencyMS: latency,
		Message:   "connection successful",
	}, nil
}

// cleanupExpiredConnections runs until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup closes pools idle for longer than the TTL.
// Lock ordering: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	expired := 0
	for id, managed := range m.connections {
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idle > m.ttl {
			delete(m.connections, id)
			m.closeManaged(id, managed)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("cleaned up idle connections",
			zap.Int("count", expired),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections and stops the cleanup goroutine. Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.stopChan)

	for id, managed := range m.connections {
		m.closeManaged(id, managed)
	}
	m.connections = make(map[uuid.UUID]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// Stats returns a snapshot of the cache.
func (m *ConnectionManager) Stats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:  len(m.connections),
		TTLMinutes:        int(m.ttl.Minutes()),
		ConnectionsByType: make(map[string]int),
	}
	for _, managed := range m.connections {
		managed.mu.Lock()
		idle := int(now.Sub(managed.lastUsed).Seconds())
		stats.ConnectionsByType[managed.conn.GetType()]++
		managed.mu.Unlock()
		if idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}
	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	TTLMinutes        int            `json:"ttl_minutes"`
	ConnectionsByType map[string]int `json:"connections_by_type"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}
