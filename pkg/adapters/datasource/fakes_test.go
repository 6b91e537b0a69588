package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

type fakeConnector struct {
	dbType  string
	pingErr error
	closed  atomic.Bool
	closes  atomic.Int32
}

func (c *fakeConnector) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("pool closed")
	}
	return c.pingErr
}

func (c *fakeConnector) Close() error {
	c.closed.Store(true)
	c.closes.Add(1)
	return nil
}

func (c *fakeConnector) GetType() string { return c.dbType }

type fakeDialect struct {
	mu       sync.Mutex
	opened   []*fakeConnector
	openErr  error
	probeErr error
	version  string
}

func (d *fakeDialect) Info() DialectInfo {
	return DialectInfo{Type: "fake", DisplayName: "Fake", DefaultPort: 1}
}

func (d *fakeDialect) Open(ctx context.Context, params models.ConnectionParams, opts PoolOptions) (PoolConnector, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := &fakeConnector{dbType: "fake"}
	d.opened = append(d.opened, conn)
	return conn, nil
}

func (d *fakeDialect) Probe(ctx context.Context, conn PoolConnector) (string, error) {
	if d.probeErr != nil {
		return "", d.probeErr
	}
	return d.version, nil
}

func (d *fakeDialect) ListTables(ctx context.Context, conn PoolConnector, q models.TableQuery) (*models.TablePage, error) {
	return &models.TablePage{Page: q.Page, Limit: q.Limit}, nil
}

func (d *fakeDialect) TableDetail(ctx context.Context, conn PoolConnector, table string) (*models.TableDetail, error) {
	return &models.TableDetail{Name: table}, nil
}

func (d *fakeDialect) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

func (d *fakeDialect) lookup(dsType string) (Dialect, error) {
	if dsType != "fake" {
		return Lookup(dsType)
	}
	return d, nil
}
