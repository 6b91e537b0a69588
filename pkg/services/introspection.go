package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/logging"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/sqlguard"
)

const (
	DefaultTablePageSize = 20
	MaxTablePageSize     = 200
)

// DatasourceReader loads a datasource with its password decrypted.
type DatasourceReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error)
}

// ConnectionSource hands out cached pools. Satisfied by *datasource.ConnectionManager.
type ConnectionSource interface {
	GetConnection(ctx context.Context, ds *models.Datasource) (datasource.PoolConnector, error)
}

// IntrospectionService reads table metadata from external datasources.
// It never mutates the target database.
type IntrospectionService interface {
	// ListTables returns a page of tables whose name contains filter.
	// Page defaults to 1; limit defaults to 20 and is capped at 200.
	ListTables(ctx context.Context, datasourceID uuid.UUID, filter string, page, limit int) (*models.TablePage, error)

	// GetTableDetail returns columns, indexes and the primary key of one table.
	GetTableDetail(ctx context.Context, datasourceID uuid.UUID, table string) (*models.TableDetail, error)

	// Dialects lists the engines that can be introspected.
	Dialects() []datasource.DialectInfo
}

type introspectionService struct {
	datasources DatasourceReader
	conns       ConnectionSource
	lookup      func(string) (datasource.Dialect, error)
	logger      *zap.Logger
}

var _ IntrospectionService = (*introspectionService)(nil)

// NewIntrospectionService creates an introspection service. A nil lookup
// uses the global dialect registry.
func NewIntrospectionService(
	datasources DatasourceReader,
	conns ConnectionSource,
	lookup func(string) (datasource.Dialect, error),
	logger *zap.Logger,
) IntrospectionService {
	if lookup == nil {
		lookup = datasource.Lookup
	}
	return &introspectionService{
		datasources: datasources,
		conns:       conns,
		lookup:      lookup,
		logger:      logger.Named("introspection"),
	}
}

func (s *introspectionService) ListTables(ctx context.Context, datasourceID uuid.UUID, filter string, page, limit int) (*models.TablePage, error) {
	if err := sqlguard.CheckFilter(filter); err != nil {
		return nil, err
	}
	q := models.TableQuery{Filter: filter, Page: page, Limit: limit}
	normalizeTableQuery(&q)

	dialect, conn, err := s.open(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	result, err := dialect.ListTables(ctx, conn, q)
	if err != nil {
		s.logger.Error("List tables failed",
			zap.String("datasource_id", datasourceID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("list tables: %w", classifyCatalogError(err))
	}
	return result, nil
}

func (s *introspectionService) GetTableDetail(ctx context.Context, datasourceID uuid.UUID, table string) (*models.TableDetail, error) {
	if err := sqlguard.CheckTableName(table); err != nil {
		return nil, err
	}

	dialect, conn, err := s.open(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	detail, err := dialect.TableDetail(ctx, conn, table)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, classifyCatalogError(err))
	}
	if detail.PrimaryKey == "" {
		detail.PrimaryKey = models.PrimaryKeyColumn(detail.Columns)
	}

	s.logger.Debug("Loaded table detail",
		zap.String("datasource_id", datasourceID.String()),
		zap.String("table", table),
		zap.Int("columns", len(detail.Columns)),
		zap.Int("indexes", len(detail.Indexes)),
	)
	return detail, nil
}

func (s *introspectionService) Dialects() []datasource.DialectInfo {
	return datasource.RegisteredDialects()
}

func (s *introspectionService) open(ctx context.Context, datasourceID uuid.UUID) (datasource.Dialect, datasource.PoolConnector, error) {
	ds, err := s.datasources.Get(ctx, datasourceID)
	if err != nil {
		return nil, nil, err
	}
	if !ds.IsActive {
		return nil, nil, errInactiveDatasource
	}
	dialect, err := s.lookup(ds.DatasourceType)
	if err != nil {
		return nil, nil, err
	}
	conn, err := s.conns.GetConnection(ctx, ds)
	if err != nil {
		return nil, nil, err
	}
	return dialect, conn, nil
}

func normalizeTableQuery(q *models.TableQuery) {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultTablePageSize
	case q.Limit > MaxTablePageSize:
		q.Limit = MaxTablePageSize
	}
}

// classifyCatalogError tags errors caused by a lost or unreachable target
// database with apperrors.ErrConnection. Query errors pass through unchanged.
func classifyCatalogError(err error) error {
	if errors.Is(err, apperrors.ErrConnection) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		pgconn.SafeToRetry(err) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", apperrors.ErrConnection, err)
	}
	return err
}

// errInactiveDatasource is returned for datasources switched off by an admin.
var errInactiveDatasource = fmt.Errorf("datasource is inactive: %w", apperrors.ErrInvalidInput)
