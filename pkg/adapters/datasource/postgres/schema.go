package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	listTablesQuery = `
		SELECT c.relname::text,
		       COALESCE(obj_description(c.oid, 'pg_class'), ''),
		       GREATEST(c.reltuples, 0)::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		  AND n.nspname = $1
		ORDER BY c.relname`

	tableInfoQuery = `
		SELECT c.relname::text, COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname = $1
		  AND c.relname = $2`

	// Primary keys come from pg_index.indisprimary, which also catches keys
	// created as unique indexes by ORMs.
	columnsQuery = `
		SELECT c.column_name::text,
		       c.udt_name::text,
		       format_type(a.atttypid, a.atttypmod),
		       c.character_maximum_length::bigint,
		       c.numeric_precision::bigint,
		       c.numeric_scale::bigint,
		       c.is_nullable = 'YES',
		       EXISTS (
		           SELECT 1 FROM pg_catalog.pg_index ix
		           WHERE ix.indrelid = t.oid AND ix.indisprimary AND a.attnum = ANY(ix.indkey)
		       ),
		       COALESCE(c.column_default LIKE 'nextval(%', false) OR c.is_identity = 'YES',
		       c.column_default::text,
		       COALESCE(col_description(t.oid, a.attnum), ''),
		       c.ordinal_position::int
		FROM information_schema.columns c
		JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
		JOIN pg_catalog.pg_class t ON t.relnamespace = n.oid AND t.relname = c.table_name
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	indexesQuery = `
		SELECT i.relname::text,
		       string_agg(a.attname, ',' ORDER BY k.ord),
		       ix.indisunique,
		       ix.indisprimary
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND t.relname = $2
		GROUP BY i.relname, ix.indisunique, ix.indisprimary
		ORDER BY i.relname`
)

// ListTables fetches every table in the schema and pages in memory.
func (Dialect) ListTables(ctx context.Context, conn datasource.PoolConnector, q models.TableQuery) (*models.TablePage, error) {
	c, err := asConn(conn)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, listTablesQuery, c.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.TableSummary
	for rows.Next() {
		var t models.TableSummary
		if err := rows.Scan(&t.Name, &t.Comment, &t.Rows); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return datasource.PageInMemory(tables, q), nil
}

// TableDetail loads table comment, columns and indexes.
func (Dialect) TableDetail(ctx context.Context, conn datasource.PoolConnector, table string) (*models.TableDetail, error) {
	c, err := asConn(conn)
	if err != nil {
		return nil, err
	}

	detail := &models.TableDetail{}
	err = c.pool.QueryRow(ctx, tableInfoQuery, c.schema, table).Scan(&detail.Name, &detail.Comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}

	if detail.Columns, err = c.discoverColumns(ctx, table); err != nil {
		return nil, err
	}
	if detail.Indexes, err = c.discoverIndexes(ctx, table); err != nil {
		return nil, err
	}
	detail.PrimaryKey = models.PrimaryKeyColumn(detail.Columns)
	return detail, nil
}

func (c *Conn) discoverColumns(ctx context.Context, table string) ([]models.TableColumn, error) {
	rows, err := c.pool.Query(ctx, columnsQuery, c.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.TableColumn
	for rows.Next() {
		var col models.TableColumn
		if err := rows.Scan(&col.Name, &col.DBType, &col.ColumnType,
			&col.Length, &col.Precision, &col.Scale,
			&col.Nullable, &col.IsPrimary, &col.IsAutoIncrement,
			&col.DefaultValue, &col.Comment, &col.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.DBType = strings.ToLower(col.DBType)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (c *Conn) discoverIndexes(ctx context.Context, table string) ([]models.IndexInfo, error) {
	rows, err := c.pool.Query(ctx, indexesQuery, c.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	indexes := []models.IndexInfo{}
	for rows.Next() {
		var idx models.IndexInfo
		var columns string
		if err := rows.Scan(&idx.Name, &columns, &idx.IsUnique, &idx.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		idx.Columns = datasource.SplitColumns(columns)
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes: %w", err)
	}
	return indexes, nil
}
