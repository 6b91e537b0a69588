package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	countTablesQuery = `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES t
		WHERE t.TABLE_SCHEMA = @schema
		  AND t.TABLE_TYPE = 'BASE TABLE'
		  AND t.TABLE_NAME LIKE @pattern ESCAPE '\'`

	listTablesQuery = `
		SELECT t.TABLE_NAME,
		       COALESCE(CAST(ep.value AS NVARCHAR(4000)), ''),
		       COALESCE(p.row_count, 0),
		       o.create_date
		FROM INFORMATION_SCHEMA.TABLES t
		JOIN sys.objects o ON o.object_id = OBJECT_ID(QUOTENAME(t.TABLE_SCHEMA) + '.' + QUOTENAME(t.TABLE_NAME))
		LEFT JOIN sys.extended_properties ep
		       ON ep.major_id = o.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'
		OUTER APPLY (
			SELECT SUM(sp.rows) AS row_count
			FROM sys.partitions sp
			WHERE sp.object_id = o.object_id AND sp.index_id IN (0, 1)
		) p
		WHERE t.TABLE_SCHEMA = @schema
		  AND t.TABLE_TYPE = 'BASE TABLE'
		  AND t.TABLE_NAME LIKE @pattern ESCAPE '\'
		ORDER BY t.TABLE_NAME
		OFFSET @offset ROWS FETCH NEXT @limit ROWS ONLY`

	tableInfoQuery = `
		SELECT t.TABLE_NAME, COALESCE(CAST(ep.value AS NVARCHAR(4000)), '')
		FROM INFORMATION_SCHEMA.TABLES t
		LEFT JOIN sys.extended_properties ep
		       ON ep.major_id = OBJECT_ID(QUOTENAME(t.TABLE_SCHEMA) + '.' + QUOTENAME(t.TABLE_NAME))
		      AND ep.minor_id = 0 AND ep.name = 'MS_Description'
		WHERE t.TABLE_SCHEMA = @schema
		  AND t.TABLE_NAME = @table`

	columnsQuery = `
		SELECT c.COLUMN_NAME, c.DATA_TYPE,
		       c.CHARACTER_MAXIMUM_LENGTH, CAST(c.NUMERIC_PRECISION AS INT), c.NUMERIC_SCALE,
		       c.IS_NULLABLE,
		       CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END,
		       COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'),
		       c.COLUMN_DEFAULT,
		       COALESCE(CAST(ep.value AS NVARCHAR(4000)), ''),
		       c.ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			  ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
		       ON ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
		      AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')
		      AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @schema
		  AND c.TABLE_NAME = @table
		ORDER BY c.ORDINAL_POSITION`

	indexesQuery = `
		SELECT i.name,
		       STRING_AGG(col.name, ',') WITHIN GROUP (ORDER BY ic.key_ordinal),
		       i.is_unique,
		       i.is_primary_key
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns col ON col.object_id = ic.object_id AND col.column_id = ic.column_id
		WHERE i.object_id = OBJECT_ID(QUOTENAME(@schema) + '.' + QUOTENAME(@table))
		  AND i.type > 0
		  AND ic.is_included_column = 0
		GROUP BY i.name, i.is_unique, i.is_primary_key
		ORDER BY i.name`
)

// ListTables filters with LIKE and pages with OFFSET/FETCH in SQL.
func (Dialect) ListTables(ctx context.Context, conn datasource.PoolConnector, q models.TableQuery) (*models.TablePage, error) {
	c, err := asConn(conn)
	if err != nil {
		return nil, err
	}
	pattern := datasource.LikeContains(q.Filter)

	page := &models.TablePage{Items: []models.TableSummary{}, Page: q.Page, Limit: q.Limit}
	err = c.db.QueryRowContext(ctx, countTablesQuery,
		sql.Named("schema", c.schema),
		sql.Named("pattern", pattern),
	).Scan(&page.Total)
	if err != nil {
		return nil, fmt.Errorf("count tables: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, listTablesQuery,
		sql.Named("schema", c.schema),
		sql.Named("pattern", pattern),
		sql.Named("offset", q.Offset()),
		sql.Named("limit", q.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.TableSummary
		var created sql.NullTime
		if err := rows.Scan(&t.Name, &t.Comment, &t.Rows, &created); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if created.Valid {
			ts := created.Time
			t.CreatedAt = &ts
		}
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return page, nil
}

// TableDetail loads table comment, columns and indexes. The table name may
// be schema-qualified.
func (Dialect) TableDetail(ctx context.Context, conn datasource.PoolConnector, table string) (*models.TableDetail, error) {
	c, err := asConn(conn)
	if err != nil {
		return nil, err
	}
	schema, name := parseSchemaTable(table, c.schema)

	detail := &models.TableDetail{}
	err = c.db.QueryRowContext(ctx, tableInfoQuery,
		sql.Named("schema", schema),
		sql.Named("table", name),
	).Scan(&detail.Name, &detail.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}

	if detail.Columns, err = c.discoverColumns(ctx, schema, name); err != nil {
		return nil, err
	}
	if detail.Indexes, err = c.discoverIndexes(ctx, schema, name); err != nil {
		return nil, err
	}
	detail.PrimaryKey = models.PrimaryKeyColumn(detail.Columns)
	return detail, nil
}

func (c *Conn) discoverColumns(ctx context.Context, schema, table string) ([]models.TableColumn, error) {
	rows, err := c.db.QueryContext(ctx, columnsQuery,
		sql.Named("schema", schema),
		sql.Named("table", table),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.TableColumn
	for rows.Next() {
		var (
			col                      models.TableColumn
			isNullable               string
			isPrimary                int
			isIdentity               sql.NullInt64
			length, precision, scale sql.NullInt64
			defaultValue             sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.DBType,
			&length, &precision, &scale,
			&isNullable, &isPrimary, &isIdentity, &defaultValue,
			&col.Comment, &col.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		col.DBType = strings.ToLower(col.DBType)
		col.Nullable = isNullable == "YES"
		col.IsPrimary = isPrimary == 1
		col.IsAutoIncrement = isIdentity.Valid && isIdentity.Int64 == 1
		// -1 marks (max) types
		if length.Valid && length.Int64 > 0 {
			n := length.Int64
			col.Length = &n
		}
		if precision.Valid {
			n := precision.Int64
			col.Precision = &n
		}
		if scale.Valid {
			n := scale.Int64
			col.Scale = &n
		}
		col.ColumnType = columnType(col.DBType, col.Length, col.Precision, col.Scale)
		if length.Valid && length.Int64 == -1 {
			col.ColumnType = col.DBType + "(max)"
		}
		if defaultValue.Valid {
			v := unwrapDefault(defaultValue.String)
			col.DefaultValue = &v
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (c *Conn) discoverIndexes(ctx context.Context, schema, table string) ([]models.IndexInfo, error) {
	rows, err := c.db.QueryContext(ctx, indexesQuery,
		sql.Named("schema", schema),
		sql.Named("table", table),
	)
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
