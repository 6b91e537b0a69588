package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	countTablesQuery = `
		SELECT COUNT(*)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_NAME LIKE ?`

	listTablesQuery = `
		SELECT TABLE_NAME, COALESCE(TABLE_COMMENT, ''), COALESCE(TABLE_ROWS, 0), CREATE_TIME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_NAME LIKE ?
		ORDER BY TABLE_NAME
		LIMIT ? OFFSET ?`

	tableInfoQuery = `
		SELECT TABLE_NAME, COALESCE(TABLE_COMMENT, '')
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?`

	columnsQuery = `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		       CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE,
		       IS_NULLABLE, COLUMN_KEY, EXTRA, COLUMN_DEFAULT,
		       COALESCE(COLUMN_COMMENT, ''), ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	indexesQuery = `
		SELECT INDEX_NAME,
		       GROUP_CONCAT(COLUMN_NAME ORDER BY SEQ_IN_INDEX) AS columns,
		       MIN(NON_UNIQUE)
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		GROUP BY INDEX_NAME
		ORDER BY INDEX_NAME`
)

// displayWidth captures the first modifier of a column type, e.g. 1 in "tinyint(1)".
var displayWidth = regexp.MustCompile(`^\w+\((\d+)`)

// ListTables filters with LIKE and pages with LIMIT/OFFSET in SQL.
func (Dialect) ListTables(ctx context.Context, conn datasource.PoolConnector, q models.TableQuery) (*models.TablePage, error) {
	db, err := datasource.SQLDB(conn)
	if err != nil {
		return nil, err
	}
	pattern := datasource.LikeContains(q.Filter)

	page := &models.TablePage{Items: []models.TableSummary{}, Page: q.Page, Limit: q.Limit}
	if err := db.QueryRowContext(ctx, countTablesQuery, pattern).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count tables: %w", err)
	}

	rows, err := db.QueryContext(ctx, listTablesQuery, pattern, q.Limit, q.Offset())
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

// TableDetail loads table comment, columns and indexes.
func (Dialect) TableDetail(ctx context.Context, conn datasource.PoolConnector, table string) (*models.TableDetail, error) {
	db, err := datasource.SQLDB(conn)
	if err != nil {
		return nil, err
	}

	detail := &models.TableDetail{}
	err = db.QueryRowContext(ctx, tableInfoQuery, table).Scan(&detail.Name, &detail.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}

	if detail.Columns, err = discoverColumns(ctx, db, table); err != nil {
		return nil, err
	}
	if detail.Indexes, err = discoverIndexes(ctx, db, table); err != nil {
		return nil, err
	}
	detail.PrimaryKey = models.PrimaryKeyColumn(detail.Columns)
	return detail, nil
}

func discoverColumns(ctx context.Context, db *sql.DB, table string) ([]models.TableColumn, error) {
	rows, err := db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.TableColumn
	for rows.Next() {
		var (
			c                        models.TableColumn
			isNullable, key, extra   string
			length, precision, scale sql.NullInt64
			defaultValue             sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DBType, &c.ColumnType,
			&length, &precision, &scale,
			&isNullable, &key, &extra, &defaultValue,
			&c.Comment, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		c.DBType = strings.ToLower(c.DBType)
		c.Nullable = isNullable == "YES"
		c.IsPrimary = key == "PRI"
		c.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		c.Length = nullInt(length)
		if c.Length == nil {
			c.Length = typeWidth(c.ColumnType)
		}
		c.Precision = nullInt(precision)
		c.Scale = nullInt(scale)
		if defaultValue.Valid {
			v := defaultValue.String
			c.DefaultValue = &v
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func discoverIndexes(ctx context.Context, db *sql.DB, table string) ([]models.IndexInfo, error) {
	rows, err := db.QueryContext(ctx, indexesQuery, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	indexes := []models.IndexInfo{}
	for rows.Next() {
		var name, columns string
		var nonUnique int
		if err := rows.Scan(&name, &columns, &nonUnique); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		indexes = append(indexes, models.IndexInfo{
			Name:      name,
			Columns:   datasource.SplitColumns(columns),
			IsUnique:  nonUnique == 0,
			IsPrimary: name == "PRIMARY",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes: %w", err)
	}
	return indexes, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// typeWidth reads the declared width of integer types such as tinyint(1).
func typeWidth(columnType string) *int64 {
	m := displayWidth.FindStringSubmatch(columnType)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
