package models

import "time"

// TableColumn is raw column metadata produced by introspection. Never persisted.
type TableColumn struct {
	Name            string  `json:"name"`
	DBType          string  `json:"db_type"`     // data type without modifiers, e.g. "varchar"
	ColumnType      string  `json:"column_type"` // full declared type, e.g. "varchar(50)"
	Length          *int64  `json:"length,omitempty"`
	Precision       *int64  `json:"precision,omitempty"`
	Scale           *int64  `json:"scale,omitempty"`
	Nullable        bool    `json:"nullable"`
	IsPrimary       bool    `json:"is_primary"`
	IsAutoIncrement bool    `json:"is_auto_increment"`
	DefaultValue    *string `json:"default_value,omitempty"`
	Comment         string  `json:"comment,omitempty"`
	Position        int     `json:"position"`
}

// TableSummary is one row of a table listing.
type TableSummary struct {
	Name      string     `json:"name"`
	Comment   string     `json:"comment,omitempty"`
	Rows      int64      `json:"rows"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// TableQuery filters and pages a table listing.
type TableQuery struct {
	Filter string
	Page   int
	Limit  int
}

// Offset returns the zero-based row offset for the page.
func (q TableQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// TablePage is a page of table summaries. Total counts all matching tables.
type TablePage struct {
	Items []TableSummary `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// IndexInfo describes one index of a table.
type IndexInfo struct {
	Name      string   `json:"name"`
	Columns   []string `json:"columns"`
	IsUnique  bool     `json:"is_unique"`
	IsPrimary bool     `json:"is_primary"`
}

// TableDetail is the full metadata of one table.
type TableDetail struct {
	Name       string        `json:"name"`
	Comment    string        `json:"comment,omitempty"`
	Columns    []TableColumn `json:"columns"`
	Indexes    []IndexInfo   `json:"indexes"`
	PrimaryKey string        `json:"primary_key,omitempty"`
}

// PrimaryKeyColumn returns the name of the first column flagged as primary.
func PrimaryKeyColumn(columns []TableColumn) string {
	for _, c := range columns {
		if c.IsPrimary {
			return c.Name
		}
	}
	return ""
}
