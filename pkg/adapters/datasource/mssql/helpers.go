package mssql

import (
	"strconv"
	"strings"
)

// parseSchemaTable parses a table name that may include schema.
// SQL Server format: [schema].[table] or schema.table
// Returns (schema, table), falling back to defaultSchema.
func parseSchemaTable(tableName, defaultSchema string) (string, string) {
	cleaned := strings.ReplaceAll(tableName, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	parts := strings.SplitN(cleaned, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, cleaned
}

// columnType renders a display type such as nvarchar(50), decimal(10,2) or nvarchar(max).
func columnType(dataType string, length, precision, scale *int64) string {
	switch {
	case length != nil:
		return dataType + "(" + strconv.FormatInt(*length, 10) + ")"
	case dataType == "decimal" || dataType == "numeric":
		if precision != nil && scale != nil {
			return dataType + "(" + strconv.FormatInt(*precision, 10) + "," + strconv.FormatInt(*scale, 10) + ")"
		}
	}
	return dataType
}

// unwrapDefault strips the parentheses SQL Server stores around defaults,
// so "((1))" becomes "1" and "('abc')" becomes "'abc'".
func unwrapDefault(def string) string {
	for len(def) >= 2 && def[0] == '(' && def[len(def)-1] == ')' {
		def = def[1 : len(def)-1]
	}
	return def
}
