// Package inference maps raw column metadata to UI field descriptors.
//
// Every decision is an ordered list of heuristics where the first match wins.
// The functions are pure: the same column always yields the same descriptor.
package inference

import (
	"strings"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

var semanticTypes = map[string]string{
	"tinyint": models.FieldTypeNumber, "smallint": models.FieldTypeNumber, "mediumint": models.FieldTypeNumber,
	"int": models.FieldTypeNumber, "integer": models.FieldTypeNumber, "bigint": models.FieldTypeNumber,
	"int2": models.FieldTypeNumber, "int4": models.FieldTypeNumber, "int8": models.FieldTypeNumber,
	"serial": models.FieldTypeNumber, "bigserial": models.FieldTypeNumber, "smallserial": models.FieldTypeNumber,
	"float": models.FieldTypeNumber, "double": models.FieldTypeNumber, "real": models.FieldTypeNumber,
	"float4": models.FieldTypeNumber, "float8": models.FieldTypeNumber, "double precision": models.FieldTypeNumber,
	"decimal": models.FieldTypeNumber, "numeric": models.FieldTypeNumber,
	"money": models.FieldTypeNumber, "smallmoney": models.FieldTypeNumber,

	"char": models.FieldTypeString, "varchar": models.FieldTypeString, "nchar": models.FieldTypeString,
	"nvarchar": models.FieldTypeString, "bpchar": models.FieldTypeString, "character varying": models.FieldTypeString,
	"text": models.FieldTypeString, "tinytext": models.FieldTypeString, "mediumtext": models.FieldTypeString,
	"longtext": models.FieldTypeString, "ntext": models.FieldTypeString,

	"date": models.FieldTypeDate, "datetime": models.FieldTypeDate, "datetime2": models.FieldTypeDate,
	"smalldatetime": models.FieldTypeDate, "datetimeoffset": models.FieldTypeDate,
	"timestamp": models.FieldTypeDate, "timestamptz": models.FieldTypeDate, "time": models.FieldTypeDate,
	"timetz": models.FieldTypeDate, "year": models.FieldTypeDate,

	"boolean": models.FieldTypeBoolean, "bool": models.FieldTypeBoolean, "bit": models.FieldTypeBoolean,

	"json": models.FieldTypeObject, "jsonb": models.FieldTypeObject,
}

// boundedStringTypes carry a declared maximum length.
var boundedStringTypes = map[string]bool{
	"char": true, "varchar": true, "nchar": true, "nvarchar": true,
	"bpchar": true, "character varying": true, "character": true,
}

var smallIntTypes = map[string]bool{
	"tinyint": true, "smallint": true, "int2": true,
}

// auditColumns are maintained by the backend and never edited in forms.
var auditColumns = map[string]bool{
	"created_at": true, "updated_at": true, "deleted_at": true,
	"create_at": true, "update_at": true, "delete_at": true,
	"create_time": true, "update_time": true, "delete_time": true,
	"created_time": true, "updated_time": true, "deleted_time": true,
	"gmt_create": true, "gmt_modified": true,
}

// SemanticType maps a database type to a semantic field type.
func SemanticType(dbType string) string {
	if t, ok := semanticTypes[strings.ToLower(strings.TrimSpace(dbType))]; ok {
		return t
	}
	return models.FieldTypeString
}

// IsAuditColumn reports whether name is a bookkeeping timestamp column.
func IsAuditColumn(name string) bool {
	return auditColumns[strings.ToLower(name)]
}

// InferFields maps every column, preserving order.
func InferFields(columns []models.TableColumn) []models.FieldDescriptor {
	fields := make([]models.FieldDescriptor, len(columns))
	for i, col := range columns {
		fields[i] = InferField(col)
	}
	return fields
}

// InferField maps one column to a field descriptor.
func InferField(col models.TableColumn) models.FieldDescriptor {
	c := newColumnFacts(col)

	label := col.Comment
	if label == "" {
		label = col.Name
	}

	f := models.FieldDescriptor{
		Name:         col.Name,
		Label:        label,
		DBType:       c.dbType,
		Type:         c.semantic,
		Component:    c.component(),
		QueryType:    c.queryType(),
		Rules:        c.rules(),
		ShowInList:   !c.nameHas("password", "salt"),
		ShowInForm:   !col.IsPrimary && !c.audit,
		ShowInSearch: c.nameHas("id", "name", "title", "code", "status", "type"),
		IsPrimaryKey: col.IsPrimary,
		Length:       col.Length,
	}
	if c.isDict() {
		f.DictType = c.name
	}
	return f
}

// columnFacts holds the normalized inputs every heuristic reads.
type columnFacts struct {
	col      models.TableColumn
	name     string
	dbType   string
	semantic string
	audit    bool
}

func newColumnFacts(col models.TableColumn) columnFacts {
	dbType := strings.ToLower(strings.TrimSpace(col.DBType))
	return columnFacts{
		col:      col,
		name:     strings.ToLower(col.Name),
		dbType:   dbType,
		semantic: SemanticType(dbType),
		audit:    IsAuditColumn(col.Name),
	}
}

func (c columnFacts) nameHas(parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(c.name, p) {
			return true
		}
	}
	return false
}

func (c columnFacts) isTemporal() bool {
	return c.semantic == models.FieldTypeDate || c.nameHas("date", "time") || strings.HasSuffix(c.name, "_at")
}

func (c columnFacts) isEnumLike() bool {
	return c.nameHas("status", "type", "state")
}

// isFlag matches tinyint(1), the conventional boolean column.
func (c columnFacts) isFlag() bool {
	return c.dbType == "tinyint" && c.col.Length != nil && *c.col.Length == 1
}

func (c columnFacts) component() string {
	switch {
	case c.col.IsPrimary:
		return models.ComponentNumberInput
	case c.nameHas("password"):
		return models.ComponentPasswordInput
	case c.nameHas("content", "description", "remark"):
		return models.ComponentTextarea
	case c.nameHas("image", "avatar", "logo"):
		return models.ComponentUpload
	case c.isTemporal():
		return models.ComponentDatePicker
	case c.isEnumLike():
		return models.ComponentSelect
	case c.nameHas("is_", "has_") || c.isFlag() || c.semantic == models.FieldTypeBoolean:
		return models.ComponentSwitch
	case c.semantic == models.FieldTypeNumber:
		return models.ComponentNumberInput
	default:
		return models.ComponentTextInput
	}
}

func (c columnFacts) queryType() string {
	switch {
	case c.col.IsPrimary:
		return models.QueryEquals
	case c.nameHas("name", "title", "desc", "remark"):
		return models.QueryContains
	case c.semantic == models.FieldTypeNumber || c.isEnumLike():
		return models.QueryEquals
	case c.isTemporal():
		return models.QueryRange
	default:
		return models.QueryEquals
	}
}

func (c columnFacts) rules() []models.ValidationRule {
	var rules []models.ValidationRule
	if !c.col.Nullable && !c.col.IsPrimary && !c.col.IsAutoIncrement && !c.audit {
		rules = append(rules, models.ValidationRule{Kind: models.RuleRequired})
	}
	if boundedStringTypes[c.dbType] && c.col.Length != nil && *c.col.Length > 0 {
		rules = append(rules, models.ValidationRule{Kind: models.RuleMax, Value: *c.col.Length})
	}
	return rules
}

func (c columnFacts) isDict() bool {
	return smallIntTypes[c.dbType] && c.nameHas("status", "type", "state", "flag")
}
