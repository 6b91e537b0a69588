package datasource

import (
	"strings"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// LikeContains builds a LIKE pattern matching names that contain filter.
// Wildcards in filter are escaped with a backslash; the query must declare
// ESCAPE '\' where the engine has no default escape character.
func LikeContains(filter string) string {
	if filter == "" {
		return "%"
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(filter) + "%"
}

// SplitColumns splits an aggregated index column list ("a,b, c") into names.
func SplitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PageInMemory filters tables by case-insensitive substring and slices out
// one page. Total is the filtered count.
func PageInMemory(tables []models.TableSummary, q models.TableQuery) *models.TablePage {
	needle := strings.ToLower(q.Filter)
	matched := make([]models.TableSummary, 0, len(tables))
	for _, t := range tables {
		if needle == "" || strings.Contains(strings.ToLower(t.Name), needle) {
			matched = append(matched, t)
		}
	}

	page := &models.TablePage{
		Items: []models.TableSummary{},
		Total: int64(len(matched)),
		Page:  q.Page,
		Limit: q.Limit,
	}
	start := q.Offset()
	if start >= len(matched) {
		return page
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	page.Items = matched[start:end]
	return page
}

// OptionString reads a string option, falling back to def.
func OptionString(opts map[string]any, key, def string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return def
}

// OptionBool reads a boolean option, accepting JSON booleans and "true"/"false".
func OptionBool(opts map[string]any, key string, def bool) bool {
	switch v := opts[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
