package services

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// tablePrefixes are stripped when deriving a module name from a table.
var tablePrefixes = []string{"t_", "sys_"}

// splitWords breaks snake, kebab, camel and Pascal case identifiers into
// lowercase words.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r):
			// Break before an upper rune that starts a new word: "userRole",
			// and the last capital of an acronym: "HTTPServer".
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func upperFirst(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// PascalCase renders "sys_user_role" as "SysUserRole".
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// CamelCase renders "sys_user_role" as "sysUserRole".
func CamelCase(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// KebabCase renders "SysUserRole" as "sys-user-role".
func KebabCase(s string) string {
	return strings.Join(splitWords(s), "-")
}

// SnakeCase renders "SysUserRole" as "sys_user_role".
func SnakeCase(s string) string {
	return strings.Join(splitWords(s), "_")
}

// ModuleNameFromTable derives a singular snake_case module name from a
// table name: schema qualifier and t_/sys_ prefix dropped, last word
// singularized. "dbo.sys_user_roles" becomes "user_role".
func ModuleNameFromTable(table string) string {
	name := strings.NewReplacer("[", "", "]", "", "`", "", `"`, "").Replace(table)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = SnakeCase(name)
	for _, p := range tablePrefixes {
		if trimmed, ok := strings.CutPrefix(name, p); ok && trimmed != "" {
			name = trimmed
			break
		}
	}
	return inflection.Singular(name)
}

// goInitialisms are rendered upper case in Go identifiers.
var goInitialisms = map[string]bool{
	"id": true, "url": true, "uri": true, "api": true, "ip": true, "http": true,
	"uuid": true, "json": true, "sql": true, "html": true, "xml": true,
}

// GoName renders a column as an exported Go identifier: "user_id" becomes "UserID".
func GoName(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		if goInitialisms[w] {
			b.WriteString(strings.ToUpper(w))
			continue
		}
		b.WriteString(upperFirst(w))
	}
	return b.String()
}
