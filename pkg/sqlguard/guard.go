// Package sqlguard screens user-supplied identifiers and filters before they
// reach dialect catalog queries. Catalog queries are always parameterized;
// this is a second line that rejects obvious injection payloads early with a
// clear input error.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

// MaxIdentifierLength bounds table names and name filters.
const MaxIdentifierLength = 128

// identifierPattern accepts name or schema.name, letters, digits, _ and $.
var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_$]*(\.[\p{L}_][\p{L}\p{N}_$]*)?$`)

// InjectionCheckResult describes a rejected value.
type InjectionCheckResult struct {
	Field       string
	Value       string
	Fingerprint string
}

func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("%s looks like SQL injection (fingerprint %s)", r.Field, r.Fingerprint)
}

// Check runs libinjection over value. Returns nil when the value is clean.
func Check(field, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFilter validates a free-text table name filter. Empty filters pass.
func CheckFilter(filter string) error {
	if filter == "" {
		return nil
	}
	if len(filter) > MaxIdentifierLength {
		return fmt.Errorf("filter longer than %d characters: %w", MaxIdentifierLength, apperrors.ErrInvalidInput)
	}
	if r := Check("filter", filter); r != nil {
		return fmt.Errorf("%s: %w", r.Error(), apperrors.ErrInvalidInput)
	}
	return nil
}

// CheckTableName validates a possibly schema-qualified table name. Square
// brackets around parts are accepted.
func CheckTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is required: %w", apperrors.ErrInvalidInput)
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("table name longer than %d characters: %w", MaxIdentifierLength, apperrors.ErrInvalidInput)
	}
	if r := Check("table name", name); r != nil {
		return fmt.Errorf("%s: %w", r.Error(), apperrors.ErrInvalidInput)
	}
	bare := strings.NewReplacer("[", "", "]", "").Replace(name)
	if !identifierPattern.MatchString(bare) {
		return fmt.Errorf("invalid table name %q: %w", name, apperrors.ErrInvalidInput)
	}
	return nil
}
