package models

import (
	"fmt"
	"strings"
)

// Semantic field types.
const (
	FieldTypeNumber  = "number"
	FieldTypeString  = "string"
	FieldTypeDate    = "date"
	FieldTypeBoolean = "boolean"
	FieldTypeObject  = "object"
)

// UI components a field can render as.
const (
	ComponentNumberInput   = "number-input"
	ComponentPasswordInput = "password-input"
	ComponentTextarea      = "textarea"
	ComponentUpload        = "upload"
	ComponentDatePicker    = "date-picker"
	ComponentSelect        = "select"
	ComponentSwitch        = "switch"
	ComponentTextInput     = "text-input"
)

// Search query operators.
const (
	QueryEquals   = "equals"
	QueryContains = "contains"
	QueryRange    = "range"
)

// Validation rule kinds.
const (
	RuleRequired = "required"
	RuleMax      = "max"
)

// ValidationRule is one form validation constraint.
type ValidationRule struct {
	Kind  string `json:"kind"`
	Value int64  `json:"value,omitempty"`
}

// String renders the rule as "required" or "max:50".
func (r ValidationRule) String() string {
	if r.Kind == RuleMax {
		return fmt.Sprintf("%s:%d", r.Kind, r.Value)
	}
	return r.Kind
}

// FieldDescriptor is the inferred UI and validation metadata of one column.
// Embedded in a GenConfig; it has no identity of its own.
type FieldDescriptor struct {
	Name         string           `json:"name" validate:"required"`
	Label        string           `json:"label"`
	DBType       string           `json:"db_type"`
	Type         string           `json:"type" validate:"omitempty,oneof=number string date boolean object"`
	Component    string           `json:"component"`
	QueryType    string           `json:"query_type" validate:"omitempty,oneof=equals contains range"`
	Rules        []ValidationRule `json:"rules"`
	ShowInList   bool             `json:"show_in_list"`
	ShowInForm   bool             `json:"show_in_form"`
	ShowInSearch bool             `json:"show_in_search"`
	DictType     string           `json:"dict_type,omitempty"`
	IsPrimaryKey bool             `json:"is_primary_key"`
	Length       *int64           `json:"length,omitempty"`
}

// Required reports whether the field carries a required rule.
func (f FieldDescriptor) Required() bool {
	for _, r := range f.Rules {
		if r.Kind == RuleRequired {
			return true
		}
	}
	return false
}

// RuleStrings returns the rules in their short string form.
func (f FieldDescriptor) RuleStrings() []string {
	out := make([]string, len(f.Rules))
	for i, r := range f.Rules {
		out[i] = r.String()
	}
	return out
}

// RulesText joins the rules with "|", e.g. "required|max:50".
func (f FieldDescriptor) RulesText() string {
	return strings.Join(f.RuleStrings(), "|")
}
