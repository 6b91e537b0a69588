package models

import (
	"time"

	"github.com/google/uuid"
)

// ListConfig controls the generated list page.
type ListConfig struct {
	PageSize      int      `json:"page_size" validate:"omitempty,min=1,max=500"`
	ShowSelection bool     `json:"show_selection"`
	Actions       []string `json:"actions"`
}

// FormConfig controls the generated edit form.
type FormConfig struct {
	Layout     string `json:"layout" validate:"omitempty,oneof=horizontal vertical inline"`
	LabelWidth int    `json:"label_width"`
	Columns    int    `json:"columns" validate:"omitempty,min=1,max=4"`
}

// PermissionConfig controls the permission codes written to the menu SQL.
type PermissionConfig struct {
	Prefix  string   `json:"prefix"`
	Actions []string `json:"actions"`
}

// PageConfig groups list, form and permission layout settings.
type PageConfig struct {
	List       ListConfig       `json:"list"`
	Form       FormConfig       `json:"form"`
	Permission PermissionConfig `json:"permission"`
}

// DefaultPageConfig returns the layout used for newly imported tables.
func DefaultPageConfig(permissionPrefix string) PageConfig {
	return PageConfig{
		List: ListConfig{
			PageSize:      20,
			ShowSelection: true,
			Actions:       []string{"create", "edit", "delete"},
		},
		Form: FormConfig{
			Layout:     "horizontal",
			LabelWidth: 100,
			Columns:    1,
		},
		Permission: PermissionConfig{
			Prefix:  permissionPrefix,
			Actions: []string{"list", "create", "update", "delete"},
		},
	}
}

// GenConfig holds the persisted generation settings of one module: a table, its
// field descriptors and page layout.
type GenConfig struct {
	ID           uuid.UUID         `json:"id"`
	ModuleName   string            `json:"module_name" validate:"required,max=100,module_name"`
	TableName    string            `json:"table_name" validate:"required,max=128"`
	DatasourceID *uuid.UUID        `json:"datasource_id,omitempty"`
	APIPrefix    string            `json:"api_prefix"`
	PackageName  string            `json:"package_name"`
	TemplateType string            `json:"template_type"`
	Fields       []FieldDescriptor `json:"fields" validate:"dive"`
	PageConfig   PageConfig        `json:"page_config"`
	IsGenerated  bool              `json:"is_generated"`
	GeneratedAt  *time.Time        `json:"generated_at,omitempty"`
	Author       string            `json:"author"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
