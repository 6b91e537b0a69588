package models

import (
	"time"

	"github.com/google/uuid"
)

// Artifact groups a template renders into.
const (
	GroupFrontend = "frontend"
	GroupBackend  = "backend"
	GroupSQL      = "sql"
)

// Groups lists the artifact groups in deploy order.
var Groups = []string{GroupFrontend, GroupBackend, GroupSQL}

// Template is named source text rendered into one generated file. The
// generator looks templates up by TemplateKey, never by ID.
type Template struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Type        string    `json:"type" validate:"required,oneof=frontend backend sql"`
	TemplateKey string    `json:"template_key" validate:"required,max=100"`
	Content     string    `json:"content" validate:"required"`
	Description string    `json:"description,omitempty"`
	IsBuiltin   bool      `json:"is_builtin"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GeneratedFile is one rendered artifact. Regenerated on every call and only
// persisted inside a version snapshot.
type GeneratedFile struct {
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`
	Content      string `json:"content"`
	Group        string `json:"group"`
	TemplateKey  string `json:"template_key"`
}
