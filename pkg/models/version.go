package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is an immutable snapshot of a GenConfig and the files it rendered to.
type Version struct {
	ID             uuid.UUID       `json:"id"`
	ConfigID       uuid.UUID       `json:"config_id"`
	ConfigSnapshot json.RawMessage `json:"config_snapshot"`
	FileSnapshot   json.RawMessage `json:"file_snapshot"`
	Version        string          `json:"version"`
	Description    string          `json:"description,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// FileSnapshot is the serialized output captured in a Version.
type FileSnapshot struct {
	Frontend []GeneratedFile `json:"frontend"`
	Backend  []GeneratedFile `json:"backend"`
	SQL      []GeneratedFile `json:"sql"`
}
