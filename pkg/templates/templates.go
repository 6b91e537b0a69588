// Package templates holds the builtin template sources seeded into an empty
// template store. Sources are text/template files listed in manifest.yaml.
package templates

import (
	"embed"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

//go:embed manifest.yaml sources/*.tmpl
var FS embed.FS

// Entry is one manifest record.
type Entry struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	File        string `yaml:"file"`
	Description string `yaml:"description"`
}

type manifest struct {
	Templates []Entry `yaml:"templates"`
}

// readManifest parses manifest.yaml in declaration order.
func readManifest(fsys fs.FS) ([]Entry, error) {
	data, err := fs.ReadFile(fsys, "manifest.yaml")
	if err != nil {
		return nil, fmt.Errorf("read template manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse template manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Templates))
	for _, e := range m.Templates {
		if e.Key == "" || e.File == "" {
			return nil, fmt.Errorf("template manifest entry %q: key and file are required", e.Name)
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("template manifest: duplicate key %q", e.Key)
		}
		seen[e.Key] = true
	}
	return m.Templates, nil
}

// Builtin returns every builtin template, active and flagged builtin.
func Builtin() ([]*models.Template, error) {
	return load(FS)
}

func load(fsys fs.FS) ([]*models.Template, error) {
	entries, err := readManifest(fsys)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Template, 0, len(entries))
	for _, e := range entries {
		content, err := fs.ReadFile(fsys, e.File)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", e.Key, err)
		}
		out = append(out, &models.Template{
			Name:        e.Name,
			Type:        e.Type,
			TemplateKey: e.Key,
			Content:     string(content),
			Description: e.Description,
			IsBuiltin:   true,
			IsActive:    true,
		})
	}
	return out, nil
}
