// Package models contains domain types for ekaya-admingen.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported datasource engines.
const (
	DatasourceMySQL    = "mysql"
	DatasourcePostgres = "postgres"
	DatasourceMSSQL    = "mssql"
)

// Datasource is a connection profile to an external database that tables are
// imported from. Password is decrypted in memory and encrypted at rest by the
// service layer.
type Datasource struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name" validate:"required,max=100"`
	DatasourceType string         `json:"datasource_type" validate:"required,oneof=mysql postgres mssql"`
	Host           string         `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port           int            `json:"port" validate:"required,min=1,max=65535"`
	Database       string         `json:"database" validate:"required"`
	Username       string         `json:"username" validate:"required"`
	Password       string         `json:"password,omitempty"`
	IsActive       bool           `json:"is_active"`
	Options        map[string]any `json:"options,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ConnectionParams returns the connection-relevant subset of the datasource.
func (d *Datasource) ConnectionParams() ConnectionParams {
	return ConnectionParams{
		Type:     d.DatasourceType,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		Username: d.Username,
		Password: d.Password,
		Options:  d.Options,
	}
}

// ConnectionParams describes how to reach a datasource. Used both for cached
// connections and for throwaway connection tests.
type ConnectionParams struct {
	Type     string         `json:"datasource_type" validate:"required"`
	Host     string         `json:"host" validate:"required"`
	Port     int            `json:"port" validate:"required,min=1,max=65535"`
	Database string         `json:"database" validate:"required"`
	Username string         `json:"username" validate:"required"`
	Password string         `json:"password"`
	Options  map[string]any `json:"options,omitempty"`
}

// ConnectionTestResult reports the outcome of a connection test.
type ConnectionTestResult struct {
	Success   bool   `json:"success"`
	Version   string `json:"version,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message"`
}
