package mssql

import (
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	// DefaultPort is the default SQL Server port.
	DefaultPort = 1433
	// DefaultSchema is introspected unless the datasource names another.
	DefaultSchema = "dbo"
	// DefaultConnectionTimeout is the login timeout in seconds.
	DefaultConnectionTimeout = 30
)

// Config contains SQL Server connection options. Only SQL authentication
// is supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string
	Username string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// FromParams builds a Config from datasource connection parameters.
// Recognised options: "schema", "encrypt", "trust_server_certificate",
// "connection_timeout".
func FromParams(p models.ConnectionParams) *Config {
	cfg := &Config{
		Host:                   p.Host,
		Port:                   p.Port,
		Database:               p.Database,
		Username:               p.Username,
		Password:               p.Password,
		Schema:                 datasource.OptionString(p.Options, "schema", DefaultSchema),
		Encrypt:                datasource.OptionBool(p.Options, "encrypt", true),
		TrustServerCertificate: datasource.OptionBool(p.Options, "trust_server_certificate", false),
		ConnectionTimeout:      DefaultConnectionTimeout,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if timeout, ok := p.Options["connection_timeout"].(float64); ok && timeout > 0 { // JSON numbers are float64
		cfg.ConnectionTimeout = int(timeout)
	}
	return cfg
}

// ConnectionString builds a sqlserver:// URL for the go-mssqldb driver.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "disable")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	query.Add("app name", "admingen")

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
