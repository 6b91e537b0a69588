package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

const (
	// DefaultPort is the default PostgreSQL port.
	DefaultPort = 5432
	// DefaultSchema is introspected unless the datasource names another.
	DefaultSchema = "public"
)

// Config contains PostgreSQL connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// FromParams builds a Config from datasource connection parameters.
// Recognised options: "ssl_mode", "schema".
func FromParams(p models.ConnectionParams) *Config {
	cfg := &Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.Username,
		Password: p.Password,
		Database: p.Database,
		Schema:   datasource.OptionString(p.Options, "schema", DefaultSchema),
		SSLMode:  datasource.OptionString(p.Options, "ssl_mode", "prefer"),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg
}

// ConnectionString builds a PostgreSQL URL. User-provided parts are escaped
// so passwords containing @, / or ? survive URL parsing.
func (c *Config) ConnectionString() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("application_name", "admingen")
	u.RawQuery = q.Encode()
	return u.String()
}
