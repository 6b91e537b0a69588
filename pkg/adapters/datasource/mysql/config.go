package mysql

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// DefaultPort is the default MySQL port.
const DefaultPort = 3306

// Config contains MySQL connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "false", "true", "skip-verify", "preferred"
	Timeout  time.Duration
}

// FromParams builds a Config from datasource connection parameters.
// Recognised options: "tls", "timeout_seconds".
func FromParams(p models.ConnectionParams) *Config {
	cfg := &Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.Username,
		Password: p.Password,
		Database: p.Database,
		TLS:      datasource.OptionString(p.Options, "tls", "preferred"),
		Timeout:  10 * time.Second,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if secs, ok := p.Options["timeout_seconds"].(float64); ok && secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	return cfg
}

// DSN formats the driver connection string. Credentials are escaped by the
// driver's own formatter. Loopback hosts are rewritten when running in Docker.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Timeout = c.Timeout
	mc.TLSConfig = c.TLS
	return mc.FormatDSN()
}
