package config

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Task store backends for deployment tasks.
const (
	TaskStoreMemory = "memory"
	TaskStoreRedis  = "redis"
)

// Config holds all configuration for the admin generator.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Metadata database (PostgreSQL) holding configs, templates, datasources and versions.
	Database DatabaseConfig `yaml:"database"`

	// Connection pool settings for introspected datasources.
	Datasource DatasourceConfig `yaml:"datasource"`

	Generator GeneratorConfig `yaml:"generator"`
	Deploy    DeployConfig    `yaml:"deploy"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`

	// CredentialsKey encrypts datasource passwords at rest.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"admingen"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"admingen"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long idle datasource connections are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"5"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"0"`
	// ProbeTimeoutSeconds bounds liveness pings and connection tests.
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds" env:"DATASOURCE_PROBE_TIMEOUT_SECONDS" env-default:"5"`
}

// GeneratorConfig holds destination trees and defaults for generated code.
type GeneratorConfig struct {
	FrontendRoot        string `yaml:"frontend_root" env:"GENERATOR_FRONTEND_ROOT" env-default:"./output/frontend"`
	BackendRoot         string `yaml:"backend_root" env:"GENERATOR_BACKEND_ROOT" env-default:"./output/backend"`
	SQLRoot             string `yaml:"sql_root" env:"GENERATOR_SQL_ROOT" env-default:"./output/sql"`
	TempDir             string `yaml:"temp_dir" env:"GENERATOR_TEMP_DIR" env-default:""` // os.TempDir() if empty
	DefaultAuthor       string `yaml:"default_author" env:"GENERATOR_DEFAULT_AUTHOR" env-default:"admingen"`
	DefaultTemplateType string `yaml:"default_template_type" env:"GENERATOR_DEFAULT_TEMPLATE_TYPE" env-default:"crud"`
	DefaultAPIPrefix    string `yaml:"default_api_prefix" env:"GENERATOR_DEFAULT_API_PREFIX" env-default:"/api"`
	DefaultPackageName  string `yaml:"default_package_name" env:"GENERATOR_DEFAULT_PACKAGE_NAME" env-default:"admin"`
}

// DeployConfig controls the background deployment runner.
type DeployConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent" env:"DEPLOY_MAX_CONCURRENT" env-default:"4"`
	TaskStore     string `yaml:"task_store" env:"DEPLOY_TASK_STORE" env-default:"memory"`
	TaskTTLHours  int    `yaml:"task_ttl_hours" env:"DEPLOY_TASK_TTL_HOURS" env-default:"24"`
}

// RedisConfig holds Redis settings, used only when deploy.task_store is "redis".
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LoggingConfig controls the zap logger and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File       string `yaml:"file" env:"LOG_FILE" env-default:""` // stdout only if empty
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
	Compress   bool   `yaml:"compress" env:"LOG_COMPRESS" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Generator.FrontendRoot == "" || c.Generator.BackendRoot == "" || c.Generator.SQLRoot == "" {
		return fmt.Errorf("generator frontend_root, backend_root and sql_root must all be set")
	}
	switch c.Deploy.TaskStore {
	case TaskStoreMemory:
	case TaskStoreRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("deploy.task_store is redis but redis.host is empty")
		}
	default:
		return fmt.Errorf("unknown deploy.task_store %q", c.Deploy.TaskStore)
	}
	if c.Deploy.MaxConcurrent <= 0 {
		c.Deploy.MaxConcurrent = 1
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
