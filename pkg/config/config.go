package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the sync engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Warehouse database configuration (PostgreSQL). The engine's own tables
	// and the synced target tables live in the same database.
	Database DatabaseConfig `yaml:"database"`

	// Source connection and sync behavior
	Sync SyncConfig `yaml:"sync"`

	// Scheduler behavior
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Credential encryption key for stored datasource passwords.
	// Either a base64-encoded 32-byte key (openssl rand -base64 32) or a
	// passphrase. Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL warehouse configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"warehouse"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"warehouse"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// SyncConfig holds source connection and copy tuning.
type SyncConfig struct {
	// ConnectTimeoutSeconds bounds connection tests and catalog queries.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"SYNC_CONNECT_TIMEOUT_SECONDS" env-default:"8"`
	// BatchSize is the number of rows per streamed copy batch.
	BatchSize int `yaml:"batch_size" env:"SYNC_BATCH_SIZE" env-default:"1000"`
	// MaxWorkers bounds concurrent table syncs within one batch request.
	MaxWorkers int `yaml:"max_workers" env:"SYNC_MAX_WORKERS" env-default:"3"`
	// PreviewDefaultRows is the sample row cap when the client omits one.
	PreviewDefaultRows int `yaml:"preview_default_rows" env:"SYNC_PREVIEW_DEFAULT_ROWS" env-default:"100"`
	// PreviewMaxRows is the hard cap on requested preview rows.
	PreviewMaxRows int `yaml:"preview_max_rows" env:"SYNC_PREVIEW_MAX_ROWS" env-default:"1000"`
}

// SchedulerConfig holds recurring task scheduler settings.
type SchedulerConfig struct {
	// Enabled controls whether the background scheduler loop is started.
	Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	// PollSeconds is the clock loop resolution. Must be 60 or less so no
	// matching minute is skipped.
	PollSeconds int `yaml:"poll_seconds" env:"SCHEDULER_POLL_SECONDS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, CREDENTIALS_KEY) must come from environment variables
// (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.CredentialsKey == "" {
		return fmt.Errorf("CREDENTIALS_KEY must be set")
	}
	if c.Scheduler.PollSeconds <= 0 || c.Scheduler.PollSeconds > 60 {
		return fmt.Errorf("scheduler poll_seconds must be in 1..60, got %d", c.Scheduler.PollSeconds)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.MaxWorkers <= 0 {
		return fmt.Errorf("sync max_workers must be positive, got %d", c.Sync.MaxWorkers)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the warehouse.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
