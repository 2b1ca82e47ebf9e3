package postgres

import (
	"fmt"
	"net/url"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	TimeoutSeconds int
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort(),
		SSLMode:        "prefer",
		TimeoutSeconds: 8,
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := config["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	}

	if sslMode, ok := config["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	if timeout, ok := config["timeout_seconds"].(float64); ok {
		cfg.TimeoutSeconds = int(timeout)
	} else if timeout, ok := config["timeout_seconds"].(int); ok {
		cfg.TimeoutSeconds = timeout
	}

	return cfg, nil
}

// URL builds the connection URL. Credentials are escaped so special
// characters in passwords survive.
func (c *Config) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode, c.TimeoutSeconds)
}
