package mssql

import (
	"fmt"
	"net/url"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	Encrypt        bool
	TimeoutSeconds int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort(),
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

	if encrypt, ok := config["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	}

	if timeout, ok := config["timeout_seconds"].(float64); ok {
		cfg.TimeoutSeconds = int(timeout)
	} else if timeout, ok := config["timeout_seconds"].(int); ok {
		cfg.TimeoutSeconds = timeout
	}

	return cfg, nil
}

// URL builds the sqlserver:// connection URL.
func (c *Config) URL() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("connection timeout", fmt.Sprintf("%d", c.TimeoutSeconds))
	if !c.Encrypt {
		query.Set("encrypt", "disable")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
