package mysql

import "fmt"

// Config contains MySQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	TimeoutSeconds int
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
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

	if timeout, ok := config["timeout_seconds"].(float64); ok {
		cfg.TimeoutSeconds = int(timeout)
	} else if timeout, ok := config["timeout_seconds"].(int); ok {
		cfg.TimeoutSeconds = timeout
	}

	return cfg, nil
}

// DSN builds the go-sql-driver connection string. parseTime makes the driver
// return time.Time for temporal columns instead of raw bytes.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&timeout=%ds&readTimeout=0",
		c.User, c.Password, c.Host, c.Port, c.Database, c.TimeoutSeconds)
}
