// Package logging builds the process logger and scrubs credentials from
// anything that ends up in log output or sync results.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a zap logger appropriate for the environment.
// Local environments get the human-readable development config; everything
// else logs structured JSON at info level.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" || env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
