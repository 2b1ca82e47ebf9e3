package models

import (
	"time"

	"github.com/google/uuid"
)

// MaskedPassword is what every API response shows in place of a stored password.
const MaskedPassword = "********"

// DataSource is a registered external source connection profile. Password is
// stored encrypted and never echoed back in full.
type DataSource struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SourceType string    `json:"source_type"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	User       string    `json:"user"`
	Password   string    `json:"-"`
	Database   string    `json:"database"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConnConfig returns the adapter config map for this profile with the
// plaintext password supplied by the service layer.
func (d *DataSource) ConnConfig(password string) map[string]any {
	return map[string]any{
		"host":     d.Host,
		"port":     d.Port,
		"user":     d.User,
		"password": password,
		"database": d.Database,
	}
}
