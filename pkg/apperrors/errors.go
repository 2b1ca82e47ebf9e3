package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInUse                  = errors.New("resource is referenced by sync tasks")
	ErrInvalidInput           = errors.New("invalid input")
	ErrCredentialsKeyMismatch = errors.New("datasource credentials were encrypted with a different key")
)

// ConnectionReason classifies why a source connection failed, for user feedback.
type ConnectionReason string

const (
	ReasonAuth    ConnectionReason = "auth"
	ReasonNetwork ConnectionReason = "network"
	ReasonTimeout ConnectionReason = "timeout"
	ReasonUnknown ConnectionReason = "unknown"
)

// ConnectionError reports a failure to reach or authenticate against an
// external source database. Not retried automatically; the user fixes the
// profile and tries again.
type ConnectionError struct {
	Reason ConnectionReason
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection failed (%s)", e.Reason)
	}
	return fmt.Sprintf("connection failed (%s): %v", e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err with a classified reason.
func NewConnectionError(reason ConnectionReason, err error) *ConnectionError {
	return &ConnectionError{Reason: reason, Err: err}
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) (*ConnectionError, bool) {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// SchemaError reports a column whose source type could not be mapped to a
// warehouse type while deriving the target table definition.
type SchemaError struct {
	Table      string
	Column     string
	SourceType string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unmappable column type %q for %s.%s", e.SourceType, e.Table, e.Column)
}
