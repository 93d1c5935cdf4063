package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidKind   = errors.New("invalid kind")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
)

// ParseError reports a single cell that could not be interpreted.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError means the sheet target or credentials are not set.
// It is never retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return "incomplete sheets configuration"
	}
	return "incomplete sheets configuration: missing " + strings.Join(e.Missing, ", ")
}

// FetchError wraps a failed read against the sheet.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch rows: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// AppendError wraps a failed append against the sheet.
type AppendError struct {
	Err error
}

func (e *AppendError) Error() string { return "append row: " + e.Err.Error() }
func (e *AppendError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
