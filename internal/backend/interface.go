package backend

import (
	"context"
	"time"

	"tablero/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the repository built for a backend and an
// optional cleanup function
type BackendResult struct {
	Repository *storage.TransactionRepository
	// Mode describes how the backend reaches its data, e.g. "api_key",
	// "service_account", "memory" or "unconfigured".
	Mode    string
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Where the transaction table lives
	Target storage.Target

	// Google Sheets specific
	ServiceAccountEmail string
	PrivateKey          string
	APIKey              string
	RequestTimeout      time.Duration

	// Memory backend specific
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// ModeUnconfigured marks a sheets backend started without credentials.
const ModeUnconfigured = "unconfigured"

// MemorySpreadsheetID stands in for a spreadsheet id on the memory backend.
const MemorySpreadsheetID = "memory"

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
