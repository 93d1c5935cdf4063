package backend

import (
	"context"
	"errors"
	"fmt"

	"tablero/internal/core"
	"tablero/internal/log"
	gsheet "tablero/internal/sheets/google"
	"tablero/internal/sheets/memory"
	"tablero/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	auth, err := gsheet.ResolveAuth(config.ServiceAccountEmail, config.PrivateKey, config.APIKey)
	if err != nil {
		var cfgErr *core.ConfigurationError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("resolve Google credentials: %w", err)
		}
		// Serve anyway; every read and append reports what is missing.
		f.logger.WarnContext(ctx, "Google Sheets credentials missing, backend unavailable",
			"missing", cfgErr.Missing)
		return &BackendResult{
			Repository: storage.NewUnavailableRepository(cfgErr, config.Target),
			Mode:       ModeUnconfigured,
		}, nil
	}

	cli, err := gsheet.New(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	repo := storage.NewTransactionRepository(withTimeout(cli, config.RequestTimeout), config.Target)
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend",
		"auth_mode", auth.Mode(),
		"sheet", repo.Target().SheetName,
		"range", repo.Target().DataRange,
		"request_timeout", config.RequestTimeout)

	return &BackendResult{
		Repository: repo,
		Mode:       string(auth.Mode()),
		Cleanup:    cli.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("initialize memory backend: %w", err)
	}

	target := config.Target
	if target.SpreadsheetID == "" {
		target.SpreadsheetID = MemorySpreadsheetID
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Repository: storage.NewTransactionRepository(store, target),
		Mode:       string(MemoryBackend),
	}, nil
}
