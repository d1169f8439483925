package backend

import (
	"context"
	"fmt"
	"log/slog"

	gremote "frugal/internal/remote/google"
	"frugal/internal/remote/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := gremote.New(ctx, gremote.Config{
		SpreadsheetID:     config.GoogleSpreadsheetID,
		OAuthClientJSON:   config.GoogleOAuthClientJSON,
		OAuthClientFile:   config.GoogleOAuthClientFile,
		OAuthTokenJSON:    config.GoogleOAuthTokenJSON,
		OAuthTokenFile:    config.GoogleOAuthTokenFile,
		TransactionsSheet: config.GoogleSheetName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets store: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Store: store, Cleanup: func() error { return nil }}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &BackendResult{Store: store, Cleanup: func() error { return nil }}, nil
}
