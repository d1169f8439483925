package backend

import (
	"context"

	"frugal/internal/remote"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the remote store and optional cleanup function.
type BackendResult struct {
	Store   remote.Store
	Cleanup CleanupFunc
}

// Factory creates remote-store backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// BackendType selects the remote store implementation.
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
