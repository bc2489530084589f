package backend

import (
	"context"

	"findash/internal/sheets"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the journal and the optional capabilities of the
// selected backend. Lister is nil when the backend cannot list uploads.
type BackendResult struct {
	Journal sheets.UploadJournal
	Lister  sheets.JournalLister
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates journal backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// memory
	MemoryCapacity int

	// sqlite
	SQLiteDBPath string

	// amqp
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names an upload journal implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	AMQPBackend   BackendType = "amqp"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, AMQPBackend:
		return true
	default:
		return false
	}
}
