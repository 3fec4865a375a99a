package journal

import (
	"context"
	"time"

	"reshape/internal/operation"
)

// Store records executed operations.
type Store interface {
	// Record persists res and returns the generated entry ID. batchID is
	// empty for single operations.
	Record(ctx context.Context, batchID string, res *operation.Result) (string, error)

	// Recent returns the latest entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Batch returns the entries of one batch in execution order.
	Batch(ctx context.Context, batchID string) ([]Entry, error)

	Close() error
}

// Entry is one recorded operation.
type Entry struct {
	ID            string
	BatchID       string
	Type          operation.Type
	SelectorName  string
	SelectorFile  string
	Success       bool
	Error         string
	ErrorKind     operation.ErrorKind
	AffectedFiles []string
	Result        operation.Result
	CreatedAt     time.Time
}
