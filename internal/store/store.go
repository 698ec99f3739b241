// Package store provides the ledger storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/wip-ledger/internal/merge"
	"github.com/rcliao/wip-ledger/internal/model"
)

// ErrNotFound is returned when a record ID does not exist (or is retired
// where an active record is required).
var ErrNotFound = errors.New("record not found")

// ListParams holds parameters for listing records.
type ListParams struct {
	Date           string // exact day, YYYY-MM-DD
	From           string // inclusive lower bound on date
	To             string // inclusive upper bound on date
	Client         string
	Project        string
	IncludeRetired bool
	Limit          int // 0 means no limit
}

// Ledger is the persistence boundary of the merge engine: it hands out the
// current records and applies the engine's plans atomically.
type Ledger interface {
	// Put inserts or replaces a record. An empty ID is assigned.
	Put(ctx context.Context, r model.Record) (model.Record, error)

	// Get returns a record by ID, retired or not.
	Get(ctx context.Context, id string) (model.Record, error)

	// List returns records ordered by ID (creation order).
	List(ctx context.Context, p ListParams) ([]model.Record, error)

	// Retire marks an active record retired.
	Retire(ctx context.Context, id string) error

	// Apply upserts, retires and records the audit trail of a normalization
	// plan in one transaction.
	Apply(ctx context.Context, plan merge.Plan, run Run) (Run, error)

	// ApplyIncorporation persists the result of folding one observation.
	ApplyIncorporation(ctx context.Context, inc merge.Incorporation) error

	// Close closes the store.
	Close() error
}
