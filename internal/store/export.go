package store

import (
	"context"
	"time"

	"github.com/rcliao/wip-ledger/internal/model"
)

// ExportAll returns every record in ID order, optionally including retired ones.
func (s *SQLiteStore) ExportAll(ctx context.Context, includeRetired bool) ([]model.Record, error) {
	return s.List(ctx, ListParams{IncludeRetired: includeRetired})
}

// Import stores records from an export. Records whose ID already exists
// are skipped; records without an ID get a fresh one.
func (s *SQLiteStore) Import(ctx context.Context, records []model.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, r := range records {
		if r.ID != "" {
			var exists int
			tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE id = ?`, r.ID).Scan(&exists)
			if exists > 0 {
				continue
			}
		} else {
			at := r.CreatedAt
			if at.IsZero() {
				at = time.Now().UTC()
			}
			r.ID = s.newID(at)
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}
		if r.Date == "" {
			r.Date = r.CreatedAt.Format(model.DateLayout)
		}
		if r.ClientName == "" {
			r.ClientName = model.UnknownClient
		}
		if err := upsertRecord(ctx, tx, r); err != nil {
			return imported, err
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}
