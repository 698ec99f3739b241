package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/wip-ledger/internal/merge"
)

// Run kinds recorded in the audit trail.
const (
	RunNormalize = "normalize"
	RunTrack     = "track"
)

// Run describes one application of engine output to the ledger.
type Run struct {
	ID        string    `json:"run_id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	Input     int       `json:"input"`
	Clusters  int       `json:"clusters"`
	Upserts   int       `json:"upserts"`
	Retired   int       `json:"retired"`
}

// Link records that one record was absorbed into another by a run.
type Link struct {
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	RunID      string  `json:"run_id"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	// Partial is set when Confidence covers only the signals evaluated
	// before the merge outcome was fixed.
	Partial   bool   `json:"partial,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Apply persists a normalization plan: upserts first, then retirements
// with their absorption links, all in one transaction. A run ID is
// generated when run.ID is empty.
func (s *SQLiteStore) Apply(ctx context.Context, plan merge.Plan, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Kind == "" {
		run.Kind = RunNormalize
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Input = plan.Input
	run.Clusters = plan.Clusters
	run.Upserts = len(plan.Upserts)
	run.Retired = len(plan.Retire)

	into := make(map[string]merge.Absorption, len(plan.Absorbed))
	for _, a := range plan.Absorbed {
		into[a.From] = a
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, err
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return run, err
	}
	for _, r := range plan.Upserts {
		if err := upsertRecord(ctx, tx, r); err != nil {
			return run, err
		}
	}
	now := time.Now().UTC()
	for _, id := range plan.Retire {
		a := into[id]
		if err := retireRecord(ctx, tx, id, a.Into, now); err != nil {
			return run, err
		}
		if a.Into != "" {
			if err := insertLink(ctx, tx, a, run.ID, now); err != nil {
				return run, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return run, err
	}
	return run, nil
}

// ApplyIncorporation stores the record produced for one observation and,
// when it absorbed a ledger entry, retires that entry and links it.
func (s *SQLiteStore) ApplyIncorporation(ctx context.Context, inc merge.Incorporation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertRecord(ctx, tx, inc.Record); err != nil {
		return err
	}
	if inc.Merged() {
		now := time.Now().UTC()
		run := Run{ID: uuid.NewString(), Kind: RunTrack, StartedAt: now, Input: 1, Clusters: 1, Upserts: 1, Retired: 1}
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if err := retireRecord(ctx, tx, inc.Replaces, inc.Record.ID, now); err != nil {
			return err
		}
		a := merge.Absorption{From: inc.Replaces, Into: inc.Record.ID}
		if inc.Decision != nil {
			a.Confidence = inc.Decision.Confidence
			a.Partial = inc.Decision.Partial
		}
		if err := insertLink(ctx, tx, a, run.ID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertRun(ctx context.Context, db execer, run Run) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO merge_runs (run_id, kind, started_at, input, clusters, upserts, retired)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt.UTC().Format(time.RFC3339), run.Input, run.Clusters, run.Upserts, run.Retired)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertLink(ctx context.Context, db execer, a merge.Absorption, runID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO merge_links (from_id, to_id, run_id, confidence, partial, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.From, a.Into, runID, a.Confidence, a.Partial, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// History returns every absorption link touching a record, oldest first.
func (s *SQLiteStore) History(ctx context.Context, id string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.from_id, l.to_id, l.run_id, r.kind, l.confidence, l.partial, l.created_at
		 FROM merge_links l JOIN merge_runs r ON r.run_id = l.run_id
		 WHERE l.from_id = ? OR l.to_id = ?
		 ORDER BY l.created_at, l.from_id`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.FromID, &l.ToID, &l.RunID, &l.Kind, &l.Confidence, &l.Partial, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Runs returns the most recent runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, kind, started_at, input, clusters, upserts, retired
		 FROM merge_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Kind, &started, &r.Input, &r.Clusters, &r.Upserts, &r.Retired); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
