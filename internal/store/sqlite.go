package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rcliao/wip-ledger/internal/model"
)

// SQLiteStore implements Ledger using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id              TEXT PRIMARY KEY,
		client_name     TEXT NOT NULL DEFAULT 'Unknown',
		project_name    TEXT NOT NULL DEFAULT '',
		description     TEXT NOT NULL DEFAULT '',
		time_in_minutes INTEGER NOT NULL DEFAULT 0,
		hourly_rate     TEXT NOT NULL DEFAULT '0',
		date            TEXT NOT NULL,
		client_id       TEXT,
		client_address  TEXT,
		partner         TEXT,
		category        TEXT,
		entities        TEXT,
		retainer        INTEGER NOT NULL DEFAULT 0,
		adjustment      TEXT NOT NULL DEFAULT '0',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		retired_at      TEXT,
		absorbed_into   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_date ON records(date);
	CREATE INDEX IF NOT EXISTS idx_records_client ON records(client_name);
	CREATE INDEX IF NOT EXISTS idx_records_retired ON records(retired_at);

	CREATE TABLE IF NOT EXISTS merge_runs (
		run_id      TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		input       INTEGER NOT NULL DEFAULT 0,
		clusters    INTEGER NOT NULL DEFAULT 0,
		upserts     INTEGER NOT NULL DEFAULT 0,
		retired     INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS merge_links (
		from_id     TEXT NOT NULL REFERENCES records(id),
		to_id       TEXT NOT NULL REFERENCES records(id),
		run_id      TEXT NOT NULL REFERENCES merge_runs(run_id),
		confidence  REAL NOT NULL DEFAULT 0,
		partial     INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_links_to ON merge_links(to_id);

	CREATE TABLE IF NOT EXISTS settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Add partial column if missing (upgrade from older schema)
	s.db.Exec(`ALTER TABLE merge_links ADD COLUMN partial INTEGER NOT NULL DEFAULT 0`)
	return nil
}

const recordColumns = `id, client_name, project_name, description, time_in_minutes, hourly_rate,
	date, client_id, client_address, partner, category, entities, retainer, adjustment,
	created_at, updated_at, retired_at, absorbed_into`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) Put(ctx context.Context, r model.Record) (model.Record, error) {
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = s.newID(now)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	if r.Date == "" {
		r.Date = r.CreatedAt.Format(model.DateLayout)
	}
	if r.ClientName == "" {
		r.ClientName = model.UnknownClient
	}
	if err := upsertRecord(ctx, s.db, r); err != nil {
		return model.Record{}, err
	}
	return r, nil
}

func upsertRecord(ctx context.Context, db execer, r model.Record) error {
	var entities *string
	if len(r.Entities) > 0 {
		b, _ := json.Marshal(r.Entities)
		e := string(b)
		entities = &e
	}
	var retiredAt *string
	if r.RetiredAt != nil {
		v := r.RetiredAt.UTC().Format(time.RFC3339)
		retiredAt = &v
	}
	retainer := 0
	if r.Retainer {
		retainer = 1
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			project_name = excluded.project_name,
			description = excluded.description,
			time_in_minutes = excluded.time_in_minutes,
			hourly_rate = excluded.hourly_rate,
			date = excluded.date,
			client_id = excluded.client_id,
			client_address = excluded.client_address,
			partner = excluded.partner,
			category = excluded.category,
			entities = excluded.entities,
			retainer = excluded.retainer,
			adjustment = excluded.adjustment,
			updated_at = excluded.updated_at,
			retired_at = excluded.retired_at,
			absorbed_into = excluded.absorbed_into`,
		r.ID, r.ClientName, r.ProjectName, r.Description, r.TimeInMinutes, r.HourlyRate.String(),
		r.Date, nullable(r.ClientID), nullable(r.ClientAddress), nullable(r.Partner), nullable(r.Category),
		entities, retainer, r.Adjustment.String(),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
		retiredAt, nullable(r.AbsorbedInto))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Record{}, err
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	where := []string{"1 = 1"}
	args := []any{}

	if !p.IncludeRetired {
		where = append(where, "retired_at IS NULL")
	}
	if p.Date != "" {
		where = append(where, "date = ?")
		args = append(args, p.Date)
	}
	if p.From != "" {
		where = append(where, "date >= ?")
		args = append(args, p.From)
	}
	if p.To != "" {
		where = append(where, "date <= ?")
		args = append(args, p.To)
	}
	if p.Client != "" {
		where = append(where, "client_name = ? COLLATE NOCASE")
		args = append(args, p.Client)
	}
	if p.Project != "" {
		where = append(where, "project_name = ? COLLATE NOCASE")
		args = append(args, p.Project)
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Retire(ctx context.Context, id string) error {
	return retireRecord(ctx, s.db, id, "", time.Now().UTC())
}

func retireRecord(ctx context.Context, db execer, id, into string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE records SET retired_at = ?, absorbed_into = ? WHERE id = ? AND retired_at IS NULL`,
		at.Format(time.RFC3339), nullable(into), id)
	if err != nil {
		return fmt.Errorf("retire record %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("retire record: %w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.Record, error) {
	var r model.Record
	var rate, adjustment, createdAt, updatedAt string
	var clientID, clientAddress, partner, category, entities, retiredAt, absorbedInto sql.NullString
	var retainer int

	err := row.Scan(
		&r.ID, &r.ClientName, &r.ProjectName, &r.Description, &r.TimeInMinutes, &rate,
		&r.Date, &clientID, &clientAddress, &partner, &category, &entities, &retainer, &adjustment,
		&createdAt, &updatedAt, &retiredAt, &absorbedInto,
	)
	if err != nil {
		return r, err
	}

	r.HourlyRate, _ = decimal.NewFromString(rate)
	r.Adjustment, _ = decimal.NewFromString(adjustment)
	r.Retainer = retainer != 0
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	r.ClientID = clientID.String
	r.ClientAddress = clientAddress.String
	r.Partner = partner.String
	r.Category = category.String
	r.AbsorbedInto = absorbedInto.String
	if entities.Valid {
		json.Unmarshal([]byte(entities.String), &r.Entities)
	}
	if retiredAt.Valid {
		t, _ := time.Parse(time.RFC3339, retiredAt.String)
		r.RetiredAt = &t
	}
	return r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
