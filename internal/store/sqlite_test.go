package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcliao/wip-ledger/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(client, project, desc string, minutes int, date string) model.Record {
	return model.Record{
		ClientName:    client,
		ProjectName:   project,
		Description:   desc,
		TimeInMinutes: minutes,
		HourlyRate:    decimal.NewFromInt(150),
		Date:          date,
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := testRecord("Tech Corp", "Database Migration", "- schema", 45, "2026-10-17")
	in.Entities = []string{"postgres", "flyway"}
	in.Adjustment = decimal.RequireFromString("-12.50")
	in.ClientID = "tc-1"

	r, err := s.Put(ctx, in)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClientName != "Tech Corp" || got.ProjectName != "Database Migration" {
		t.Errorf("unexpected identity: %q / %q", got.ClientName, got.ProjectName)
	}
	if got.TimeInMinutes != 45 {
		t.Errorf("expected 45 minutes, got %d", got.TimeInMinutes)
	}
	if !got.HourlyRate.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected rate 150, got %s", got.HourlyRate)
	}
	if !got.Adjustment.Equal(decimal.RequireFromString("-12.5")) {
		t.Errorf("expected adjustment -12.5, got %s", got.Adjustment)
	}
	if len(got.Entities) != 2 || got.Entities[1] != "flyway" {
		t.Errorf("unexpected entities: %v", got.Entities)
	}
	if got.ClientID != "tc-1" {
		t.Errorf("expected client id tc-1, got %q", got.ClientID)
	}
	if got.RetiredAt != nil {
		t.Error("new record should be active")
	}
}

func TestPutDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	r, err := s.Put(ctx, model.Record{Description: "- x", CreatedAt: at})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if r.ClientName != model.UnknownClient {
		t.Errorf("expected Unknown client, got %q", r.ClientName)
	}
	if r.Date != "2026-10-17" {
		t.Errorf("expected date from created_at, got %q", r.Date)
	}
}

func TestPutUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r, _ := s.Put(ctx, testRecord("A", "P", "- one", 5, "2026-10-17"))
	r.TimeInMinutes = 9
	r.Description = "- one\n- two"
	if _, err := s.Put(ctx, r); err != nil {
		t.Fatalf("second put: %v", err)
	}

	all, _ := s.List(ctx, ListParams{})
	if len(all) != 1 {
		t.Fatalf("expected 1 record after upsert, got %d", len(all))
	}
	if all[0].TimeInMinutes != 9 || all[0].Description != "- one\n- two" {
		t.Errorf("upsert not applied: %+v", all[0])
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, testRecord("Tech Corp", "Migration", "- a", 10, "2026-10-16"))
	s.Put(ctx, testRecord("Tech Corp", "Portal", "- b", 10, "2026-10-17"))
	s.Put(ctx, testRecord("Acme", "Migration", "- c", 10, "2026-10-17"))
	s.Put(ctx, testRecord("Acme", "Audit", "- d", 10, "2026-10-18"))

	tests := []struct {
		name string
		p    ListParams
		want int
	}{
		{"all", ListParams{}, 4},
		{"date", ListParams{Date: "2026-10-17"}, 2},
		{"range", ListParams{From: "2026-10-17", To: "2026-10-18"}, 3},
		{"client case-insensitive", ListParams{Client: "tech corp"}, 2},
		{"project", ListParams{Project: "migration"}, 2},
		{"limit", ListParams{Limit: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.p)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}

func TestListOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"r3", "r1", "r2"} {
		r := testRecord("A", "P", "- "+id, 1, "2026-10-17")
		r.ID = id
		s.Put(ctx, r)
	}
	got, _ := s.List(ctx, ListParams{})
	if len(got) != 3 || got[0].ID != "r1" || got[1].ID != "r2" || got[2].ID != "r3" {
		t.Errorf("expected r1,r2,r3 order, got %v", got)
	}
}

func TestRetire(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r, _ := s.Put(ctx, testRecord("A", "P", "- x", 1, "2026-10-17"))
	if err := s.Retire(ctx, r.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}

	active, _ := s.List(ctx, ListParams{})
	if len(active) != 0 {
		t.Errorf("expected retired record to be hidden, got %d", len(active))
	}
	all, _ := s.List(ctx, ListParams{IncludeRetired: true})
	if len(all) != 1 || all[0].RetiredAt == nil {
		t.Error("expected retired record with retired_at set")
	}

	// Retiring twice is an error.
	if err := s.Retire(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second retire, got %v", err)
	}
	if err := s.Retire(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing record, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Settings(ctx); err == nil {
		t.Fatal("expected error for empty settings")
	}

	if err := s.SetSetting(ctx, SettingDefaultRate, "175.50"); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !got.DefaultRate.Equal(decimal.RequireFromString("175.5")) {
		t.Errorf("expected rate 175.5, got %s", got.DefaultRate)
	}
	if got.Partner != "" {
		t.Errorf("expected empty partner, got %q", got.Partner)
	}

	s.SetSetting(ctx, SettingPartner, "Jane Doe")
	s.SetSetting(ctx, SettingPartner, "John Roe")
	got, _ = s.Settings(ctx)
	if got.Partner != "John Roe" {
		t.Errorf("expected latest partner, got %q", got.Partner)
	}
}

func TestSetSettingValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		key, value string
	}{
		{"colour", "blue"},
		{SettingDefaultRate, "abc"},
		{SettingDefaultRate, "-1"},
	}
	for _, tt := range tests {
		if err := s.SetSetting(ctx, tt.key, tt.value); err == nil {
			t.Errorf("expected error for %s=%s", tt.key, tt.value)
		}
	}
}
