package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string        `json:"db_path"`
	DBSizeBytes    int64         `json:"db_size_bytes"`
	TotalRecords   int           `json:"total_records"`
	ActiveRecords  int           `json:"active_records"`
	RetiredRecords int           `json:"retired_records"`
	Days           int           `json:"days"`
	Runs           int           `json:"runs"`
	Clients        []ClientStats `json:"clients"`
}

// ClientStats holds per-client counts over active records.
type ClientStats struct {
	Client   string `json:"client"`
	Records  int    `json:"records"`
	Projects int    `json:"projects"`
	Minutes  int    `json:"minutes"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.TotalRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE retired_at IS NULL`).Scan(&st.ActiveRecords)
	st.RetiredRecords = st.TotalRecords - st.ActiveRecords
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT date) FROM records WHERE retired_at IS NULL`).Scan(&st.Days)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merge_runs`).Scan(&st.Runs)

	clients, err := s.Clients(ctx)
	if err != nil {
		return st, err
	}
	st.Clients = clients
	return st, nil
}

// Clients lists distinct clients of active records, busiest first.
func (s *SQLiteStore) Clients(ctx context.Context) ([]ClientStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_name, COUNT(*) AS cnt, COUNT(DISTINCT project_name), COALESCE(SUM(time_in_minutes), 0) AS mins
		FROM records WHERE retired_at IS NULL
		GROUP BY client_name ORDER BY mins DESC, client_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientStats
	for rows.Next() {
		var c ClientStats
		if err := rows.Scan(&c.Client, &c.Records, &c.Projects, &c.Minutes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
