package store

import (
	"context"
	"strings"

	"github.com/rcliao/wip-ledger/internal/model"
)

// SearchParams holds parameters for searching records.
type SearchParams struct {
	Query          string
	From           string
	To             string
	IncludeRetired bool
	Limit          int
}

// Search finds records whose client, project, category or description
// contains the query substring (case-insensitive), newest first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + strings.TrimSpace(p.Query) + "%"

	where := []string{"(client_name LIKE ? OR project_name LIKE ? OR category LIKE ? OR description LIKE ?)"}
	args := []any{query, query, query, query}

	if !p.IncludeRetired {
		where = append(where, "retired_at IS NULL")
	}
	if p.From != "" {
		where = append(where, "date >= ?")
		args = append(args, p.From)
	}
	if p.To != "" {
		where = append(where, "date <= ?")
		args = append(args, p.To)
	}

	sql := `SELECT ` + recordColumns + ` FROM records WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
