package store

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rcliao/wip-ledger/internal/model"
)

// ReportParams selects the active records to total.
type ReportParams struct {
	From   string
	To     string
	Client string
}

// ReportLine totals one client/project pair.
type ReportLine struct {
	Client  string          `json:"client"`
	Project string          `json:"project"`
	Partner string          `json:"partner,omitempty"`
	Records int             `json:"records"`
	Minutes int             `json:"minutes"`
	Hours   decimal.Decimal `json:"hours"`
	Amount  decimal.Decimal `json:"amount"`
}

// Report is the billing summary for a date range.
type Report struct {
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	Lines        []ReportLine    `json:"lines"`
	TotalMinutes int             `json:"total_minutes"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// Report totals active records per client and project. Amounts use each
// record's own rate and adjustment.
func (s *SQLiteStore) Report(ctx context.Context, p ReportParams) (*Report, error) {
	records, err := s.List(ctx, ListParams{From: p.From, To: p.To, Client: p.Client})
	if err != nil {
		return nil, err
	}
	return buildReport(p, records), nil
}

func buildReport(p ReportParams, records []model.Record) *Report {
	type key struct{ client, project string }
	lines := map[key]*ReportLine{}
	rep := &Report{From: p.From, To: p.To, Lines: []ReportLine{}, TotalAmount: decimal.Zero}

	for _, r := range records {
		k := key{r.ClientName, r.ProjectName}
		l, ok := lines[k]
		if !ok {
			l = &ReportLine{Client: r.ClientName, Project: r.ProjectName, Amount: decimal.Zero}
			lines[k] = l
		}
		l.Records++
		l.Minutes += r.TimeInMinutes
		l.Amount = l.Amount.Add(r.Amount())
		if l.Partner == "" {
			l.Partner = r.Partner
		}
		rep.TotalMinutes += r.TimeInMinutes
		rep.TotalAmount = rep.TotalAmount.Add(r.Amount())
	}

	for _, l := range lines {
		l.Hours = decimal.NewFromInt(int64(l.Minutes)).Div(decimal.NewFromInt(60)).Round(2)
		rep.Lines = append(rep.Lines, *l)
	}
	sort.Slice(rep.Lines, func(i, j int) bool {
		if rep.Lines[i].Client != rep.Lines[j].Client {
			return rep.Lines[i].Client < rep.Lines[j].Client
		}
		return rep.Lines[i].Project < rep.Lines[j].Project
	})
	return rep
}
