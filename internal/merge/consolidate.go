package merge

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/oracle"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

// ErrEmptyGroup is returned when consolidating zero records.
var ErrEmptyGroup = errors.New("consolidate: empty group")

// Consolidate folds a cluster into one record.
//
//   - records are ordered by ID (creation order)
//   - minutes are summed exactly
//   - the client is the first known one, with its ID and address
//   - the description is a left fold of CompareDescriptions over the
//     ordered records, with exact duplicate lines removed
//   - every other field comes from the last record; UpdatedAt is now
//
// A single record comes back unchanged apart from UpdatedAt.
func (e *Engine) Consolidate(ctx context.Context, group []model.Record) (model.Record, error) {
	if len(group) == 0 {
		return model.Record{}, ErrEmptyGroup
	}
	if len(group) == 1 {
		r := group[0].Clone()
		r.UpdatedAt = e.now()
		return r, nil
	}

	sorted := make([]model.Record, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := sorted[len(sorted)-1].Clone()

	minutes := 0
	for _, r := range sorted {
		minutes += r.TimeInMinutes
	}
	out.TimeInMinutes = minutes

	out.ClientName = model.UnknownClient
	out.ClientID, out.ClientAddress = "", ""
	for _, r := range sorted {
		if r.HasKnownClient() {
			out.ClientName = r.ClientName
			out.ClientID = r.ClientID
			out.ClientAddress = r.ClientAddress
			break
		}
	}

	desc := sorted[0].Description
	for _, r := range sorted[1:] {
		cmp := e.oracle.CompareDescriptions(ctx, desc, r.Description)
		desc = oracle.Resolve(desc, r.Description, cmp)
	}
	out.Description = strings.Join(textutil.DedupeLines(textutil.SplitLines(desc)), "\n")

	out.UpdatedAt = e.now()
	return out, nil
}
