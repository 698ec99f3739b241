package merge

import (
	"context"
	"strings"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

// Incorporation is the result of folding one observation into a ledger.
type Incorporation struct {
	// Record is the new record to persist, possibly carrying an absorbed
	// ledger entry.
	Record model.Record `json:"record"`
	// Replaces is the ID of the absorbed ledger entry, which should be
	// retired. Empty when nothing matched.
	Replaces string `json:"replaces,omitempty"`
	// Decision is the accepted decision when the observation merged.
	Decision *Decision `json:"decision,omitempty"`
}

// Merged reports whether the observation was folded into an existing entry.
func (i Incorporation) Merged() bool { return i.Replaces != "" }

// NewRecord builds the ledger record for a single observation. Minutes
// default to 1; billing fields come from settings.
func (e *Engine) NewRecord(obs model.Observation, s model.Settings) model.Record {
	now := e.now()
	observed := obs.ObservedAt
	if observed.IsZero() {
		observed = now
	}
	minutes := obs.Minutes
	if minutes <= 0 {
		minutes = 1
	}
	client := strings.TrimSpace(obs.ClientName)
	if client == "" {
		client = model.UnknownClient
	}
	var entities []string
	if len(obs.Entities) > 0 {
		entities = append(entities, obs.Entities...)
	}
	return model.Record{
		ID:            e.newID(observed),
		ClientName:    client,
		ClientID:      obs.ClientID,
		ClientAddress: obs.ClientAddress,
		ProjectName:   strings.TrimSpace(obs.ProjectName),
		Description:   textutil.Normalize(obs.Description),
		TimeInMinutes: minutes,
		HourlyRate:    s.DefaultRate,
		Partner:       s.Partner,
		Date:          observed.Format(model.DateLayout),
		Category:      obs.Category,
		Entities:      entities,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Incorporate folds one observation into the day's ledger.
//
// The ledger is scanned in order. The first entry on the same date whose
// decision against the new record is accepted is absorbed into it: its
// minutes are added, description lines unioned (existing lines first), its
// client identity adopted when the new record's client is Unknown and its
// project adopted when the new record's project is generic. Scanning stops
// at that first match and the new record replaces the entry. With no match
// the new record is returned as-is.
func (e *Engine) Incorporate(ctx context.Context, ledger []model.Record, obs model.Observation, s model.Settings) (Incorporation, error) {
	rec := e.NewRecord(obs, s)

	for _, existing := range ledger {
		if err := ctx.Err(); err != nil {
			return Incorporation{}, err
		}
		if existing.Date != rec.Date || existing.RetiredAt != nil {
			continue
		}
		d := e.Decide(ctx, existing, rec)
		if !d.Accept() {
			continue
		}
		incorporatedCounter.WithLabelValues("merged").Inc()
		return Incorporation{
			Record:   absorb(rec, existing),
			Replaces: existing.ID,
			Decision: &d,
		}, nil
	}

	incorporatedCounter.WithLabelValues("created").Inc()
	return Incorporation{Record: rec}, nil
}

// absorb folds existing into the fresh record rec.
func absorb(rec, existing model.Record) model.Record {
	out := rec.Clone()
	out.TimeInMinutes += existing.TimeInMinutes
	out.Description = textutil.Union(existing.Description, rec.Description)
	if !out.HasKnownClient() && existing.HasKnownClient() {
		out.ClientName = existing.ClientName
		out.ClientID = existing.ClientID
		out.ClientAddress = existing.ClientAddress
	}
	if out.HasGenericProject() && strings.TrimSpace(existing.ProjectName) != "" {
		out.ProjectName = existing.ProjectName
	}
	if out.Category == "" {
		out.Category = existing.Category
	}
	out.Retainer = existing.Retainer
	out.Adjustment = existing.Adjustment
	out.Entities = textutil.DedupeLines(append(append([]string(nil), existing.Entities...), rec.Entities...))
	if len(out.Entities) == 0 {
		out.Entities = nil
	}
	return out
}
