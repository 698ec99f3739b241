package merge

import (
	"context"
	"fmt"

	"github.com/rcliao/wip-ledger/internal/model"
)

// Absorption records that one record was folded into another.
type Absorption struct {
	From       string  `json:"from"`
	Into       string  `json:"into"`
	Confidence float64 `json:"confidence"`
	// Partial marks a confidence computed from a short-circuited decision.
	Partial bool `json:"partial,omitempty"`
}

// Plan is what a normalization run asks the persistence layer to do.
type Plan struct {
	Upserts  []model.Record `json:"upserts"`
	Retire   []string       `json:"retire"`
	Absorbed []Absorption   `json:"absorbed"`
	Clusters int            `json:"clusters"`
	Input    int            `json:"input"`
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Upserts) == 0 && len(p.Retire) == 0
}

// Normalize clusters a ledger and consolidates every multi-record cluster.
// Singletons are left untouched. The consolidated record keeps the ID of
// the last record of its cluster; the others are retired into it.
func (e *Engine) Normalize(ctx context.Context, ledger []model.Record) (Plan, error) {
	groups, memo, err := e.cluster(ctx, ledger)
	if err != nil {
		return Plan{}, fmt.Errorf("cluster: %w", err)
	}

	plan := Plan{Clusters: len(groups), Input: len(ledger)}
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		members := make([]model.Record, len(g))
		for k, idx := range g {
			members[k] = ledger[idx]
		}
		merged, err := e.Consolidate(ctx, members)
		if err != nil {
			return Plan{}, err
		}
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		plan.Upserts = append(plan.Upserts, merged)

		seed, into := g[0], g[0]
		for _, idx := range g {
			if ledger[idx].ID == merged.ID {
				into = idx
			}
		}
		for _, idx := range g {
			if idx == into {
				continue
			}
			other := idx
			if idx == seed {
				other = into
			}
			a := Absorption{From: ledger[idx].ID, Into: merged.ID}
			if d, ok := memo.lookup(seed, other); ok {
				a.Confidence = d.Confidence
				a.Partial = d.Partial
			}
			plan.Retire = append(plan.Retire, ledger[idx].ID)
			plan.Absorbed = append(plan.Absorbed, a)
		}
	}
	return plan, nil
}
