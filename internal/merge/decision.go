// Package merge decides which ledger records describe the same work and
// folds them together, either for a whole ledger (Cluster, Consolidate,
// Normalize) or one observation at a time (Incorporate).
package merge

import (
	"context"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/oracle"
)

// Threshold is the confidence a decision must exceed to be accepted.
const Threshold = 0.7

const (
	clientWeight      = 0.4
	projectWeight     = 0.4
	descriptionWeight = 0.2
)

// Decision is the pairwise verdict for two records.
type Decision struct {
	ShouldMerge  bool    `json:"should_merge"`
	Confidence   float64 `json:"confidence"`
	ClientMatch  bool    `json:"client_match"`
	ProjectMatch bool    `json:"project_match"`
	DescMatch    bool    `json:"desc_match"`
	// Partial is set when signals that could not change Accept were
	// skipped; Confidence then covers only the evaluated ones.
	Partial bool `json:"partial,omitempty"`
}

// Accept reports whether the pair may be merged.
func (d Decision) Accept() bool {
	return d.ShouldMerge && d.Confidence > Threshold
}

// Decide compares two records through the oracle.
//
// With exhaustive set every signal is evaluated. Otherwise evaluation stops
// as soon as the gated outcome is fixed: a client mismatch can never merge,
// a project mismatch caps confidence at 0.6, and a client+project match
// already clears the threshold, so descriptions are only compared when
// exhaustive is set.
func Decide(ctx context.Context, o oracle.Oracle, e1, e2 model.Record, exhaustive bool) Decision {
	var d Decision

	d.ClientMatch = o.SameClient(ctx, e1.ClientName, e2.ClientName)
	if !d.ClientMatch && !exhaustive {
		d.Partial = true
		return d
	}

	d.ProjectMatch = o.SameProject(ctx, e1.ProjectName, e2.ProjectName)
	if !exhaustive {
		d.Partial = true
		d.ShouldMerge = d.ClientMatch && d.ProjectMatch
		d.Confidence = score(d)
		return d
	}

	d.DescMatch = o.CompareDescriptions(ctx, e1.Description, e2.Description).ShouldUpdate
	d.ShouldMerge = d.ClientMatch && (d.ProjectMatch || d.DescMatch)
	d.Confidence = score(d)
	return d
}

func score(d Decision) float64 {
	var c float64
	if d.ClientMatch {
		c += clientWeight
	}
	if d.ProjectMatch {
		c += projectWeight
	}
	if d.DescMatch {
		c += descriptionWeight
	}
	return c
}
