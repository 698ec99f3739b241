package merge

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/wip-ledger/internal/model"
)

var errRejected = errors.New("candidate rejected")

// pairMemo holds the decisions taken during one clustering run, keyed by
// input positions (member, candidate).
type pairMemo struct {
	mu sync.Mutex
	m  map[[2]int]Decision
}

func newPairMemo() *pairMemo {
	return &pairMemo{m: make(map[[2]int]Decision)}
}

func (p *pairMemo) lookup(a, b int) (Decision, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.m[[2]int{a, b}]
	return d, ok
}

// decide returns the memoized decision or asks the engine. Answers given
// under a cancelled context are not stored: they reflect the cancellation,
// not the oracle.
func (p *pairMemo) decide(ctx context.Context, e *Engine, records []model.Record, a, b int) Decision {
	if d, ok := p.lookup(a, b); ok {
		return d
	}
	d := e.Decide(ctx, records[a], records[b])
	if ctx.Err() == nil {
		p.mu.Lock()
		p.m[[2]int{a, b}] = d
		p.mu.Unlock()
	}
	return d
}

// Cluster partitions records into groups of mutually compatible entries.
//
// Records are visited in input order. Each unassigned record seeds a
// cluster; every later unassigned record joins it only if the decision
// against every current member is accepted. The result is a partition of
// the input, and each cluster lists its records in input order.
//
// Worst case is O(n^2) pairwise decisions. Oracle calls for one candidate
// run concurrently, bounded by Options.Concurrency, but candidates are
// admitted strictly in input order.
func (e *Engine) Cluster(ctx context.Context, records []model.Record) ([][]model.Record, error) {
	groups, _, err := e.cluster(ctx, records)
	if err != nil {
		return nil, err
	}
	out := make([][]model.Record, len(groups))
	for i, g := range groups {
		out[i] = make([]model.Record, len(g))
		for k, idx := range g {
			out[i][k] = records[idx]
		}
	}
	return out, nil
}

func (e *Engine) cluster(ctx context.Context, records []model.Record) ([][]int, *pairMemo, error) {
	memo := newPairMemo()
	assigned := make([]bool, len(records))
	var groups [][]int

	for seed := range records {
		if assigned[seed] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		assigned[seed] = true
		members := []int{seed}

		var candidates []int
		for j := seed + 1; j < len(records); j++ {
			if !assigned[j] {
				candidates = append(candidates, j)
			}
		}
		if err := e.prefetch(ctx, records, seed, candidates, memo); err != nil {
			return nil, nil, err
		}

		for _, j := range candidates {
			ok, err := e.acceptedByAll(ctx, records, members, j, memo)
			if err != nil {
				return nil, nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			if ok {
				members = append(members, j)
				assigned[j] = true
			}
		}

		clusterSizeHistogram.Observe(float64(len(members)))
		groups = append(groups, members)
	}
	return groups, memo, nil
}

// prefetch computes seed-vs-candidate decisions concurrently. Every
// candidate is checked against the seed first, so none of this is wasted.
func (e *Engine) prefetch(ctx context.Context, records []model.Record, seed int, candidates []int, memo *pairMemo) error {
	if len(candidates) < 2 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, j := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			memo.decide(gctx, e, records, seed, j)
			return nil
		})
	}
	return g.Wait()
}

// acceptedByAll reports whether candidate is accepted against every member.
// The seed decision is checked first; the remaining members fan out and the
// first rejection cancels the rest.
func (e *Engine) acceptedByAll(ctx context.Context, records []model.Record, members []int, candidate int, memo *pairMemo) (bool, error) {
	if !memo.decide(ctx, e, records, members[0], candidate).Accept() {
		return false, nil
	}
	rest := members[1:]
	if len(rest) == 0 {
		return true, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, m := range rest {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !memo.decide(gctx, e, records, m, candidate).Accept() {
				return errRejected
			}
			return nil
		})
	}
	err := g.Wait()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errRejected):
		return false, nil
	default:
		return false, err
	}
}
