package merge

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/oracle"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

// DefaultConcurrency bounds in-flight oracle calls when Options leaves it unset.
const DefaultConcurrency = 4

// Options tunes the engine. The zero value is valid.
type Options struct {
	// Exhaustive evaluates every oracle signal for every pair.
	Exhaustive bool
	// Concurrency bounds concurrent oracle calls during clustering.
	Concurrency int
	// MinNameSimilarity, when > 0, rejects pairs of known clients whose
	// names share less word overlap than this without asking the oracle.
	// Lossy: aliases with no common words are never merged.
	MinNameSimilarity float64
}

// Engine runs merge decisions against an oracle.
type Engine struct {
	oracle oracle.Oracle
	opts   Options
	now    func() time.Time
	newID  func(time.Time) string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for UpdatedAt and new records.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how new record IDs are minted.
func WithIDGenerator(fn func(time.Time) string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an Engine.
func New(o oracle.Oracle, opts Options, eopts ...EngineOption) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	e := &Engine{
		oracle: o,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewID,
	}
	for _, opt := range eopts {
		opt(e)
	}
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// NewID mints a ULID for t; lexical order follows creation time.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// Decide applies the pre-filter and then the pairwise oracle decision.
func (e *Engine) Decide(ctx context.Context, a, b model.Record) Decision {
	if e.prefiltered(a, b) {
		decisionCounter.WithLabelValues("prefiltered").Inc()
		return Decision{Partial: true}
	}
	d := Decide(ctx, e.oracle, a, b, e.opts.Exhaustive)
	if d.Accept() {
		decisionCounter.WithLabelValues("accept").Inc()
	} else {
		decisionCounter.WithLabelValues("reject").Inc()
	}
	return d
}

func (e *Engine) prefiltered(a, b model.Record) bool {
	if e.opts.MinNameSimilarity <= 0 {
		return false
	}
	if !a.HasKnownClient() || !b.HasKnownClient() {
		return false
	}
	return textutil.Similarity(a.ClientName, b.ClientName) < e.opts.MinNameSimilarity
}
