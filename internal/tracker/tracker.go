// Package tracker ties the merge engine to the ledger store: it records
// observations as they arrive and normalizes stored days on demand.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rcliao/wip-ledger/internal/category"
	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/merge"
	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/settings"
	"github.com/rcliao/wip-ledger/internal/store"
)

// Service is the single writer of a ledger. All mutating calls are
// serialized.
type Service struct {
	mu         sync.Mutex
	ledger     store.Ledger
	settings   settings.Source
	engine     *merge.Engine
	categories *category.Classifier
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCategories classifies observations that arrive without a category.
func WithCategories(c *category.Classifier) Option {
	return func(s *Service) {
		s.categories = c
	}
}

// WithClock overrides the time used for observations without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(ledger store.Ledger, src settings.Source, engine *merge.Engine, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		settings: src,
		engine:   engine,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track folds one observation into its day's ledger and persists the result.
func (s *Service) Track(ctx context.Context, obs model.Observation) (merge.Incorporation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = s.now()
	}
	if obs.Category == "" && s.categories != nil {
		obs.Category = s.categories.Classify(ctx, obs.Description)
	}

	day := obs.ObservedAt.Format(model.DateLayout)
	ledger, err := s.ledger.List(ctx, store.ListParams{Date: day})
	if err != nil {
		return merge.Incorporation{}, fmt.Errorf("list %s: %w", day, err)
	}

	billing := settings.Resolve(ctx, s.settings)
	inc, err := s.engine.Incorporate(ctx, ledger, obs, billing)
	if err != nil {
		return merge.Incorporation{}, fmt.Errorf("incorporate: %w", err)
	}
	if err := s.ledger.ApplyIncorporation(ctx, inc); err != nil {
		return merge.Incorporation{}, fmt.Errorf("apply: %w", err)
	}

	if inc.Merged() {
		logging.Debug("tracker", "observation merged into %s (replaces %s, %d min)", inc.Record.ID, inc.Replaces, inc.Record.TimeInMinutes)
	} else {
		logging.Debug("tracker", "new record %s for %s/%s", inc.Record.ID, inc.Record.ClientName, inc.Record.ProjectName)
	}
	return inc, nil
}

// DayResult is the outcome of normalizing one day.
type DayResult struct {
	Date    string     `json:"date"`
	Plan    merge.Plan `json:"plan"`
	Run     *store.Run `json:"run,omitempty"`
	Applied bool       `json:"applied"`
}

// Normalize clusters and consolidates the active records of date, or of
// every day when date is empty. Days are never merged with each other.
// With dryRun set the plans are computed but not applied.
func (s *Service) Normalize(ctx context.Context, date string, dryRun bool) ([]DayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.ledger.List(ctx, store.ListParams{Date: date})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	var results []DayResult
	for _, day := range byDate(records) {
		plan, err := s.engine.Normalize(ctx, day.records)
		if err != nil {
			return results, fmt.Errorf("normalize %s: %w", day.date, err)
		}
		res := DayResult{Date: day.date, Plan: plan}
		if !dryRun && !plan.Empty() {
			run, err := s.ledger.Apply(ctx, plan, store.Run{Kind: store.RunNormalize})
			if err != nil {
				return results, fmt.Errorf("apply %s: %w", day.date, err)
			}
			res.Run = &run
			res.Applied = true
			logging.Info("tracker", "normalized %s: %d records into %d (run %s)",
				day.date, plan.Input, plan.Input-len(plan.Retire), run.ID)
		}
		results = append(results, res)
	}
	return results, nil
}

type dayRecords struct {
	date    string
	records []model.Record
}

// byDate splits records by Date, preserving their order within a day.
func byDate(records []model.Record) []dayRecords {
	idx := map[string]int{}
	var days []dayRecords
	for _, r := range records {
		i, ok := idx[r.Date]
		if !ok {
			i = len(days)
			idx[r.Date] = i
			days = append(days, dayRecords{date: r.Date})
		}
		days[i].records = append(days[i].records, r)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}
