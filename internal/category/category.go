// Package category assigns a work category to a description, retrying the
// backing classifier a bounded number of times before falling back to a
// default label.
package category

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/oracle"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

// DefaultLabel is used when classification fails or yields nothing usable.
const DefaultLabel = "General"

// MaxRetries is the number of retries after the first failed attempt.
const MaxRetries = 2

// DefaultLabels are offered to the classifier when none are configured.
var DefaultLabels = []string{
	"General",
	"Development",
	"Design",
	"Meetings",
	"Research",
	"Documentation",
	"Administration",
	"Support",
}

// Labeler returns a category for a description. Implementations may fail.
type Labeler interface {
	Label(ctx context.Context, description string, labels []string) (string, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Classifier wraps a Labeler with retries, a cache and a default label.
type Classifier struct {
	labeler Labeler
	labels  []string
	cache   *oracle.Cache
	sleep   Sleeper
	delay   time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLabels restricts the allowed categories.
func WithLabels(labels []string) Option {
	return func(c *Classifier) {
		if len(labels) > 0 {
			c.labels = labels
		}
	}
}

// WithCache memoizes results per normalized description.
func WithCache(cache *oracle.Cache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// WithSleeper overrides how the classifier waits between attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Classifier) {
		c.sleep = s
	}
}

// WithBaseDelay sets the first retry delay; attempt n waits n*delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Classifier) {
		c.delay = d
	}
}

// New creates a Classifier. A nil labeler always yields DefaultLabel.
func New(l Labeler, opts ...Option) *Classifier {
	c := &Classifier{
		labeler: l,
		labels:  DefaultLabels,
		sleep:   sleepContext,
		delay:   time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Labels returns the allowed categories.
func (c *Classifier) Labels() []string { return c.labels }

// Classify returns a category for description. It never fails: after
// MaxRetries retries with increasing delay (1s, 2s by default) it returns
// DefaultLabel. Only successful answers are cached.
func (c *Classifier) Classify(ctx context.Context, description string) string {
	text := textutil.Normalize(description)
	if text == "" || c.labeler == nil {
		return DefaultLabel
	}
	key := oracle.Key{Op: "category", A: text}
	if v, ok := c.cache.Get(key); ok {
		return v.(string)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, time.Duration(attempt)*c.delay); err != nil {
				return DefaultLabel
			}
		}
		label, err := c.labeler.Label(ctx, text, c.labels)
		if err == nil {
			if match, ok := c.match(label); ok {
				c.cache.Put(key, match)
				return match
			}
			err = fmt.Errorf("label %q not in allowed set", label)
		}
		lastErr = err
		logging.Debug("category", "attempt %d failed: %v", attempt+1, err)
	}

	logging.Info("category", "classification failed after %d attempts, using %q: %v", MaxRetries+1, DefaultLabel, lastErr)
	return DefaultLabel
}

func (c *Classifier) match(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, l := range c.labels {
		if strings.EqualFold(l, label) {
			return l, true
		}
	}
	return "", false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const labelPrompt = `Assign ONE category to this work description from a time-tracking ledger.
Allowed categories: %s

Description:
%s

Respond with ONLY a JSON object: {"category": "<one of the allowed categories>"}`

// LLMLabeler asks a language model for the category.
type LLMLabeler struct {
	classifier oracle.Classifier
	timeout    time.Duration
}

// NewLLMLabeler wraps a classifier. timeout <= 0 uses 30s.
func NewLLMLabeler(c oracle.Classifier, timeout time.Duration) *LLMLabeler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMLabeler{classifier: c, timeout: timeout}
}

func (l *LLMLabeler) Label(ctx context.Context, description string, labels []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	prompt := fmt.Sprintf(labelPrompt, strings.Join(labels, ", "), description)
	out, err := l.classifier.Complete(ctx, prompt, oracle.CompletionOpts{JSON: true})
	if err != nil {
		return "", err
	}
	var v struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(jsonObject(out)), &v); err != nil {
		return "", fmt.Errorf("parse category: %w", err)
	}
	if v.Category == "" {
		return "", fmt.Errorf("empty category in reply")
	}
	return v.Category, nil
}

// jsonObject trims anything around the outermost braces.
func jsonObject(s string) string {
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i != -1 && j > i {
		return s[i : j+1]
	}
	return s
}
