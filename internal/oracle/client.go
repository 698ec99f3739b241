package oracle

import (
	"context"

	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

// Client adapts a Checker to the fail-closed Oracle contract.
//
// Order of evaluation for every question:
//  1. sentinel shortcut (Unknown client)
//  2. identical shortcut (case and whitespace folded only)
//  3. pair cache
//  4. checker; failures are logged and answered "no", and never cached
type Client struct {
	checker Checker
	cache   *Cache
}

// New builds a Client. A nil cache disables memoization; a nil checker
// behaves as Offline.
func New(checker Checker, cache *Cache) *Client {
	if checker == nil {
		checker = Offline{}
	}
	return &Client{checker: checker, cache: cache}
}

// Cache returns the client's pair cache (may be nil).
func (c *Client) Cache() *Cache { return c.cache }

// SameClient is true immediately when either side is Unknown.
func (c *Client) SameClient(ctx context.Context, a, b string) bool {
	if IsUnknown(a) || IsUnknown(b) {
		shortcutCounter.WithLabelValues(opClient, "unknown").Inc()
		return true
	}
	return c.sameLabel(ctx, opClient, a, b, c.checker.CheckClient)
}

// SameProject has no sentinel; identical labels still short-circuit.
func (c *Client) SameProject(ctx context.Context, a, b string) bool {
	return c.sameLabel(ctx, opProject, a, b, c.checker.CheckProject)
}

func (c *Client) sameLabel(ctx context.Context, op, a, b string, check func(context.Context, string, string) (bool, error)) bool {
	if fa := textutil.FoldName(a); fa != "" && fa == textutil.FoldName(b) {
		shortcutCounter.WithLabelValues(op, "identical").Inc()
		return true
	}

	key := symmetricKey(op, a, b)
	if v, ok := c.cache.Get(key); ok {
		cacheHitCounter.WithLabelValues(op).Inc()
		return v.(bool)
	}

	checkCounter.WithLabelValues(op).Inc()
	same, err := check(ctx, a, b)
	if err != nil {
		failureCounter.WithLabelValues(op).Inc()
		logging.Info("oracle", "%s comparison failed (%q vs %q), treating as different: %v",
			op, logging.Truncate(a, 40), logging.Truncate(b, 40), err)
		return false
	}
	c.cache.Put(key, same)
	logging.Debug("oracle", "%s %q vs %q -> %v", op, logging.Truncate(a, 40), logging.Truncate(b, 40), same)
	return same
}

// CompareDescriptions never fails outward: errors yield ShouldUpdate=false
// with Explanation "error".
func (c *Client) CompareDescriptions(ctx context.Context, d1, d2 string) Comparison {
	if textutil.Normalize(d1) == textutil.Normalize(d2) {
		shortcutCounter.WithLabelValues(opDescription, "identical").Inc()
		return Comparison{SameTask: true, UpdatedDescription: Preferred(d1, d2), Explanation: "identical descriptions"}
	}

	key := orderedKey(opDescription, d1, d2)
	if v, ok := c.cache.Get(key); ok {
		cacheHitCounter.WithLabelValues(opDescription).Inc()
		return v.(Comparison)
	}

	checkCounter.WithLabelValues(opDescription).Inc()
	cmp, err := c.checker.CheckDescriptions(ctx, d1, d2)
	if err != nil {
		failureCounter.WithLabelValues(opDescription).Inc()
		logging.Info("oracle", "description comparison failed, keeping current: %v", err)
		return Comparison{Explanation: ExplanationError}
	}
	if cmp.ShouldUpdate && cmp.UpdatedDescription == "" {
		// A combine verdict without text cannot be applied.
		cmp.ShouldUpdate = false
	}
	c.cache.Put(key, cmp)
	return cmp
}
