// Package oracle is the port to the external similarity classifier that
// decides whether two clients, projects or descriptions refer to the same
// thing.
//
// Two layers:
//   - Checker: raw classifier judgments that can fail (LLM implements it).
//   - Oracle: the fail-closed contract the merge engine depends on. Client
//     adapts a Checker to it, adding the Unknown shortcut, the pair cache
//     and metrics.
package oracle

import (
	"context"
	"errors"

	"github.com/rcliao/wip-ledger/internal/model"
)

// ExplanationError is the explanation reported when a comparison failed.
const ExplanationError = "error"

// ErrNoClassifier is returned by Offline for every judgment.
var ErrNoClassifier = errors.New("no classifier configured")

// Comparison is the outcome of comparing two descriptions.
type Comparison struct {
	// ShouldUpdate is set when the descriptions are related, progressing
	// work; UpdatedDescription then holds the combined text.
	ShouldUpdate       bool   `json:"should_update"`
	UpdatedDescription string `json:"updated_description,omitempty"`
	Explanation        string `json:"explanation"`
	// SameTask is set when both describe the same task in different words.
	// The caller keeps Preferred(d1, d2).
	SameTask bool `json:"same_task,omitempty"`
}

// Oracle answers the three questions the merge engine asks. Implementations
// never return errors: failures resolve to "no match" / "no update".
type Oracle interface {
	SameClient(ctx context.Context, a, b string) bool
	SameProject(ctx context.Context, a, b string) bool
	CompareDescriptions(ctx context.Context, d1, d2 string) Comparison
}

// Checker is a classifier-backed judge whose calls may fail.
type Checker interface {
	CheckClient(ctx context.Context, a, b string) (bool, error)
	CheckProject(ctx context.Context, a, b string) (bool, error)
	CheckDescriptions(ctx context.Context, d1, d2 string) (Comparison, error)
}

// IsUnknown reports whether a client label is the Unknown sentinel.
func IsUnknown(client string) bool {
	return client == model.UnknownClient
}

// Preferred picks the more detailed of two same-task descriptions: the
// longer one, d1 on a tie.
func Preferred(d1, d2 string) string {
	if len(d2) > len(d1) {
		return d2
	}
	return d1
}

// Resolve applies a comparison to the running description: the combined
// text when ShouldUpdate, the preferred wording when SameTask, otherwise
// current unchanged.
func Resolve(current, next string, c Comparison) string {
	switch {
	case c.ShouldUpdate && c.UpdatedDescription != "":
		return c.UpdatedDescription
	case c.SameTask:
		return Preferred(current, next)
	default:
		return current
	}
}

// Offline is a Checker used when no classifier is configured. Every call
// fails, so only the shortcuts in Client can produce matches.
type Offline struct{}

func (Offline) CheckClient(context.Context, string, string) (bool, error) {
	return false, ErrNoClassifier
}

func (Offline) CheckProject(context.Context, string, string) (bool, error) {
	return false, ErrNoClassifier
}

func (Offline) CheckDescriptions(context.Context, string, string) (Comparison, error) {
	return Comparison{}, ErrNoClassifier
}
