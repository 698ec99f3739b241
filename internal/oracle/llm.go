package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// defaultCheckTimeout bounds a single classifier round trip.
const defaultCheckTimeout = 30 * time.Second

const labelSystemPrompt = `You decide whether two labels from a time-tracking ledger name the same real-world %s.
Treat abbreviations, legal suffixes (Inc, LLC, Ltd), casing, punctuation and obvious aliases as the same.
Different organizations or different bodies of work are NOT the same.
Respond with ONLY a JSON object: {"same": true} or {"same": false}`

const descriptionSystemPrompt = `You compare two work descriptions from a time-tracking ledger.

Decide ONE of:
1. Same task, different wording -> "areSameTask": true, "shouldCombine": false
2. Related work that progressed (same effort, new steps) -> "areSameTask": false, "shouldCombine": true,
   and write "combinedDescription": both descriptions as one bullet line, verbs in past tense, items comma-joined
3. Unrelated work -> "areSameTask": false, "shouldCombine": false

Respond with ONLY a JSON object:
{"areSameTask": false, "shouldCombine": true, "combinedDescription": "- Designed schema, implemented indexing", "explanation": "one sentence"}`

// LLM is a Checker backed by a language-model Classifier.
type LLM struct {
	classifier Classifier
	timeout    time.Duration
}

// NewLLM wraps a classifier. timeout <= 0 uses 30s per call.
func NewLLM(c Classifier, timeout time.Duration) *LLM {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &LLM{classifier: c, timeout: timeout}
}

// Name identifies the backing model.
func (l *LLM) Name() string { return l.classifier.Name() }

func (l *LLM) CheckClient(ctx context.Context, a, b string) (bool, error) {
	return l.checkLabel(ctx, "client (business or customer)", a, b)
}

func (l *LLM) CheckProject(ctx context.Context, a, b string) (bool, error) {
	return l.checkLabel(ctx, "project", a, b)
}

func (l *LLM) checkLabel(ctx context.Context, kind, a, b string) (bool, error) {
	prompt := fmt.Sprintf("Label A: %s\nLabel B: %s", a, b)
	out, err := l.complete(ctx, prompt, fmt.Sprintf(labelSystemPrompt, kind))
	if err != nil {
		return false, err
	}
	return parseVerdict(out)
}

type descriptionVerdict struct {
	AreSameTask         *bool  `json:"areSameTask"`
	ShouldCombine       bool   `json:"shouldCombine"`
	CombinedDescription string `json:"combinedDescription"`
	Explanation         string `json:"explanation"`
}

func (l *LLM) CheckDescriptions(ctx context.Context, d1, d2 string) (Comparison, error) {
	prompt := fmt.Sprintf("Description 1:\n%s\n\nDescription 2:\n%s", d1, d2)
	out, err := l.complete(ctx, prompt, descriptionSystemPrompt)
	if err != nil {
		return Comparison{}, err
	}
	return parseComparison(out, d1, d2)
}

func (l *LLM) complete(ctx context.Context, prompt, system string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.classifier.Complete(ctx, prompt, CompletionOpts{System: system, JSON: true})
}

func parseVerdict(out string) (bool, error) {
	var v struct {
		Same *bool `json:"same"`
	}
	if err := json.Unmarshal([]byte(extractJSON(out)), &v); err != nil {
		return false, fmt.Errorf("parse verdict: %w (output: %s)", err, preview(out))
	}
	if v.Same == nil {
		return false, fmt.Errorf("verdict missing \"same\" field (output: %s)", preview(out))
	}
	return *v.Same, nil
}

func parseComparison(out, d1, d2 string) (Comparison, error) {
	var v descriptionVerdict
	if err := json.Unmarshal([]byte(extractJSON(out)), &v); err != nil {
		return Comparison{}, fmt.Errorf("parse comparison: %w (output: %s)", err, preview(out))
	}
	if v.AreSameTask == nil {
		return Comparison{}, fmt.Errorf("comparison missing \"areSameTask\" field (output: %s)", preview(out))
	}
	switch {
	case *v.AreSameTask:
		return Comparison{SameTask: true, UpdatedDescription: Preferred(d1, d2), Explanation: v.Explanation}, nil
	case v.ShouldCombine && strings.TrimSpace(v.CombinedDescription) != "":
		return Comparison{ShouldUpdate: true, UpdatedDescription: strings.TrimSpace(v.CombinedDescription), Explanation: v.Explanation}, nil
	default:
		return Comparison{Explanation: v.Explanation}, nil
	}
}

// extractJSON pulls JSON out of markdown code fences if the model added them.
func extractJSON(s string) string {
	if start := strings.Index(s, "```json"); start != -1 {
		start += 7
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}
	if start := strings.Index(s, "```"); start != -1 {
		start += 3
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end])
		}
	}
	// Prose around a bare object
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i != -1 && j > i {
		return s[i : j+1]
	}
	return strings.TrimSpace(s)
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
