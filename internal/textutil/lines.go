// Package textutil normalizes the bullet-line descriptions and free-text
// labels carried by ledger records.
package textutil

import (
	"strings"
	"unicode"
)

// Bullet is the canonical marker every description line is rewritten to.
const Bullet = "- "

// SplitLines breaks a description into trimmed, non-empty lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// NormalizeBullet rewrites "* x", "• x", "1. x", "- x" and bare "x" to "- x".
// Empty input stays empty.
func NormalizeBullet(line string) string {
	body := stripMarker(strings.TrimSpace(line))
	if body == "" {
		return ""
	}
	return Bullet + body
}

// stripMarker removes one leading list marker.
func stripMarker(s string) string {
	for _, m := range []string{"- ", "* ", "• ", "– ", "-", "*", "•"} {
		if strings.HasPrefix(s, m) {
			return strings.TrimSpace(s[len(m):])
		}
	}
	// Numbered list: "12. text" or "12) text"
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// DedupeLines drops exact repeats, keeping first occurrences in order.
func DedupeLines(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Normalize canonicalizes a description: bullet markers rewritten,
// blank lines removed, exact duplicate lines dropped.
func Normalize(text string) string {
	lines := SplitLines(text)
	for i, l := range lines {
		lines[i] = NormalizeBullet(l)
	}
	return strings.Join(DedupeLines(lines), "\n")
}

// Union merges two descriptions line-wise: a's lines first, then b's lines
// not already present. The result is normalized.
func Union(a, b string) string {
	if strings.TrimSpace(b) == "" {
		return Normalize(a)
	}
	if strings.TrimSpace(a) == "" {
		return Normalize(b)
	}
	return Normalize(a + "\n" + b)
}

// NormalizeName folds a client or project label for cheap equality checks:
// lower case, punctuation dropped, whitespace collapsed.
func NormalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			space = true
		}
	}
	return b.String()
}

// FoldName lower-cases s and collapses its whitespace. Unlike NormalizeName
// it keeps punctuation, so "C++" and "C#" stay distinct.
func FoldName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity is the Jaccard overlap of the normalized word sets of a and b,
// in [0, 1]. Two empty strings are identical.
func Similarity(a, b string) float64 {
	ta := strings.Fields(NormalizeName(a))
	tb := strings.Fields(NormalizeName(b))
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	union := len(set)
	seenB := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seenB[t] {
			continue
		}
		seenB[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Truncate shortens s to at most maxLen bytes, adding an ellipsis.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
