// Package ticker canonicalizes ticker symbols. Every other package receives
// tickers that already went through Normalize and must not re-apply casing
// or separator rules of its own.
package ticker

import (
	"regexp"
	"strings"
)

// ClassDelimiter is the canonical share-class separator ("BRK-B").
const ClassDelimiter = "-"

var classSeparators = strings.NewReplacer(
	".", ClassDelimiter,
	"/", ClassDelimiter,
	"_", ClassDelimiter,
	" ", ClassDelimiter,
)

var validPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// Normalize trims, upper-cases and maps share-class separators to "-".
// It is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	return classSeparators.Replace(t)
}

// WithClassDelimiter rewrites a normalized ticker for a provider that spells
// share classes differently, e.g. WithClassDelimiter("BRK-B", ".") == "BRK.B".
func WithClassDelimiter(t, delim string) string {
	return strings.ReplaceAll(t, ClassDelimiter, delim)
}

// HasShareClass reports whether the normalized ticker carries a class suffix.
func HasShareClass(t string) bool {
	return strings.Contains(t, ClassDelimiter)
}

// Valid reports whether a user-supplied symbol looks like a listed ticker.
func Valid(t string) bool {
	return validPattern.MatchString(t)
}

// Unique normalizes the input and drops empties and duplicates, keeping first-seen order.
func Unique(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := Normalize(r)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ParseList splits a comma separated list into normalized, valid, unique tickers.
func ParseList(values ...string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	out := Unique(parts)
	valid := out[:0]
	for _, t := range out {
		if Valid(t) {
			valid = append(valid, t)
		}
	}
	return valid
}
