// Package search implements the free-text matching used by the query list
// filter: a Unicode case-insensitive substring test over a record's
// searchable fields. It is small and dependency-light:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode lowercasing via golang.org/x/text/cases ("ÉCOLE" matches
//     "école"); no full folding, so "strasse" does not match "straße"
//   - Immutable after construction (safe for concurrent use)
package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Matcher tests whether a needle occurs in any of a set of fields. The
// empty needle matches everything.
type Matcher struct {
	raw    string
	folded string
}

// NewMatcher prepares a matcher for text. Leading/trailing whitespace is
// part of the needle; callers that want trimming should trim first.
func NewMatcher(text string) Matcher {
	return Matcher{raw: text, folded: Lower(text)}
}

// Text returns the needle as given.
func (m Matcher) Text() string { return m.raw }

// Empty reports whether the matcher accepts every input.
func (m Matcher) Empty() bool { return m.raw == "" }

// Match reports whether the needle is a case-insensitive substring of at
// least one field.
func (m Matcher) Match(fields ...string) bool {
	if m.raw == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Lower(f), m.folded) {
			return true
		}
	}
	return false
}

// Lower returns the language-neutral Unicode lowercase of s. Unlike case
// folding it never changes the length of a letter, so "SS" and "ß" stay
// distinct.
func Lower(s string) string {
	// cases.Caser is stateful; a fresh one per call keeps Lower safe for
	// concurrent use.
	return cases.Lower(language.Und).String(s)
}
