// Package textnorm canonicalizes free-text questions into dedupe keys.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder is safe for concurrent use: Fold carries no per-call state.
var folder = cases.Fold()

// Normalize maps raw text to its canonical cleaned form.
//
// The result is compatibility-composed, case-folded, stripped of apostrophes,
// and has every other run of non letter/digit runes collapsed to a single
// space. An empty result means the input carried no content.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := norm.NFKC.String(text)
	s = folder.String(s)
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		switch {
		case isApostrophe(r):
			// "what's" and "whats" are the same question
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(canonicalCase(r))
		case unicode.IsMark(r):
			// Combining marks stay attached to the preceding letter.
			if b.Len() == 0 || pendingSpace {
				continue
			}
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}

	// Dropping apostrophes can bring a letter and a combining mark together.
	return norm.NFKC.String(b.String())
}

// IsEmpty reports whether text normalizes to nothing.
func IsEmpty(text string) bool {
	return Normalize(text) == ""
}

// canonicalCase settles letters whose case folding is not a fixed point.
// Folding flips Cherokee between cases on every pass, so both map to lowercase.
func canonicalCase(r rune) rune {
	if unicode.Is(unicode.Cherokee, r) {
		return unicode.ToLower(r)
	}
	return r
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', '‘', 'ʼ', '`':
		return true
	}
	return false
}
