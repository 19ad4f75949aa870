// Package privacy masks credentials and personal data that users paste into
// their questions before those questions are reported or embedded.
package privacy

import (
	"regexp"
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

type rule struct {
	pattern *regexp.Regexp
	// keepKey keeps the "key=" or "key:" prefix of a match.
	keepKey bool
}

var rules = []rule{
	// key=value style credentials
	{regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|secret[_-]?key|auth[_-]?token|access[_-]?token)\s*[:=]\s*['"]?[a-zA-Z0-9_\-/+=]{12,}['"]?`), true},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*(is|[:=])\s*['"]?[^\s'"]{6,}['"]?`), true},

	// Provider keys and tokens
	{regexp.MustCompile(`\bsk-(ant-)?[a-zA-Z0-9-]{20,}`), false},
	{regexp.MustCompile(`\bgh[pous]_[a-zA-Z0-9]{36,}`), false},
	{regexp.MustCompile(`\bgithub_pat_[a-zA-Z0-9_]{22,}`), false},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), false},
	{regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), false},
	{regexp.MustCompile(`(?i)\bbearer\s+[a-zA-Z0-9_\-.]{20,}`), false},
	{regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), false},

	// Personal data
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), false},
	{regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`), false},
}

// Contains reports whether text holds anything Redact would mask.
func Contains(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Redact masks every detected secret in text.
func Redact(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, r := range rules {
		out = r.pattern.ReplaceAllStringFunc(out, func(match string) string {
			if r.keepKey {
				if idx := strings.IndexAny(match, "=:"); idx != -1 {
					return match[:idx+1] + Placeholder
				}
				if idx := strings.Index(strings.ToLower(match), " is "); idx != -1 {
					return match[:idx+4] + Placeholder
				}
			}
			return Placeholder
		})
	}
	return out
}

// RedactAll masks texts in place and returns how many were changed.
func RedactAll(texts []string) int {
	changed := 0
	for i, t := range texts {
		if !Contains(t) {
			continue
		}
		texts[i] = Redact(t)
		changed++
	}
	return changed
}
