// Package ingestion normalises scraped and uploaded text before it is
// displayed, stored or embedded.
package ingestion

import (
	"regexp"
	"strings"
	"unicode"
)

// Default rune limits.
const (
	DefaultMaxEmbedLength   = 8000
	DefaultMaxDisplayLength = 4000
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Keeps word characters, whitespace and . , - : ; ( )
	embedStripRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,\-:;()]`)
)

// Normalizer cleans text for embedding and for display. It never fails;
// empty input yields empty output.
type Normalizer struct {
	MaxEmbedLength   int
	MaxDisplayLength int
}

// DefaultNormalizer returns a Normalizer with the default limits.
func DefaultNormalizer() Normalizer {
	return Normalizer{
		MaxEmbedLength:   DefaultMaxEmbedLength,
		MaxDisplayLength: DefaultMaxDisplayLength,
	}
}

// NewNormalizer returns a Normalizer, substituting defaults for
// non-positive limits.
func NewNormalizer(maxEmbed, maxDisplay int) Normalizer {
	n := DefaultNormalizer()
	if maxEmbed > 0 {
		n.MaxEmbedLength = maxEmbed
	}
	if maxDisplay > 0 {
		n.MaxDisplayLength = maxDisplay
	}
	return n
}

// ForEmbedding collapses whitespace, drops control and decorative
// characters and truncates to MaxEmbedLength runes.
func (n Normalizer) ForEmbedding(s string) string {
	if s == "" {
		return ""
	}
	s = stripControl(s)
	s = embedStripRe.ReplaceAllString(s, "")
	s = CollapseWhitespace(s)
	return Truncate(s, n.MaxEmbedLength)
}

// ForDisplay collapses whitespace, drops control characters and
// truncates to MaxDisplayLength runes.
func (n Normalizer) ForDisplay(s string) string {
	if s == "" {
		return ""
	}
	s = CollapseWhitespace(stripControl(s))
	return Truncate(s, n.MaxDisplayLength)
}

// CollapseWhitespace replaces every whitespace run with a single space
// and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most limit runes. A non-positive limit leaves s
// unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// stripControl removes control characters, turning line breaks and tabs
// into spaces so words stay separated.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			return -1
		default:
			return r
		}
	}, s)
}
