// Package normalizer canonicalizes free-form channel text before pattern
// matching.
package normalizer

import "strings"

// quoteReplacer maps typographic single quotes onto the ASCII apostrophe.
var quoteReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"‚", "'",
	"‛", "'",
	"′", "'",
)

// Normalize replaces curly single quotes with ASCII apostrophes and trims
// surrounding whitespace. It is total and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(quoteReplacer.Replace(text))
}
