package privacy

import "regexp"

// Anonymization is deterministic pattern substitution. Order matters: the
// most specific patterns run first so that a later pattern never re-masks an
// earlier placeholder.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// Anchored at the first digit or parenthesis so surrounding text keeps
	// its spacing.
	phonePattern = regexp.MustCompile(`(?:\+\d{1,2}[-. ]*)?\(?\d{3}[-. )]*\d{3}[-. ]*\d{4}\b`)
	// Two-word capitalized sequences only count as names in introducing
	// contexts, to avoid masking sentence starts.
	namePattern = regexp.MustCompile(`\b((?i:my name is|i am|i'm|call me|this is))\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
)

// AnonymizeText irreversibly masks personally identifying substrings.
func AnonymizeText(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL]")
	text = phonePattern.ReplaceAllString(text, "[PHONE]")
	text = namePattern.ReplaceAllString(text, "$1 [NAME]")
	return text
}
