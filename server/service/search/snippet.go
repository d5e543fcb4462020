package search

import "strings"

const (
	snippetMaxChars      = 200
	highlightContextSize = 100
)

// truncateText shortens text to max characters, preferring a word boundary
// when one falls reasonably close to the limit.
func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	truncated := string(runes[:max])
	if idx := strings.LastIndex(truncated, " "); idx > int(float64(max)*0.8) {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

// findHighlights locates keyword occurrences in text and captures the
// surrounding context.
func findHighlights(text, field string, keywords []string) []Highlight {
	textLower := strings.ToLower(text)
	var highlights []Highlight

	for _, keyword := range keywords {
		keywordLower := strings.ToLower(strings.TrimSpace(keyword))
		if keywordLower == "" {
			continue
		}
		for _, hit := range keywordPattern(keywordLower).FindAllStringIndex(textLower, -1) {
			start, end := hit[0], hit[1]
			contextStart := start - highlightContextSize
			if contextStart < 0 {
				contextStart = 0
			}
			contextEnd := end + highlightContextSize
			if contextEnd > len(text) {
				contextEnd = len(text)
			}
			highlights = append(highlights, Highlight{
				Field:         field,
				MatchedText:   text[start:end],
				ContextBefore: text[contextStart:start],
				ContextAfter:  text[end:contextEnd],
			})
		}
	}
	return highlights
}
