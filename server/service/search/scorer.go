package search

import (
	"regexp"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "will": true,
	"with": true, "i": true, "you": true, "we": true, "they": true,
	"this": true, "but": true, "or": true, "not": true, "can": true,
	"could": true, "would": true, "should": true, "may": true, "might": true,
	"must": true, "shall": true, "do": true, "does": true, "did": true,
	"have": true, "had": true,
}

// tokenize splits text into lowercase word tokens, dropping single characters.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 1 {
			tokens = append(tokens, strings.ToLower(word.String()))
		}
		word.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func keywordPattern(keyword string) *regexp.Regexp {
	if strings.Contains(keyword, " ") {
		return regexp.MustCompile(regexp.QuoteMeta(keyword))
	}
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
}

// relevanceScore rates how well text matches the keywords, in [0,1]. Exact
// keyword hits dominate; loose per-word matches contribute at a discount.
func relevanceScore(text string, keywords []string) float64 {
	if text == "" || len(keywords) == 0 {
		return 0
	}

	textLower := strings.ToLower(text)
	textWords := tokenize(textLower)
	if len(textWords) == 0 {
		return 0
	}
	wordCounts := map[string]int{}
	for _, w := range textWords {
		wordCounts[w]++
	}

	totalMatches := 0
	uniqueKeywordMatches := 0
	hasExactMatch := false
	var positions []int

	for _, keyword := range keywords {
		keywordLower := strings.ToLower(strings.TrimSpace(keyword))
		if keywordLower == "" {
			continue
		}

		pattern := keywordPattern(keywordLower)
		hits := pattern.FindAllStringIndex(textLower, -1)
		if len(hits) > 0 {
			uniqueKeywordMatches++
			totalMatches += len(hits) * 3
			hasExactMatch = true
			for _, hit := range hits {
				positions = append(positions, hit[0])
			}
			continue
		}

		// Fall back to matching the keyword's individual words.
		wordMatches := 0
		for _, w := range tokenize(keywordLower) {
			if stopWords[w] || len(w) <= 2 {
				continue
			}
			wordMatches += wordCounts[w]
		}
		if wordMatches > 0 {
			uniqueKeywordMatches++
			totalMatches += wordMatches
		}
	}

	if totalMatches == 0 {
		return 0
	}

	tfScore := float64(totalMatches) / float64(len(textWords))
	coverageScore := float64(uniqueKeywordMatches) / float64(len(keywords))
	proximityBonus := proximityBonus(positions, len(text))
	lengthPenalty := 100.0 / float64(len(textWords))
	if lengthPenalty > 1 {
		lengthPenalty = 1
	}

	score := tfScore*0.4 + coverageScore*0.3 + proximityBonus*0.1 + lengthPenalty*0.2
	if hasExactMatch {
		score += 0.2
	} else {
		score *= 0.7
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// proximityBonus rewards keywords that appear close together.
func proximityBonus(positions []int, textLen int) float64 {
	if len(positions) < 2 || textLen == 0 {
		return 0
	}
	minDistance := -1
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			d := positions[j] - positions[i]
			if d < 0 {
				d = -d
			}
			if minDistance < 0 || d < minDistance {
				minDistance = d
			}
		}
	}
	bonus := 1 - float64(minDistance)/float64(textLen)*10
	if bonus < 0 {
		return 0
	}
	return bonus
}
