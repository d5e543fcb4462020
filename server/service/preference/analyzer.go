package preference

import (
	"strings"

	"github.com/recallhq/recall/store"
)

// Analyzer derives preference profiles from conversation text. It is pure
// keyword matching over the tables in heuristics.go, so identical input
// always yields an identical profile.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// userText lowercases and collects the user-authored message contents.
func userText(conversations []*store.Conversation) []string {
	texts := []string{}
	for _, conversation := range conversations {
		if conversation == nil {
			continue
		}
		for _, message := range conversation.MessagesByRole(store.MessageRoleUser) {
			texts = append(texts, strings.ToLower(message.Content))
		}
	}
	return texts
}

func countSignals(texts []string, phrases []string) int {
	count := 0
	for _, text := range texts {
		for _, phrase := range phrases {
			if strings.Contains(text, phrase) {
				count++
			}
		}
	}
	return count
}

// AnalyzeResponseStyle picks the style and tone with the strongest signal in
// the user's messages. No signal leaves the conversational/helpful defaults
// with zero confidence.
func (*Analyzer) AnalyzeResponseStyle(conversations []*store.Conversation) store.ResponseStyle {
	style := store.ResponseStyle{
		StyleType: store.ResponseStyleConversational,
		Tone:      store.ToneHelpful,
	}

	texts := userText(conversations)
	if len(texts) == 0 {
		return style
	}

	bestCount := 0
	for styleType, phrases := range styleSignals {
		if count := countSignals(texts, phrases); count > bestCount {
			bestCount = count
			style.StyleType = styleType
		}
	}
	if bestCount > 0 {
		style.Confidence = passiveConfidence(bestCount)
	}

	bestToneCount := 0
	for tone, phrases := range toneSignals {
		if count := countSignals(texts, phrases); count > bestToneCount {
			bestToneCount = count
			style.Tone = tone
		}
	}

	return style
}

// ExtractTopics finds topics mentioned at least minTopicMentions times and
// records the keywords that triggered them.
func (*Analyzer) ExtractTopics(conversations []*store.Conversation) []store.TopicInterest {
	texts := userText(conversations)
	topics := []store.TopicInterest{}
	if len(texts) == 0 {
		return topics
	}

	for topic, keywords := range topicSignals {
		mentions := 0
		matched := []string{}
		for _, keyword := range keywords {
			hits := 0
			for _, text := range texts {
				hits += strings.Count(text, keyword)
			}
			if hits > 0 {
				mentions += hits
				matched = append(matched, keyword)
			}
		}
		if mentions < minTopicMentions {
			continue
		}
		topics = append(topics, store.TopicInterest{
			Topic:              topic,
			InterestLevel:      store.Clamp(0.3 + 0.1*float64(mentions)),
			FrequencyMentioned: mentions,
			ContextKeywords:    matched,
		})
	}
	return topics
}

// AnalyzeCommunicationPreferences detects formatting preferences that appear
// at least minCommunicationMentions times.
func (*Analyzer) AnalyzeCommunicationPreferences(conversations []*store.Conversation) store.CommunicationPreferences {
	prefs := store.CommunicationPreferences{}

	texts := userText(conversations)
	if len(texts) == 0 {
		return prefs
	}

	total := 0
	for name, phrases := range communicationSignals {
		count := countSignals(texts, phrases)
		if count < minCommunicationMentions {
			continue
		}
		total += count
		switch name {
		case "step_by_step":
			prefs.PrefersStepByStep = true
		case "code_examples":
			prefs.PrefersCodeExamples = true
		case "analogies":
			prefs.PrefersAnalogies = true
		case "bullet_points":
			prefs.PrefersBulletPoints = true
		}
	}
	if total > 0 {
		prefs.Confidence = passiveConfidence(total)
	}
	return prefs
}

// passiveConfidence scales a signal count into [0, passiveCeiling].
func passiveConfidence(count int) float64 {
	confidence := 0.2 * float64(count)
	if confidence > passiveCeiling {
		return passiveCeiling
	}
	return confidence
}
