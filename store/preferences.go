package store

import (
	"strings"
	"time"
)

// ResponseStyleType enumerates preferred response styles.
type ResponseStyleType string

const (
	ResponseStyleConversational ResponseStyleType = "conversational"
	ResponseStyleConcise        ResponseStyleType = "concise"
	ResponseStyleDetailed       ResponseStyleType = "detailed"
	ResponseStyleTechnical      ResponseStyleType = "technical"
	ResponseStyleCasual         ResponseStyleType = "casual"
)

// CommunicationTone enumerates preferred communication tones.
type CommunicationTone string

const (
	ToneHelpful      CommunicationTone = "helpful"
	ToneFriendly     CommunicationTone = "friendly"
	ToneProfessional CommunicationTone = "professional"
	ToneDirect       CommunicationTone = "direct"
	ToneEncouraging  CommunicationTone = "encouraging"
)

// Preferred response lengths.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// ResponseStyle is a user's preferred response style with a confidence score
// expressing how strongly it should be applied.
type ResponseStyle struct {
	StyleType       ResponseStyleType `json:"style_type"`
	Tone            CommunicationTone `json:"tone"`
	PreferredLength string            `json:"preferred_length,omitempty"`
	Confidence      float64           `json:"confidence"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
}

// TopicInterest tracks a user's interest in a topic. Topics are unique per
// profile, case-insensitively.
type TopicInterest struct {
	Topic              string     `json:"topic"`
	InterestLevel      float64    `json:"interest_level"`
	FrequencyMentioned int        `json:"frequency_mentioned"`
	LastMentioned      *time.Time `json:"last_mentioned,omitempty"`
	ContextKeywords    []string   `json:"context_keywords,omitempty"`
}

// CommunicationPreferences are formatting preferences learned per user.
type CommunicationPreferences struct {
	PrefersStepByStep    bool    `json:"prefers_step_by_step"`
	PrefersCodeExamples  bool    `json:"prefers_code_examples"`
	PrefersAnalogies     bool    `json:"prefers_analogies"`
	PrefersBulletPoints  bool    `json:"prefers_bullet_points"`
	Confidence           float64 `json:"confidence"`
}

// UserPreferences is the complete preference profile for a user. It is
// persisted as a JSON document keyed by user ID.
type UserPreferences struct {
	UserID                   string                   `json:"user_id"`
	ResponseStyle            ResponseStyle            `json:"response_style"`
	TopicInterests           []TopicInterest          `json:"topic_interests,omitempty"`
	CommunicationPreferences CommunicationPreferences `json:"communication_preferences"`
	LearningEnabled          bool                     `json:"learning_enabled"`
	LastUpdated              time.Time                `json:"last_updated"`
	Version                  int                      `json:"version"`
}

// DefaultUserPreferences returns an empty profile with zero confidence,
// meaning "no opinion yet".
func DefaultUserPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID: userID,
		ResponseStyle: ResponseStyle{
			StyleType: ResponseStyleConversational,
			Tone:      ToneHelpful,
		},
		LearningEnabled: true,
		LastUpdated:     time.Now().UTC(),
		Version:         1,
	}
}

// Clamp bounds a confidence value to [0,1].
func Clamp(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// TopicInterest returns the interest entry for topic, case-insensitively.
func (p *UserPreferences) TopicInterest(topic string) *TopicInterest {
	for i := range p.TopicInterests {
		if strings.EqualFold(p.TopicInterests[i].Topic, topic) {
			return &p.TopicInterests[i]
		}
	}
	return nil
}

// AddOrUpdateTopicInterest upserts a topic interest, merging keywords and
// incrementing the mention counter on update.
func (p *UserPreferences) AddOrUpdateTopicInterest(topic string, level float64, keywords []string) {
	now := time.Now().UTC()
	if existing := p.TopicInterest(topic); existing != nil {
		existing.InterestLevel = Clamp(level)
		existing.FrequencyMentioned++
		existing.LastMentioned = &now
		existing.ContextKeywords = mergeKeywords(existing.ContextKeywords, keywords)
	} else {
		p.TopicInterests = append(p.TopicInterests, TopicInterest{
			Topic:              topic,
			InterestLevel:      Clamp(level),
			FrequencyMentioned: 1,
			LastMentioned:      &now,
			ContextKeywords:    keywords,
		})
	}
	p.LastUpdated = now
}

// TopInterests returns up to limit interests ordered by interest level, then
// mention frequency.
func (p *UserPreferences) TopInterests(limit int) []TopicInterest {
	sorted := make([]TopicInterest, len(p.TopicInterests))
	copy(sorted, p.TopicInterests)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && less(sorted[j-1], sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

func less(a, b TopicInterest) bool {
	if a.InterestLevel != b.InterestLevel {
		return a.InterestLevel < b.InterestLevel
	}
	return a.FrequencyMentioned < b.FrequencyMentioned
}

func mergeKeywords(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, k := range existing {
		seen[k] = true
	}
	for _, k := range extra {
		if !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	return out
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID *string
}
