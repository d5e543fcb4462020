package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/recallhq/recall/store"
)

// recentMessageWindow bounds how many messages the context text includes.
const recentMessageWindow = 5

// ConversationSummary condenses one past conversation for context building.
type ConversationSummary struct {
	ConversationID  string    `json:"conversation_id"`
	Timestamp       time.Time `json:"timestamp"`
	SummaryText     string    `json:"summary_text"`
	KeyTopics       []string  `json:"key_topics,omitempty"`
	ImportanceScore float64   `json:"importance_score"`
	MessageCount    int       `json:"message_count"`
}

// ConversationContext is the assembled context handed to a response pipeline.
type ConversationContext struct {
	UserID           string                 `json:"user_id"`
	RecentMessages   []store.Message        `json:"recent_messages,omitempty"`
	RelevantHistory  []ConversationSummary  `json:"relevant_history,omitempty"`
	UserPreferences  *store.UserPreferences `json:"user_preferences,omitempty"`
	ContextSummary   string                 `json:"context_summary,omitempty"`
	ContextTimestamp time.Time              `json:"context_timestamp"`
}

// ContextText renders the context as plain text, newest material last.
func (c *ConversationContext) ContextText() string {
	var parts []string

	if c.ContextSummary != "" {
		parts = append(parts, "Context Summary: "+c.ContextSummary)
	}

	if len(c.RelevantHistory) > 0 {
		lines := make([]string, 0, len(c.RelevantHistory))
		for _, summary := range c.RelevantHistory {
			lines = append(lines, fmt.Sprintf("- %s (Topics: %s)", summary.SummaryText, strings.Join(summary.KeyTopics, ", ")))
		}
		parts = append(parts, "Relevant History:\n"+strings.Join(lines, "\n"))
	}

	if len(c.RecentMessages) > 0 {
		recent := c.RecentMessages
		if len(recent) > recentMessageWindow {
			recent = recent[len(recent)-recentMessageWindow:]
		}
		lines := make([]string, 0, len(recent))
		for _, m := range recent {
			lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
		}
		parts = append(parts, "Recent Messages:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

// summarizeConversation builds a ConversationSummary, preferring the stored
// summary and falling back to the opening user message.
func summarizeConversation(conversation *store.Conversation) ConversationSummary {
	summary := ConversationSummary{
		ConversationID: conversation.ID,
		Timestamp:      conversation.Timestamp,
		KeyTopics:      conversation.Tags,
		MessageCount:   len(conversation.Messages),
	}

	switch {
	case conversation.Summary != "":
		summary.SummaryText = conversation.Summary
	case len(conversation.Messages) > 0:
		summary.SummaryText = firstSentence(conversation.Messages[0].Content)
	default:
		summary.SummaryText = "(empty conversation)"
	}

	// Longer conversations carry more signal, capped at 1.
	summary.ImportanceScore = float64(len(conversation.Messages)) * 0.1
	if summary.ImportanceScore > 1 {
		summary.ImportanceScore = 1
	}
	return summary
}

// firstSentence returns the leading sentence of text, truncated to a
// reasonable display length.
func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			text = text[:i]
			break
		}
	}
	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120]) + "..."
	}
	return text
}
