package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is a single turn inside a conversation.
type Message struct {
	ID        string         `json:"id"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh ID and the current timestamp.
func NewMessage(role MessageRole, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ConversationMetadata carries computed statistics about a conversation.
type ConversationMetadata struct {
	TotalMessages   int        `json:"total_messages"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Topics          []string   `json:"topics,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

// Conversation is an ordered list of messages owned by a single user.
// Timestamp is the earliest message time by convention.
type Conversation struct {
	ID        string               `json:"id"`
	UID       string               `json:"uid"`
	UserID    string               `json:"user_id"`
	Timestamp time.Time            `json:"timestamp"`
	Messages  []Message            `json:"messages"`
	Summary   string               `json:"summary,omitempty"`
	Tags      []string             `json:"tags,omitempty"`
	Metadata  ConversationMetadata `json:"metadata"`
	// Encrypted marks message content as sealed by the store's cryptor.
	Encrypted bool `json:"encrypted,omitempty"`

	CreatedTs int64 `json:"-"`
	UpdatedTs int64 `json:"-"`
}

// NewConversation creates an empty conversation for a user.
func NewConversation(userID string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		UID:       shortuuid.New(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// AddMessage appends a message and refreshes computed metadata.
func (c *Conversation) AddMessage(m Message) {
	c.Messages = append(c.Messages, m)
	c.RefreshMetadata()
}

// RefreshMetadata recomputes the statistics derived from the message list.
func (c *Conversation) RefreshMetadata() {
	c.Metadata.TotalMessages = len(c.Messages)
	if len(c.Messages) == 0 {
		return
	}
	last := c.Messages[len(c.Messages)-1].Timestamp
	c.Metadata.LastMessageAt = &last
	if len(c.Messages) >= 2 {
		c.Metadata.DurationSeconds = last.Sub(c.Messages[0].Timestamp).Seconds()
	}
}

// LatestMessages returns the last count messages.
func (c *Conversation) LatestMessages(count int) []Message {
	if count >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-count:]
}

// MessagesByRole returns all messages authored by role, in order.
func (c *Conversation) MessagesByRole(role MessageRole) []Message {
	var out []Message
	for _, m := range c.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// SizeBytes estimates the stored size of the conversation from its text
// content, one byte per character.
func (c *Conversation) SizeBytes() int {
	total := len(c.Summary)
	for _, m := range c.Messages {
		total += len(m.Content)
	}
	for _, t := range c.Tags {
		total += len(t)
	}
	return total
}

// FindConversation specifies the conditions for listing conversations.
type FindConversation struct {
	ID        *string
	UID       *string
	UserID    *string
	StartDate *time.Time
	EndDate   *time.Time
	Tags      []string
	Limit     *int
}

// UpdateConversation specifies an in-place conversation update. Nil fields
// are left untouched.
type UpdateConversation struct {
	ID       string
	Messages []Message
	Summary  *string
	Tags     []string
	Metadata *ConversationMetadata
}

// DeleteConversation specifies the conversation to delete.
type DeleteConversation struct {
	ID string
}
