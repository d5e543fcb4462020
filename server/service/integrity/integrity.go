// Package integrity validates stored conversations for structural damage
// and exposes checksums for detecting silent corruption.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// Message content beyond this length is treated as corrupted.
const maxMessageContentLength = 100000

// ErrDataCorruption indicates a checksum mismatch.
var ErrDataCorruption = errors.New("data corruption detected")

// Checksum returns a stable hex checksum over the parts of a conversation
// that must not change at rest.
func Checksum(conversation *store.Conversation) string {
	payload := struct {
		ID       string          `json:"id"`
		UserID   string          `json:"user_id"`
		Messages []store.Message `json:"messages"`
		Summary  string          `json:"summary"`
	}{conversation.ID, conversation.UserID, conversation.Messages, conversation.Summary}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum recomputes a conversation's checksum and compares it to
// the expected value.
func ValidateChecksum(conversation *store.Conversation, expected string) error {
	if len(expected) != sha256.Size*2 {
		return errors.Wrap(ErrDataCorruption, "invalid checksum format")
	}
	if Checksum(conversation) != expected {
		return errors.Wrap(ErrDataCorruption, "checksum mismatch")
	}
	return nil
}

// ValidateConversation checks a conversation for structural damage. It
// returns one message per problem found; an empty slice means intact.
func ValidateConversation(conversation *store.Conversation) []string {
	var problems []string
	if conversation.ID == "" {
		problems = append(problems, "conversation id is missing")
	}
	if conversation.UserID == "" {
		problems = append(problems, "user id is missing")
	}
	if conversation.Timestamp.IsZero() {
		problems = append(problems, "timestamp is missing")
	}
	for i, message := range conversation.Messages {
		problems = append(problems, validateMessage(&message, i)...)
		if i > 0 && message.Timestamp.Before(conversation.Messages[i-1].Timestamp) {
			problems = append(problems, fmt.Sprintf("message %d: timestamps are not in chronological order", i))
		}
	}
	return problems
}

func validateMessage(message *store.Message, index int) []string {
	var problems []string
	if message.ID == "" {
		problems = append(problems, fmt.Sprintf("message %d: id is missing", index))
	}
	switch message.Role {
	case store.MessageRoleUser, store.MessageRoleAssistant, store.MessageRoleSystem:
	default:
		problems = append(problems, fmt.Sprintf("message %d: invalid role %q", index, message.Role))
	}
	if message.Content == "" {
		problems = append(problems, fmt.Sprintf("message %d: content is empty", index))
	} else if len(message.Content) > maxMessageContentLength {
		problems = append(problems, fmt.Sprintf("message %d: content exceeds maximum length", index))
	}
	if message.Timestamp.IsZero() {
		problems = append(problems, fmt.Sprintf("message %d: timestamp is missing", index))
	}
	return problems
}

// Report summarizes an integrity scan over a user's conversations.
type Report struct {
	UserID                 string              `json:"user_id"`
	ScannedConversations   int                 `json:"scanned_conversations"`
	CorruptedConversations []string            `json:"corrupted_conversations,omitempty"`
	Problems               map[string][]string `json:"problems,omitempty"`
}

// Intact reports whether the scan found no corruption.
func (r *Report) Intact() bool {
	return len(r.CorruptedConversations) == 0
}

// Service scans stored conversations for integrity problems.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// VerifyUserData validates every conversation a user has stored. Corrupted
// conversations are reported, never modified or deleted here.
func (s *Service) VerifyUserData(ctx context.Context, userID string) (*Report, error) {
	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations for integrity scan")
	}

	report := &Report{
		UserID:   userID,
		Problems: map[string][]string{},
	}
	for _, conversation := range conversations {
		report.ScannedConversations++
		problems := ValidateConversation(conversation)
		if len(problems) == 0 {
			continue
		}
		report.CorruptedConversations = append(report.CorruptedConversations, conversation.ID)
		report.Problems[conversation.ID] = problems
		slog.Warn("corrupted conversation detected",
			"user", userID,
			"conversation", conversation.ID,
			"problems", len(problems))
	}
	return report, nil
}
