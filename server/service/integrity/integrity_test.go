package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(teststore.New(), &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewService(st), st
}

func intactConversation(userID string) *store.Conversation {
	conversation := store.NewConversation(userID)
	conversation.AddMessage(store.NewMessage(store.MessageRoleUser, "how do I tune GC"))
	conversation.AddMessage(store.NewMessage(store.MessageRoleAssistant, "start with GOGC"))
	return conversation
}

func TestChecksumIsStable(t *testing.T) {
	conversation := intactConversation("user-1")

	first := Checksum(conversation)
	second := Checksum(conversation)
	require.Len(t, first, 64)
	assert.Equal(t, first, second)

	conversation.Messages[0].Content = "tampered"
	assert.NotEqual(t, first, Checksum(conversation))
}

func TestValidateChecksum(t *testing.T) {
	conversation := intactConversation("user-1")
	sum := Checksum(conversation)

	require.NoError(t, ValidateChecksum(conversation, sum))
	assert.True(t, errors.Is(ValidateChecksum(conversation, "short"), ErrDataCorruption))

	conversation.Summary = "edited after checksum"
	assert.True(t, errors.Is(ValidateChecksum(conversation, sum), ErrDataCorruption))
}

func TestValidateConversationIntact(t *testing.T) {
	assert.Empty(t, ValidateConversation(intactConversation("user-1")))
}

func TestValidateConversationDamaged(t *testing.T) {
	conversation := intactConversation("user-1")
	conversation.Messages = append(conversation.Messages, store.Message{
		Role:      "moderator",
		Timestamp: conversation.Messages[0].Timestamp.Add(-time.Hour),
	})

	problems := ValidateConversation(conversation)
	assert.Contains(t, problems, "message 2: id is missing")
	assert.Contains(t, problems, `message 2: invalid role "moderator"`)
	assert.Contains(t, problems, "message 2: content is empty")
	assert.Contains(t, problems, "message 2: timestamps are not in chronological order")
}

func TestVerifyUserData(t *testing.T) {
	ctx := context.Background()
	service, st := newTestService(t)

	intact, err := st.GetDriver().CreateConversation(ctx, intactConversation("user-1"))
	require.NoError(t, err)

	damaged := store.NewConversation("user-1")
	damaged.Messages = []store.Message{{ID: "m-1", Role: store.MessageRoleUser, Timestamp: time.Now().UTC()}}
	damaged, err = st.GetDriver().CreateConversation(ctx, damaged)
	require.NoError(t, err)

	report, err := service.VerifyUserData(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.ScannedConversations)
	assert.False(t, report.Intact())
	require.Len(t, report.CorruptedConversations, 1)
	assert.Equal(t, damaged.ID, report.CorruptedConversations[0])
	assert.NotContains(t, report.Problems, intact.ID)
	assert.Contains(t, report.Problems[damaged.ID], "message 0: content is empty")
}

func TestVerifyUserDataEmpty(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	report, err := service.VerifyUserData(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, report.ScannedConversations)
	assert.True(t, report.Intact())
}
