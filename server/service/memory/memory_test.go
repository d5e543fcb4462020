package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/server/service/search"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestService(t *testing.T) (*Service, *store.Store, *teststore.Driver) {
	t.Helper()
	driver := teststore.New()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewService(st, nil), st, driver
}

func newConversation(userID string, contents ...string) *store.Conversation {
	conversation := store.NewConversation(userID)
	for _, content := range contents {
		conversation.AddMessage(store.NewMessage(store.MessageRoleUser, content))
	}
	return conversation
}

func TestStoreConversation(t *testing.T) {
	ctx := context.Background()
	service, st, _ := newTestService(t)

	stored, err := service.StoreConversation(ctx, "user-1", newConversation("", "hello there"))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)

	userID := "user-1"
	conversations, err := st.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 1, conversations[0].Metadata.TotalMessages)
}

func TestStoreConversationRejectedForNoMemoryUser(t *testing.T) {
	ctx := context.Background()
	service, st, _ := newTestService(t)

	settings := store.DefaultPrivacySettings("user-1")
	settings.PrivacyMode = store.PrivacyModeNoMemory
	_, err := st.UpsertPrivacySettings(ctx, settings)
	require.NoError(t, err)

	_, err = service.StoreConversation(ctx, "user-1", newConversation("", "should be rejected"))
	require.Error(t, err)
}

func TestStoreConversationNil(t *testing.T) {
	service, _, _ := newTestService(t)
	_, err := service.StoreConversation(context.Background(), "user-1", nil)
	require.Error(t, err)
}

func TestRetrieveContext(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "tell me about Go", "Go is a compiled language."))
	require.NoError(t, err)
	_, err = service.StoreConversation(ctx, "user-1", newConversation("", "what about Rust?"))
	require.NoError(t, err)

	result := service.RetrieveContext(ctx, "user-1", 0)
	require.NotNil(t, result)
	assert.Equal(t, "user-1", result.UserID)
	assert.Len(t, result.RelevantHistory, 2)
	assert.NotEmpty(t, result.RecentMessages)
	assert.NotNil(t, result.UserPreferences)
	assert.Contains(t, result.ContextSummary, "2 recent conversations")
}

func TestRetrieveContextDegradesOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	service, _, driver := newTestService(t)

	driver.FailNext = assert.AnError
	result := service.RetrieveContext(ctx, "user-1", 5)
	require.NotNil(t, result)
	assert.Equal(t, "user-1", result.UserID)
	assert.Empty(t, result.RelevantHistory)
	assert.Equal(t, "context unavailable", result.ContextSummary)
}

func TestRetrieveContextEmptyHistory(t *testing.T) {
	service, _, _ := newTestService(t)
	result := service.RetrieveContext(context.Background(), "nobody", 5)
	require.NotNil(t, result)
	assert.Empty(t, result.RelevantHistory)
	assert.Empty(t, result.RecentMessages)
}

func TestSearchHistory(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "how do goroutines work?"))
	require.NoError(t, err)

	results := service.SearchHistory(ctx, "user-1", &search.Query{Keywords: []string{"goroutines"}})
	require.Len(t, results, 1)
}

func TestSearchHistoryBlockedByPrivacyMode(t *testing.T) {
	ctx := context.Background()
	service, st, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "searchable content"))
	require.NoError(t, err)

	settings := store.DefaultPrivacySettings("user-1")
	settings.PrivacyMode = store.PrivacyModeNoMemory
	_, err = st.UpsertPrivacySettings(ctx, settings)
	require.NoError(t, err)

	results := service.SearchHistory(ctx, "user-1", &search.Query{Keywords: []string{"searchable"}})
	assert.Empty(t, results)
}

func TestSearchHistoryBlockedWhenIndexingDisabled(t *testing.T) {
	ctx := context.Background()
	service, st, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "searchable content"))
	require.NoError(t, err)

	settings := store.DefaultPrivacySettings("user-1")
	settings.AllowSearchIndexing = false
	_, err = st.UpsertPrivacySettings(ctx, settings)
	require.NoError(t, err)

	results := service.SearchHistory(ctx, "user-1", &search.Query{Keywords: []string{"searchable"}})
	assert.Empty(t, results)
}

func TestSearchHistoryDegradesOnFailure(t *testing.T) {
	ctx := context.Background()
	service, _, driver := newTestService(t)

	driver.FailNext = assert.AnError
	results := service.SearchHistory(ctx, "user-1", &search.Query{Keywords: []string{"anything"}})
	assert.Empty(t, results)
}

func TestProcessFeedback(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	err := service.ProcessFeedback(ctx, &store.UserFeedback{
		UserID:       "user-1",
		FeedbackType: store.FeedbackPositive,
		Timestamp:    time.Now().UTC(),
	})
	require.NoError(t, err)

	require.Error(t, service.ProcessFeedback(ctx, nil))
}

func TestUpdatePrivacySettingsEnforcesRetention(t *testing.T) {
	ctx := context.Background()
	service, st, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "soon to be gone"))
	require.NoError(t, err)

	settings := store.DefaultPrivacySettings("user-1")
	settings.RetentionPolicy = store.RetentionSessionOnly
	updated, err := service.UpdatePrivacySettings(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, store.RetentionSessionOnly, updated.RetentionPolicy)

	userID := "user-1"
	conversations, err := st.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestUpdatePrivacySettingsValidation(t *testing.T) {
	service, _, _ := newTestService(t)
	_, err := service.UpdatePrivacySettings(context.Background(), nil)
	require.Error(t, err)
	_, err = service.UpdatePrivacySettings(context.Background(), &store.PrivacySettings{})
	require.Error(t, err)
}

func TestDeleteAndExportPassThrough(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	_, err := service.StoreConversation(ctx, "user-1", newConversation("", "exported then deleted"))
	require.NoError(t, err)

	export, err := service.ExportUserData(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, export.Metadata.TotalConversations)

	err = service.DeleteUserData(ctx, "user-1", &store.DeleteOptions{
		Scope:           store.DeleteScopeAll,
		ConfirmDeletion: true,
	})
	require.NoError(t, err)

	export, err = service.ExportUserData(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, export.Metadata.TotalConversations)
}

func TestHealthCheck(t *testing.T) {
	service, _, _ := newTestService(t)

	health := service.HealthCheck(context.Background())
	assert.Equal(t, "healthy", health["storage"])
	assert.Equal(t, "healthy", health["preferences"])
	assert.Equal(t, "healthy", health["privacy"])
	assert.Equal(t, "healthy", health["search"])
}

func TestHealthCheckReportsReason(t *testing.T) {
	service, _, driver := newTestService(t)
	ctx := context.Background()

	// Warm the preference cache so the injected failure lands on the
	// compliance check, which propagates storage errors.
	require.NotNil(t, service.Preferences().GetPreferences(ctx, "health-check"))

	driver.FailNext = assert.AnError
	health := service.HealthCheck(ctx)
	assert.True(t, strings.HasPrefix(health["privacy"], "unhealthy: "))
	assert.Contains(t, health["privacy"], assert.AnError.Error())
	for _, component := range []string{"storage", "preferences", "search"} {
		assert.Equal(t, "healthy", health[component], component)
	}
}

func TestContextText(t *testing.T) {
	now := time.Now().UTC()
	messages := []store.Message{
		store.NewMessage(store.MessageRoleUser, "first"),
		store.NewMessage(store.MessageRoleAssistant, "second"),
		store.NewMessage(store.MessageRoleUser, "third"),
		store.NewMessage(store.MessageRoleAssistant, "fourth"),
		store.NewMessage(store.MessageRoleUser, "fifth"),
		store.NewMessage(store.MessageRoleAssistant, "sixth"),
	}
	ctx := &ConversationContext{
		UserID:         "user-1",
		ContextSummary: "2 recent conversations",
		RelevantHistory: []ConversationSummary{
			{SummaryText: "talked about Go", KeyTopics: []string{"programming", "go"}, Timestamp: now},
		},
		RecentMessages:   messages,
		ContextTimestamp: now,
	}

	text := ctx.ContextText()
	assert.Contains(t, text, "Context Summary: 2 recent conversations")
	assert.Contains(t, text, "- talked about Go (Topics: programming, go)")
	assert.Contains(t, text, "user: fifth")
	// Only the last five messages are rendered.
	assert.NotContains(t, text, "user: first")
	assert.Contains(t, text, "assistant: second")
}

func TestContextTextEmpty(t *testing.T) {
	ctx := &ConversationContext{UserID: "user-1"}
	assert.Equal(t, "", ctx.ContextText())
}

func TestSummarizeConversation(t *testing.T) {
	conversation := newConversation("user-1", "How do I deploy a Go service? I keep getting errors.")
	summary := summarizeConversation(conversation)
	assert.Equal(t, conversation.ID, summary.ConversationID)
	assert.Equal(t, "How do I deploy a Go service", summary.SummaryText)
	assert.Equal(t, 1, summary.MessageCount)
	assert.InDelta(t, 0.1, summary.ImportanceScore, 1e-9)

	conversation.Summary = "deployment troubleshooting"
	summary = summarizeConversation(conversation)
	assert.Equal(t, "deployment troubleshooting", summary.SummaryText)
}
