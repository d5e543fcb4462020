package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestStore(t *testing.T) (*store.Store, *teststore.Driver) {
	t.Helper()
	driver := teststore.New()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, driver
}

func TestDeleteConversationIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	conversation := store.NewConversation("user-1")
	conversation.AddMessage(store.NewMessage(store.MessageRoleUser, "hello"))
	created, err := st.CreateConversation(ctx, conversation)
	require.NoError(t, err)

	require.NoError(t, st.DeleteConversation(ctx, &store.DeleteConversation{ID: created.ID}))
	// Deleting again must not raise.
	require.NoError(t, st.DeleteConversation(ctx, &store.DeleteConversation{ID: created.ID}))

	userID := "user-1"
	conversations, err := st.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestGetPrivacySettingsServedFromCache(t *testing.T) {
	ctx := context.Background()
	st, driver := newTestStore(t)

	settings := store.DefaultPrivacySettings("user-1")
	settings.PrivacyMode = store.PrivacyModeLimitedMemory
	_, err := st.UpsertPrivacySettings(ctx, settings)
	require.NoError(t, err)

	// Remove the row behind the facade's back; the cached copy still answers.
	require.NoError(t, driver.DeletePrivacySettings(ctx, "user-1"))

	userID := "user-1"
	got, err := st.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, store.PrivacyModeLimitedMemory, got.PrivacyMode)
}

func TestGetUserPreferencesDefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	userID := "user-1"
	preferences, err := st.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: &userID})
	require.NoError(t, err)
	require.NotNil(t, preferences)
	assert.Equal(t, "user-1", preferences.UserID)
	assert.True(t, preferences.LearningEnabled)
}
