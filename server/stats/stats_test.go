package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestCollector(t *testing.T) (*Collector, *store.Store) {
	t.Helper()
	st := store.New(teststore.New(), &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewCollector(st), st
}

func seedConversationAt(t *testing.T, st *store.Store, userID string, ts time.Time, contents ...string) {
	t.Helper()
	conversation := store.NewConversation(userID)
	conversation.Timestamp = ts
	for _, content := range contents {
		conversation.AddMessage(store.NewMessage(store.MessageRoleUser, content))
	}
	_, err := st.GetDriver().CreateConversation(context.Background(), conversation)
	require.NoError(t, err)
}

func TestCollectCountsConversations(t *testing.T) {
	collector, st := newTestCollector(t)
	ctx := context.Background()
	now := time.Now()

	seedConversationAt(t, st, "user-1", now.AddDate(0, 0, -1), "hello", "hi")
	seedConversationAt(t, st, "user-1", now.AddDate(0, 0, -10), "older")
	seedConversationAt(t, st, "user-2", now.AddDate(0, 0, -40), "ancient")

	collector.collect(ctx)
	s := collector.GetStats()

	assert.Equal(t, int64(3), s.TotalConversations)
	assert.Equal(t, int64(4), s.TotalMessages)
	assert.Equal(t, int64(2), s.TotalUsers)
	assert.Equal(t, int64(1), s.ConversationsLastWeek)
	assert.Equal(t, int64(2), s.ConversationsLastMonth)
	assert.WithinDuration(t, now.AddDate(0, 0, -1), s.LastActivityTime, time.Minute)
}

func TestRecordSearch(t *testing.T) {
	collector, _ := newTestCollector(t)

	require.Zero(t, collector.GetStats().TotalSearches)
	collector.RecordSearch()
	collector.RecordSearch()

	s := collector.GetStats()
	assert.Equal(t, int64(2), s.TotalSearches)
	assert.WithinDuration(t, time.Now(), s.LastSearchTime, time.Minute)
}

func TestGetStatsEmptyStore(t *testing.T) {
	collector, _ := newTestCollector(t)
	collector.collect(context.Background())

	s := collector.GetStats()
	assert.Zero(t, s.TotalConversations)
	assert.Zero(t, s.TotalUsers)
	assert.Contains(t, collector.Summary(), "0 conversations")
}

func TestStopIsIdempotent(t *testing.T) {
	collector, _ := newTestCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector.Start(ctx)
	collector.Stop()
	collector.Stop()
}
