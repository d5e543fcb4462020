// Package stats provides simple local usage statistics for the memory
// service. This is a lightweight alternative to enterprise monitoring
// solutions.
package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recallhq/recall/store"
)

// Stats represents usage statistics.
type Stats struct {
	// Conversation stats
	TotalConversations     int64 `json:"total_conversations"`
	ConversationsLastWeek  int64 `json:"conversations_last_week"`
	ConversationsLastMonth int64 `json:"conversations_last_month"`
	TotalMessages          int64 `json:"total_messages"`

	// User stats
	TotalUsers       int64     `json:"total_users"`
	LastActivityTime time.Time `json:"last_activity_time"`

	// Search stats
	TotalSearches  int64     `json:"total_searches"`
	LastSearchTime time.Time `json:"last_search_time"`

	// Timestamp
	LastUpdated time.Time `json:"last_updated"`
}

// Collector collects and manages usage statistics.
type Collector struct {
	store *store.Store

	mu    sync.Mutex
	stats Stats

	searches       atomic.Int64
	lastSearchUnix atomic.Int64

	tickStop chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new statistics collector.
func NewCollector(st *store.Store) *Collector {
	return &Collector{
		store:    st,
		stats:    Stats{LastUpdated: time.Now()},
		tickStop: make(chan struct{}),
	}
}

// Start begins periodic statistics collection. Counts refresh every hour.
func (c *Collector) Start(ctx context.Context) {
	c.collect(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-ctx.Done():
				c.Stop()
				return
			case <-c.tickStop:
				return
			}
		}
	}()
}

// Stop stops the statistics collector.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.tickStop) })
}

// RecordSearch notes that a search was served.
func (c *Collector) RecordSearch() {
	c.searches.Add(1)
	c.lastSearchUnix.Store(time.Now().Unix())
}

// GetStats returns a copy of current statistics.
func (c *Collector) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.TotalSearches = c.searches.Load()
	if unix := c.lastSearchUnix.Load(); unix > 0 {
		out.LastSearchTime = time.Unix(unix, 0)
	}
	return &out
}

// collect gathers current statistics from the store.
func (c *Collector) collect(ctx context.Context) {
	userIDs, err := c.store.ListUserIDs(ctx)
	if err != nil {
		return
	}

	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	var next Stats
	next.TotalUsers = int64(len(userIDs))
	for _, userID := range userIDs {
		userID := userID
		conversations, err := c.store.ListConversations(ctx, &store.FindConversation{UserID: &userID})
		if err != nil {
			continue
		}
		next.TotalConversations += int64(len(conversations))
		for _, conversation := range conversations {
			next.TotalMessages += int64(len(conversation.Messages))
			if !conversation.Timestamp.Before(weekAgo) {
				next.ConversationsLastWeek++
			}
			if !conversation.Timestamp.Before(monthAgo) {
				next.ConversationsLastMonth++
			}
			if conversation.Timestamp.After(next.LastActivityTime) {
				next.LastActivityTime = conversation.Timestamp
			}
		}
	}
	next.LastUpdated = now

	c.mu.Lock()
	c.stats = next
	c.mu.Unlock()
}

// Summary returns a short human readable summary of usage.
func (c *Collector) Summary() string {
	s := c.GetStats()
	return fmt.Sprintf("%d conversations (%d this week) across %d users, %d searches served",
		s.TotalConversations, s.ConversationsLastWeek, s.TotalUsers, s.TotalSearches)
}
