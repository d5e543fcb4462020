// Package teststore provides an in-memory store.Driver for tests.
package teststore

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// Driver is an in-memory store.Driver. It mirrors the SQL drivers closely
// enough for service tests but keeps everything in maps.
type Driver struct {
	mu sync.RWMutex

	conversations map[string]*store.Conversation // keyed by conversation ID
	preferences   map[string]*store.UserPreferences
	privacy       map[string]*store.PrivacySettings
	embeddings    map[string]*store.ConversationEmbedding

	// FailNext, when set, makes the next call return an error. Used to test
	// degraded paths.
	FailNext error
	failMu   sync.Mutex
}

func New() *Driver {
	return &Driver{
		conversations: map[string]*store.Conversation{},
		preferences:   map[string]*store.UserPreferences{},
		privacy:       map[string]*store.PrivacySettings{},
		embeddings:    map[string]*store.ConversationEmbedding{},
	}
}

func (d *Driver) takeFailure() error {
	d.failMu.Lock()
	defer d.failMu.Unlock()
	err := d.FailNext
	d.FailNext = nil
	return err
}

func (d *Driver) GetDB() interface{} { return nil }
func (d *Driver) Close() error       { return nil }

func (d *Driver) IsInitialized(context.Context) (bool, error) { return true, nil }
func (d *Driver) Migrate(context.Context) error               { return nil }

func (d *Driver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	clone := *create
	d.conversations[create.ID] = &clone
	return create, nil
}

func (d *Driver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}

	list := []*store.Conversation{}
	for _, c := range d.conversations {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		if find.UserID != nil && c.UserID != *find.UserID {
			continue
		}
		if find.StartDate != nil && c.Timestamp.Before(*find.StartDate) {
			continue
		}
		if find.EndDate != nil && c.Timestamp.After(*find.EndDate) {
			continue
		}
		if len(find.Tags) > 0 && !hasAllTags(c.Tags, find.Tags) {
			continue
		}
		clone := *c
		list = append(list, &clone)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
	if find.Limit != nil && *find.Limit < len(list) {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	existing, ok := d.conversations[update.ID]
	if !ok {
		return nil, errors.Errorf("conversation %s not found", update.ID)
	}
	if update.Messages != nil {
		existing.Messages = update.Messages
	}
	if update.Summary != nil {
		existing.Summary = *update.Summary
	}
	if update.Tags != nil {
		existing.Tags = update.Tags
	}
	if update.Metadata != nil {
		existing.Metadata = *update.Metadata
	}
	clone := *existing
	return &clone, nil
}

func (d *Driver) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return err
	}
	// Deleting a missing conversation is a no-op, as in the SQL drivers.
	delete(d.conversations, del.ID)
	delete(d.embeddings, del.ID)
	return nil
}

func (d *Driver) DeleteConversationsByUser(_ context.Context, userID string, start, end *int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return 0, err
	}
	deleted := 0
	for id, c := range d.conversations {
		if c.UserID != userID {
			continue
		}
		ts := c.Timestamp.Unix()
		if start != nil && ts < *start {
			continue
		}
		if end != nil && ts > *end {
			continue
		}
		delete(d.conversations, id)
		delete(d.embeddings, id)
		deleted++
	}
	return deleted, nil
}

func (d *Driver) UpsertUserPreferences(_ context.Context, upsert *store.UserPreferences) (*store.UserPreferences, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	clone := *upsert
	d.preferences[upsert.UserID] = &clone
	return upsert, nil
}

func (d *Driver) GetUserPreferences(_ context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	if find.UserID == nil {
		return nil, errors.New("user id is required")
	}
	preferences, ok := d.preferences[*find.UserID]
	if !ok {
		return nil, nil
	}
	clone := *preferences
	return &clone, nil
}

func (d *Driver) DeleteUserPreferences(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return err
	}
	delete(d.preferences, userID)
	return nil
}

func (d *Driver) UpsertPrivacySettings(_ context.Context, upsert *store.PrivacySettings) (*store.PrivacySettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	clone := *upsert
	d.privacy[upsert.UserID] = &clone
	return upsert, nil
}

func (d *Driver) GetPrivacySettings(_ context.Context, find *store.FindPrivacySettings) (*store.PrivacySettings, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	if find.UserID == nil {
		return nil, errors.New("user id is required")
	}
	settings, ok := d.privacy[*find.UserID]
	if !ok {
		return nil, nil
	}
	clone := *settings
	return &clone, nil
}

func (d *Driver) DeletePrivacySettings(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return err
	}
	delete(d.privacy, userID)
	return nil
}

func (d *Driver) ListUserIDs(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := map[string]bool{}
	for _, c := range d.conversations {
		seen[c.UserID] = true
	}
	for userID := range d.preferences {
		seen[userID] = true
	}
	for userID := range d.privacy {
		seen[userID] = true
	}
	userIDs := make([]string, 0, len(seen))
	for userID := range seen {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

func (d *Driver) UpsertConversationEmbedding(_ context.Context, upsert *store.ConversationEmbedding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *upsert
	d.embeddings[upsert.ConversationID] = &clone
	return nil
}

func (d *Driver) SearchConversationsByVector(context.Context, *store.FindConversationEmbedding) ([]*store.ConversationWithScore, error) {
	return nil, store.ErrVectorSearchUnsupported
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
