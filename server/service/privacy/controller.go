// Package privacy is the sole authority for destructive, export, and
// anonymization operations over user data. Every operation is audit-logged.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/recallhq/recall/store"
)

// ErrDeletionNotConfirmed is returned when a deletion request arrives
// without the explicit confirmation flag. No side effects occur.
var ErrDeletionNotConfirmed = errors.New("deletion must be explicitly confirmed")

// Controller owns deletion, export, anonymization, and compliance checks.
type Controller struct {
	store *store.Store
}

func NewController(st *store.Store) *Controller {
	return &Controller{store: st}
}

// AuditDataAccess records a privacy-sensitive operation in the audit log.
func (c *Controller) AuditDataAccess(userID, operation, detail string) {
	slog.Info(fmt.Sprintf("AUDIT: %s user=%s detail=%s", operation, userID, detail))
}

// DeleteUserData deletes user data according to options. Validation happens
// before any storage call; storage errors propagate untouched because a
// partial silent success on a deletion request is a compliance risk.
func (c *Controller) DeleteUserData(ctx context.Context, userID string, options *store.DeleteOptions) error {
	if options == nil || !options.ConfirmDeletion {
		return ErrDeletionNotConfirmed
	}

	switch options.Scope {
	case store.DeleteScopeAll:
		if err := c.deleteAllUserData(ctx, userID); err != nil {
			return err
		}
	case store.DeleteScopeConversations:
		if _, err := c.store.DeleteConversationsByUser(ctx, userID, nil, nil); err != nil {
			return errors.Wrap(err, "failed to delete conversations")
		}
	case store.DeleteScopePreferences:
		if err := c.store.DeleteUserPreferences(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete preferences")
		}
	case store.DeleteScopeSpecificConversations:
		if err := c.deleteSpecificConversations(ctx, userID, options.ConversationIDs); err != nil {
			return err
		}
	case store.DeleteScopeDateRange:
		if _, err := c.store.DeleteConversationsByUser(ctx, userID, options.StartDate, options.EndDate); err != nil {
			return errors.Wrap(err, "failed to delete conversations in range")
		}
	case store.DeleteScopeSearchHistory:
		// Search state is derived from conversations; there is no separate
		// history store to clear.
	default:
		return errors.Errorf("unknown delete scope: %s", options.Scope)
	}

	c.AuditDataAccess(userID, "DELETE_USER_DATA", fmt.Sprintf("scope=%s reason=%s", options.Scope, options.Reason))
	return nil
}

func (c *Controller) deleteAllUserData(ctx context.Context, userID string) error {
	if _, err := c.store.DeleteConversationsByUser(ctx, userID, nil, nil); err != nil {
		return errors.Wrap(err, "failed to delete conversations")
	}
	if err := c.store.DeleteUserPreferences(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to delete preferences")
	}
	if err := c.store.DeletePrivacySettings(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to delete privacy settings")
	}
	return nil
}

// deleteSpecificConversations verifies ownership before each delete.
// Conversations that do not exist or belong to another user are skipped.
func (c *Controller) deleteSpecificConversations(ctx context.Context, userID string, conversationIDs []string) error {
	for _, id := range conversationIDs {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		id := id
		conversation, err := c.store.GetConversation(ctx, &store.FindConversation{ID: &id})
		if err != nil {
			return errors.Wrapf(err, "failed to load conversation %s", id)
		}
		if conversation == nil || conversation.UserID != userID {
			continue
		}
		if err := c.store.DeleteConversation(ctx, &store.DeleteConversation{ID: id}); err != nil {
			return errors.Wrapf(err, "failed to delete conversation %s", id)
		}
	}
	return nil
}

// ExportUserData gathers the user's complete data footprint. The fetches run
// in parallel and the export is all-or-nothing: any failure propagates.
func (c *Controller) ExportUserData(ctx context.Context, userID string) (*store.UserDataExport, error) {
	var (
		conversations []*store.Conversation
		preferences   *store.UserPreferences
		settings      *store.PrivacySettings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conversations, err = c.store.ListConversations(gctx, &store.FindConversation{UserID: &userID})
		return errors.Wrap(err, "failed to fetch conversations")
	})
	// Preferences and settings come straight from the driver so the export
	// reflects stored data, not the defaulted view the caches serve.
	g.Go(func() error {
		var err error
		preferences, err = c.store.GetDriver().GetUserPreferences(gctx, &store.FindUserPreferences{UserID: &userID})
		return errors.Wrap(err, "failed to fetch preferences")
	})
	g.Go(func() error {
		var err error
		settings, err = c.store.GetDriver().GetPrivacySettings(gctx, &store.FindPrivacySettings{UserID: &userID})
		return errors.Wrap(err, "failed to fetch privacy settings")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	export := &store.UserDataExport{
		UserID:          userID,
		ExportTimestamp: time.Now().UTC(),
		Conversations:   conversations,
		Preferences:     preferences,
		PrivacySettings: settings,
		Metadata:        exportMetadata(conversations, preferences),
	}

	c.AuditDataAccess(userID, "EXPORT_USER_DATA", fmt.Sprintf("conversations=%d", len(conversations)))
	return export, nil
}

func exportMetadata(conversations []*store.Conversation, preferences *store.UserPreferences) store.ExportMetadata {
	metadata := store.ExportMetadata{
		TotalConversations: len(conversations),
		HasPreferences:     preferences != nil,
	}

	tagSet := map[string]bool{}
	for _, conversation := range conversations {
		metadata.TotalMessages += len(conversation.Messages)
		for _, tag := range conversation.Tags {
			tagSet[tag] = true
		}
		ts := conversation.Timestamp
		if metadata.DateRangeStart == nil || ts.Before(*metadata.DateRangeStart) {
			t := ts
			metadata.DateRangeStart = &t
		}
		if metadata.DateRangeEnd == nil || ts.After(*metadata.DateRangeEnd) {
			t := ts
			metadata.DateRangeEnd = &t
		}
	}
	for tag := range tagSet {
		metadata.UniqueTags = append(metadata.UniqueTags, tag)
	}
	return metadata
}

// ApplyRetentionPolicy enforces the given settings immediately for one user.
func (c *Controller) ApplyRetentionPolicy(ctx context.Context, userID string, settings *store.PrivacySettings) error {
	days := settings.RetentionPolicy.RetentionDays()
	switch {
	case days == 0:
		if err := c.deleteAllUserData(ctx, userID); err != nil {
			return err
		}
		c.AuditDataAccess(userID, "APPLY_RETENTION_POLICY", "session_only: all data deleted")
	case days > 0:
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		deleted, err := c.store.DeleteConversationsByUser(ctx, userID, nil, &cutoff)
		if err != nil {
			return errors.Wrap(err, "failed to delete expired conversations")
		}
		c.AuditDataAccess(userID, "APPLY_RETENTION_POLICY", fmt.Sprintf("policy=%s deleted=%d", settings.RetentionPolicy, deleted))
	default:
		// Indefinite retention, nothing to enforce.
	}
	return nil
}

// AnonymizeData masks personal data in the given conversations in place.
// Conversations that do not exist or are not owned by the user are skipped.
func (c *Controller) AnonymizeData(ctx context.Context, userID string, conversationIDs []string) error {
	for _, id := range conversationIDs {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		id := id
		conversation, err := c.store.GetConversation(ctx, &store.FindConversation{ID: &id})
		if err != nil {
			return errors.Wrapf(err, "failed to load conversation %s", id)
		}
		if conversation == nil || conversation.UserID != userID {
			continue
		}

		messages := make([]store.Message, len(conversation.Messages))
		copy(messages, conversation.Messages)
		for i := range messages {
			messages[i].Content = AnonymizeText(messages[i].Content)
		}
		summary := AnonymizeText(conversation.Summary)

		if _, err := c.store.UpdateConversation(ctx, &store.UpdateConversation{
			ID:       id,
			Messages: messages,
			Summary:  &summary,
		}); err != nil {
			return errors.Wrapf(err, "failed to re-store conversation %s", id)
		}
	}

	c.AuditDataAccess(userID, "ANONYMIZE_DATA", fmt.Sprintf("conversations=%d", len(conversationIDs)))
	return nil
}

// CheckPrivacyCompliance reports whether the user's stored data matches
// their configured privacy settings. A user with no stored settings has
// nothing to violate.
func (c *Controller) CheckPrivacyCompliance(ctx context.Context, userID string) (bool, error) {
	settings, err := c.store.GetDriver().GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		return false, errors.Wrap(err, "failed to load privacy settings")
	}
	if settings == nil {
		return true, nil
	}

	if !settings.IsMemoryEnabled() {
		one := 1
		conversations, err := c.store.ListConversations(ctx, &store.FindConversation{UserID: &userID, Limit: &one})
		if err != nil {
			return false, errors.Wrap(err, "failed to list conversations")
		}
		if len(conversations) > 0 {
			return false, nil
		}
	}

	if days := settings.RetentionPolicy.RetentionDays(); days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		one := 1
		expired, err := c.store.ListConversations(ctx, &store.FindConversation{UserID: &userID, EndDate: &cutoff, Limit: &one})
		if err != nil {
			return false, errors.Wrap(err, "failed to list expired conversations")
		}
		if len(expired) > 0 {
			return false, nil
		}
	}

	return true, nil
}
