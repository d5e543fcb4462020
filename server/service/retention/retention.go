// Package retention enforces per-user data retention policies and keeps
// stored conversations compact.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// Service walks stored users and enforces their retention policies. One
// user's failure never aborts the sweep for the others.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Report summarizes a retention sweep.
type Report struct {
	ProcessedUsers        int           `json:"processed_users"`
	DeletedConversations  int           `json:"deleted_conversations"`
	ArchivedConversations int           `json:"archived_conversations"`
	Errors                []string      `json:"errors,omitempty"`
	ProcessingTime        time.Duration `json:"processing_time"`
}

// EnforceRetentionPolicies applies every user's retention policy. Users
// without stored settings fall under the default policy.
func (s *Service) EnforceRetentionPolicies(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	for _, userID := range userIDs {
		deleted, err := s.enforceForUser(ctx, userID)
		report.ProcessedUsers++
		report.DeletedConversations += deleted
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", userID, err))
			slog.Warn("retention enforcement failed for user",
				slog.String("user", userID),
				slog.String("error", err.Error()))
		}
	}

	report.ProcessingTime = time.Since(start)
	slog.Info("retention sweep finished",
		slog.Int("users", report.ProcessedUsers),
		slog.Int("deleted", report.DeletedConversations),
		slog.Int("errors", len(report.Errors)),
		slog.Duration("took", report.ProcessingTime))
	return report, nil
}

func (s *Service) enforceForUser(ctx context.Context, userID string) (int, error) {
	settings, err := s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		return 0, errors.Wrap(err, "failed to load privacy settings")
	}

	days := settings.RetentionPolicy.RetentionDays()
	switch {
	case days == 0:
		// Session-only users keep nothing between sweeps. Their settings and
		// preferences survive so the choice itself is remembered.
		return s.store.DeleteConversationsByUser(ctx, userID, nil, nil)
	case days > 0:
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		return s.store.DeleteConversationsByUser(ctx, userID, nil, &cutoff)
	default:
		return 0, nil
	}
}

// CleanupExpiredData runs a full sweep: retention enforcement for every user
// followed by archival of conversations past the archive threshold.
func (s *Service) CleanupExpiredData(ctx context.Context) (*Report, error) {
	start := time.Now()
	report, err := s.EnforceRetentionPolicies(ctx)
	if err != nil {
		return nil, err
	}

	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	for _, userID := range userIDs {
		archived, err := s.ArchiveOldConversations(ctx, userID)
		report.ArchivedConversations += archived
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("archive user %s: %v", userID, err))
		}
	}

	report.ProcessingTime = time.Since(start)
	return report, nil
}

// ArchiveOldConversations removes a user's conversations older than the
// configured archive threshold. There is no cold storage tier, so archival
// is a delete with its own audit trail.
func (s *Service) ArchiveOldConversations(ctx context.Context, userID string) (int, error) {
	thresholdDays := s.store.Profile().ArchiveThresholdDays
	if thresholdDays <= 0 {
		return 0, nil
	}

	settings, err := s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		return 0, errors.Wrap(err, "failed to load privacy settings")
	}
	// Indefinite retention opts out of archival as well.
	if settings.RetentionPolicy.RetentionDays() < 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays)
	archived, err := s.store.DeleteConversationsByUser(ctx, userID, nil, &cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to archive conversations")
	}
	if archived > 0 {
		slog.Info(fmt.Sprintf("AUDIT: ARCHIVE_CONVERSATIONS user=%s detail=archived=%d", userID, archived))
	}
	return archived, nil
}

// StorageReport summarizes a storage optimization run for one user.
type StorageReport struct {
	ConversationsScanned int     `json:"conversations_scanned"`
	DeduplicatedMessages int     `json:"deduplicated_messages"`
	OriginalSizeBytes    int     `json:"original_size_bytes"`
	OptimizedSizeBytes   int     `json:"optimized_size_bytes"`
	SpaceSavedRatio      float64 `json:"space_saved_ratio"`
}

// OptimizeStorage removes duplicate messages from a user's conversations.
// Two messages are duplicates when they share a role and content; the first
// occurrence wins.
func (s *Service) OptimizeStorage(ctx context.Context, userID string) (*StorageReport, error) {
	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}

	report := &StorageReport{ConversationsScanned: len(conversations)}
	for _, conversation := range conversations {
		report.OriginalSizeBytes += conversation.SizeBytes()

		deduped := dedupeMessages(conversation.Messages)
		removed := len(conversation.Messages) - len(deduped)
		if removed > 0 {
			conversation.Messages = deduped
			conversation.RefreshMetadata()
			if _, err := s.store.UpdateConversation(ctx, &store.UpdateConversation{
				ID:       conversation.ID,
				Messages: deduped,
				Metadata: &conversation.Metadata,
			}); err != nil {
				return nil, errors.Wrapf(err, "failed to update conversation %s", conversation.ID)
			}
			report.DeduplicatedMessages += removed
		}
		report.OptimizedSizeBytes += conversation.SizeBytes()
	}

	if report.OriginalSizeBytes > 0 {
		report.SpaceSavedRatio = 1 - float64(report.OptimizedSizeBytes)/float64(report.OriginalSizeBytes)
	}
	return report, nil
}

func dedupeMessages(messages []store.Message) []store.Message {
	seen := map[string]bool{}
	deduped := make([]store.Message, 0, len(messages))
	for _, m := range messages {
		key := string(m.Role) + "\x00" + m.Content
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, m)
	}
	return deduped
}

// Status describes where one user stands against their retention policy.
type Status struct {
	UserID               string                `json:"user_id"`
	Policy               store.RetentionPolicy `json:"policy"`
	RetentionDays        int                   `json:"retention_days"`
	TotalConversations   int                   `json:"total_conversations"`
	ExpiredConversations int                   `json:"expired_conversations"`
	OldestConversation   *time.Time            `json:"oldest_conversation,omitempty"`
	StorageSizeBytes     int                   `json:"storage_size_bytes"`
}

// GetRetentionStatus reports a user's retention posture without changing
// anything.
func (s *Service) GetRetentionStatus(ctx context.Context, userID string) (*Status, error) {
	settings, err := s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load privacy settings")
	}
	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}

	status := &Status{
		UserID:             userID,
		Policy:             settings.RetentionPolicy,
		RetentionDays:      settings.RetentionPolicy.RetentionDays(),
		TotalConversations: len(conversations),
	}

	var cutoff time.Time
	if status.RetentionDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -status.RetentionDays)
	}
	for _, conversation := range conversations {
		status.StorageSizeBytes += conversation.SizeBytes()
		if status.OldestConversation == nil || conversation.Timestamp.Before(*status.OldestConversation) {
			t := conversation.Timestamp
			status.OldestConversation = &t
		}
		if status.RetentionDays > 0 && conversation.Timestamp.Before(cutoff) {
			status.ExpiredConversations++
		}
		if status.RetentionDays == 0 {
			status.ExpiredConversations++
		}
	}
	return status, nil
}
