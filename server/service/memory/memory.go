// Package memory orchestrates the conversation lifecycle: storage,
// preference learning, privacy enforcement, retention, and search. Only the
// initial persist of a conversation is allowed to fail a caller; every
// enrichment path degrades instead.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/plugin/ai"
	"github.com/recallhq/recall/server/service/preference"
	"github.com/recallhq/recall/server/service/privacy"
	"github.com/recallhq/recall/server/service/retention"
	"github.com/recallhq/recall/server/service/search"
	"github.com/recallhq/recall/store"
)

const defaultContextConversations = 10

// Service is the single entry point for conversational memory.
type Service struct {
	store       *store.Store
	preferences *preference.Engine
	privacy     *privacy.Controller
	retention   *retention.Service
	search      *search.Service

	initOnce sync.Once
	initErr  error
}

// NewService wires the component services around one store. provider may be
// nil to run without semantic search.
func NewService(st *store.Store, provider *ai.Provider) *Service {
	return &Service{
		store:       st,
		preferences: preference.NewEngine(st),
		privacy:     privacy.NewController(st),
		retention:   retention.NewService(st),
		search:      search.NewService(st, provider),
	}
}

// Preferences exposes the preference engine for callers that need insight
// and export operations directly.
func (s *Service) Preferences() *preference.Engine {
	return s.preferences
}

// Privacy exposes the privacy controller.
func (s *Service) Privacy() *privacy.Controller {
	return s.privacy
}

// Retention exposes the retention service.
func (s *Service) Retention() *retention.Service {
	return s.retention
}

// Initialize prepares the backing store. Safe to call more than once; only
// the first call does work.
func (s *Service) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.store.Migrate(ctx)
	})
	return s.initErr
}

// StoreConversation persists a conversation and runs the enrichment paths.
// Persistence failures propagate; indexing and preference learning failures
// only log.
func (s *Service) StoreConversation(ctx context.Context, userID string, conversation *store.Conversation) (*store.Conversation, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errors.New("conversation is required")
	}
	conversation.UserID = userID
	conversation.RefreshMetadata()

	stored, err := s.store.CreateConversation(ctx, conversation)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store conversation")
	}

	settings, err := s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		slog.Warn("failed to load privacy settings after store", "user", userID, "error", err)
		settings = store.DefaultPrivacySettings(userID)
	}

	if settings.AllowPreferenceLearning {
		s.preferences.AnalyzeUserPreferences(ctx, userID, []*store.Conversation{stored})
	}
	if settings.AllowSearchIndexing {
		if err := s.search.IndexConversation(ctx, stored); err != nil {
			slog.Warn("failed to index conversation", "conversation", stored.ID, "error", err)
		}
	}
	s.privacy.AuditDataAccess(userID, "STORE_CONVERSATION", fmt.Sprintf("conversation=%s messages=%d", stored.ID, len(stored.Messages)))

	return stored, nil
}

// RetrieveContext assembles recent history for a user. It never fails: any
// storage error yields a minimal context instead.
func (s *Service) RetrieveContext(ctx context.Context, userID string, limit int) *ConversationContext {
	if limit <= 0 {
		limit = defaultContextConversations
	}
	result := &ConversationContext{
		UserID:           userID,
		ContextTimestamp: time.Now().UTC(),
	}
	if err := s.Initialize(ctx); err != nil {
		slog.Error("context retrieval degraded, store unavailable", "user", userID, "error", err)
		result.ContextSummary = "context unavailable"
		return result
	}

	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{
		UserID: &userID,
		Limit:  &limit,
	})
	if err != nil {
		slog.Warn("failed to list conversations for context", "user", userID, "error", err)
		result.ContextSummary = "context unavailable"
		return result
	}

	for _, conversation := range conversations {
		result.RelevantHistory = append(result.RelevantHistory, summarizeConversation(conversation))
	}
	if len(conversations) > 0 {
		// ListConversations returns newest first.
		result.RecentMessages = conversations[0].Messages
		result.ContextSummary = fmt.Sprintf("%d recent conversations", len(conversations))
	}
	result.UserPreferences = s.preferences.GetPreferences(ctx, userID)
	return result
}

// SearchHistory searches a user's conversations, honoring their privacy
// settings. Failures degrade to an empty result set.
func (s *Service) SearchHistory(ctx context.Context, userID string, query *search.Query) []*search.Result {
	if err := s.Initialize(ctx); err != nil {
		slog.Error("search degraded, store unavailable", "user", userID, "error", err)
		return []*search.Result{}
	}

	settings, err := s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
	if err != nil {
		slog.Warn("failed to load privacy settings for search", "user", userID, "error", err)
		return []*search.Result{}
	}
	if !settings.IsMemoryEnabled() || !settings.AllowSearchIndexing {
		return []*search.Result{}
	}

	query.UserID = userID
	results, err := s.search.SearchConversations(ctx, query)
	if err != nil {
		slog.Warn("search failed", "user", userID, "error", err)
		return []*search.Result{}
	}
	return results
}

// ApplyPreferences rewrites a response according to the user's learned
// preferences.
func (s *Service) ApplyPreferences(ctx context.Context, userID, response string) string {
	return s.preferences.ApplyPreferences(ctx, userID, response)
}

// ProcessFeedback folds explicit user feedback into the preference profile.
func (s *Service) ProcessFeedback(ctx context.Context, feedback *store.UserFeedback) error {
	if feedback == nil {
		return errors.New("feedback is required")
	}
	return s.preferences.UpdatePreferences(ctx, feedback.UserID, feedback)
}

// DeleteUserData removes user data according to options.
func (s *Service) DeleteUserData(ctx context.Context, userID string, options *store.DeleteOptions) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	if err := s.privacy.DeleteUserData(ctx, userID, options); err != nil {
		return err
	}
	// Learned preferences may now reference deleted data.
	if options != nil && (options.Scope == store.DeleteScopeAll || options.Scope == store.DeleteScopePreferences) {
		s.preferences.ClearCache()
	}
	return nil
}

// ExportUserData returns the complete portable snapshot of a user's data.
func (s *Service) ExportUserData(ctx context.Context, userID string) (*store.UserDataExport, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.privacy.ExportUserData(ctx, userID)
}

// GetPrivacySettings returns the user's settings, defaulted when unset.
func (s *Service) GetPrivacySettings(ctx context.Context, userID string) (*store.PrivacySettings, error) {
	return s.store.GetPrivacySettings(ctx, &store.FindPrivacySettings{UserID: &userID})
}

// UpdatePrivacySettings stores new settings and immediately enforces the
// retention policy they carry.
func (s *Service) UpdatePrivacySettings(ctx context.Context, settings *store.PrivacySettings) (*store.PrivacySettings, error) {
	if settings == nil || settings.UserID == "" {
		return nil, errors.New("settings with a user id are required")
	}
	updated, err := s.store.UpsertPrivacySettings(ctx, settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update privacy settings")
	}
	if err := s.privacy.ApplyRetentionPolicy(ctx, updated.UserID, updated); err != nil {
		slog.Warn("failed to apply retention policy after settings change", "user", updated.UserID, "error", err)
	}
	return updated, nil
}

// RunRetentionSweep enforces retention for all users on demand.
func (s *Service) RunRetentionSweep(ctx context.Context) (*retention.Report, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.retention.CleanupExpiredData(ctx)
}

const componentHealthy = "healthy"

// HealthCheck reports per-component health. It never returns an error; an
// unhealthy component carries its failure reason as "unhealthy: <reason>".
func (s *Service) HealthCheck(ctx context.Context) map[string]string {
	health := map[string]string{}
	check := func(component string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				health[component] = fmt.Sprintf("unhealthy: panic: %v", r)
			}
		}()
		if err := fn(); err != nil {
			health[component] = "unhealthy: " + err.Error()
			return
		}
		health[component] = componentHealthy
	}

	check("storage", func() error {
		ok, err := s.store.IsInitialized(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("store is not initialized")
		}
		return nil
	})
	check("preferences", func() error {
		if s.preferences.GetPreferences(ctx, "health-check") == nil {
			return errors.New("preference engine returned no profile")
		}
		return nil
	})
	check("privacy", func() error {
		_, err := s.privacy.CheckPrivacyCompliance(ctx, "health-check")
		return err
	})
	check("search", func() error {
		_, err := s.search.SearchConversations(ctx, &search.Query{UserID: "health-check", Limit: 1})
		return err
	})

	return health
}
