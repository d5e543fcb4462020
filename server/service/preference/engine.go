// Package preference maintains per-user models of preferred response style
// and applies them to candidate response text.
package preference

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// Engine learns and applies user preferences. The in-process cache is the
// authoritative copy; the store is written through on every mutation.
// Concurrent updates to the same user are last-write-wins.
type Engine struct {
	store    *store.Store
	analyzer *Analyzer

	mu    sync.RWMutex
	cache map[string]*store.UserPreferences
}

// NewEngine creates a preference engine backed by st. st may be nil, in
// which case the engine is cache-only.
func NewEngine(st *store.Store) *Engine {
	return &Engine{
		store:    st,
		analyzer: NewAnalyzer(),
		cache:    map[string]*store.UserPreferences{},
	}
}

// AnalyzeUserPreferences builds a fresh preference profile from the given
// conversations. Analysis failures degrade to a default profile rather than
// erroring; the caller always gets usable preferences.
func (e *Engine) AnalyzeUserPreferences(ctx context.Context, userID string, conversations []*store.Conversation) *store.UserPreferences {
	preferences := store.DefaultUserPreferences(userID)
	preferences.ResponseStyle = e.analyzer.AnalyzeResponseStyle(conversations)
	preferences.TopicInterests = e.analyzer.ExtractTopics(conversations)
	preferences.CommunicationPreferences = e.analyzer.AnalyzeCommunicationPreferences(conversations)

	e.put(preferences)
	e.persist(ctx, preferences)
	return preferences
}

// GetPreferences returns the cached profile for userID, loading from the
// store on a miss and falling back to defaults.
func (e *Engine) GetPreferences(ctx context.Context, userID string) *store.UserPreferences {
	e.mu.RLock()
	cached, ok := e.cache[userID]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	if e.store != nil {
		preferences, err := e.store.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: &userID})
		if err == nil && preferences != nil {
			e.put(preferences)
			return preferences
		}
		if err != nil {
			slog.Warn("failed to load preferences, using defaults", "user_id", userID, "error", err)
		}
	}

	preferences := store.DefaultUserPreferences(userID)
	e.put(preferences)
	return preferences
}

// ApplyPreferences rewrites response toward the user's learned preferences.
// It returns the input unchanged when preferences are absent, learning is
// disabled, or confidence is below the activation threshold.
func (e *Engine) ApplyPreferences(ctx context.Context, userID string, response string) string {
	preferences := e.GetPreferences(ctx, userID)
	if !preferences.LearningEnabled {
		return response
	}
	styleActive := preferences.ResponseStyle.Confidence >= activationThreshold
	commActive := preferences.CommunicationPreferences.Confidence >= activationThreshold
	if !styleActive && !commActive {
		return response
	}

	result := response
	if styleActive {
		result = safeTransform(result, func(text string) string {
			return applyStyle(text, preferences.ResponseStyle.StyleType)
		})
		result = safeTransform(result, func(text string) string {
			return applyTone(text, preferences.ResponseStyle.Tone)
		})
		result = safeTransform(result, func(text string) string {
			return adjustLength(text, preferences.ResponseStyle.PreferredLength)
		})
	}
	if commActive {
		result = safeTransform(result, func(text string) string {
			return applyFormatting(text, preferences.CommunicationPreferences)
		})
	}
	return result
}

// UpdatePreferences folds a piece of feedback into the profile and persists
// the result. Persistence errors propagate: a preference update that
// silently fails must not report success.
func (e *Engine) UpdatePreferences(ctx context.Context, userID string, feedback *store.UserFeedback) error {
	preferences := e.GetPreferences(ctx, userID)

	switch {
	case feedback.IsPositive():
		preferences.ResponseStyle.Confidence = store.Clamp(preferences.ResponseStyle.Confidence + positiveFeedbackStep)
		preferences.CommunicationPreferences.Confidence = store.Clamp(preferences.CommunicationPreferences.Confidence + positiveFeedbackStep)
	case feedback.IsCorrection():
		e.processFeedbackText(preferences, feedback.FeedbackText)
	case feedback.FeedbackType == store.FeedbackNegative:
		preferences.ResponseStyle.Confidence = store.Clamp(preferences.ResponseStyle.Confidence - negativeFeedbackStep)
		preferences.CommunicationPreferences.Confidence = store.Clamp(preferences.CommunicationPreferences.Confidence - negativeFeedbackStep)
	}
	preferences.LastUpdated = time.Now().UTC()

	e.put(preferences)
	if e.store != nil {
		if _, err := e.store.UpsertUserPreferences(ctx, preferences); err != nil {
			return errors.Wrap(err, "failed to persist preferences")
		}
	}
	return nil
}

// processFeedbackText reinterprets free-text correction feedback into style,
// tone, and formatting changes with an aggressive confidence bump.
func (e *Engine) processFeedbackText(preferences *store.UserPreferences, text string) {
	text = strings.ToLower(text)
	if text == "" {
		return
	}

	for _, signal := range correctionStyleSignals {
		if containsAny(text, signal.phrases) {
			preferences.ResponseStyle.StyleType = signal.style
			preferences.ResponseStyle.Confidence = correctionConfidence(preferences.ResponseStyle.Confidence)
			break
		}
	}
	for _, signal := range correctionToneSignals {
		if containsAny(text, signal.phrases) {
			preferences.ResponseStyle.Tone = signal.tone
			break
		}
	}

	if containsAny(text, communicationSignals["step_by_step"]) {
		preferences.CommunicationPreferences.PrefersStepByStep = true
		preferences.CommunicationPreferences.Confidence = correctionConfidence(preferences.CommunicationPreferences.Confidence)
	}
	if containsAny(text, communicationSignals["code_examples"]) {
		preferences.CommunicationPreferences.PrefersCodeExamples = true
		preferences.CommunicationPreferences.Confidence = correctionConfidence(preferences.CommunicationPreferences.Confidence)
	}
	if containsAny(text, communicationSignals["bullet_points"]) {
		preferences.CommunicationPreferences.PrefersBulletPoints = true
		preferences.CommunicationPreferences.Confidence = correctionConfidence(preferences.CommunicationPreferences.Confidence)
	}
}

// ProcessCorrectionFeedback learns from a corrected response. Analysis or
// persistence failures degrade to a no-op; the profile stays retrievable.
func (e *Engine) ProcessCorrectionFeedback(ctx context.Context, userID, originalResponse, correctedResponse, feedbackText string) {
	preferences := e.GetPreferences(ctx, userID)

	diff := analyzeCorrectionDiff(originalResponse, correctedResponse)
	changed := false

	if diff.LengthChange < 0 {
		preferences.ResponseStyle.StyleType = store.ResponseStyleConcise
		preferences.ResponseStyle.PreferredLength = store.LengthShort
		preferences.ResponseStyle.Confidence = correctionConfidence(preferences.ResponseStyle.Confidence)
		changed = true
	} else if diff.LengthChange > 0 {
		preferences.ResponseStyle.StyleType = store.ResponseStyleDetailed
		preferences.ResponseStyle.PreferredLength = store.LengthLong
		preferences.ResponseStyle.Confidence = correctionConfidence(preferences.ResponseStyle.Confidence)
		changed = true
	}
	if diff.PrefersNumberedLists {
		preferences.CommunicationPreferences.PrefersStepByStep = true
		preferences.CommunicationPreferences.Confidence = store.Clamp(preferences.CommunicationPreferences.Confidence + correctionStep*2)
		changed = true
	}
	if diff.PrefersBulletPoints {
		preferences.CommunicationPreferences.PrefersBulletPoints = true
		preferences.CommunicationPreferences.Confidence = store.Clamp(preferences.CommunicationPreferences.Confidence + correctionStep*2)
		changed = true
	}
	if diff.PolitenessAdded {
		preferences.ResponseStyle.Tone = store.ToneFriendly
		preferences.ResponseStyle.Confidence = correctionConfidence(preferences.ResponseStyle.Confidence)
		changed = true
	}
	if feedbackText != "" {
		e.processFeedbackText(preferences, feedbackText)
		changed = true
	}

	if !changed {
		return
	}
	preferences.LastUpdated = time.Now().UTC()
	e.put(preferences)
	e.persist(ctx, preferences)
}

// LearnFromInteraction extracts weak passive signal from a single exchange.
// A single turn may not move confidence at all. Errors are absorbed; this is
// a best-effort enrichment path.
func (e *Engine) LearnFromInteraction(ctx context.Context, userID, userMessage, assistantResponse string, feedback *store.UserFeedback) {
	conversation := store.NewConversation(userID)
	conversation.AddMessage(store.NewMessage(store.MessageRoleUser, userMessage))
	conversation.AddMessage(store.NewMessage(store.MessageRoleAssistant, assistantResponse))

	existing := e.GetPreferences(ctx, userID)
	fresh := e.analyzer.AnalyzeResponseStyle([]*store.Conversation{conversation})

	// A single occurrence is weak evidence. Only adopt a style change when
	// there is no established profile to displace.
	if fresh.Confidence > 0 && existing.ResponseStyle.Confidence < activationThreshold {
		existing.ResponseStyle.StyleType = fresh.StyleType
		existing.ResponseStyle.Confidence = store.Clamp(existing.ResponseStyle.Confidence + correctionStep/2)
	}
	for _, topic := range e.analyzer.ExtractTopics([]*store.Conversation{conversation}) {
		existing.AddOrUpdateTopicInterest(topic.Topic, topic.InterestLevel, topic.ContextKeywords)
	}

	if feedback != nil {
		if err := e.UpdatePreferences(ctx, userID, feedback); err != nil {
			slog.Warn("failed to apply interaction feedback", "user_id", userID, "error", err)
		}
		return
	}

	existing.LastUpdated = time.Now().UTC()
	e.put(existing)
	e.persist(ctx, existing)
}

// Insights is a read-only analytics view over a preference profile.
type Insights struct {
	UserID           string                `json:"user_id"`
	LearningEnabled  bool                  `json:"learning_enabled"`
	ConfidenceScores map[string]float64    `json:"confidence_scores"`
	Summary          string                `json:"preferences_summary"`
	TopTopics        []store.TopicInterest `json:"top_topics"`
}

// GetPreferenceInsights summarizes the current profile.
func (e *Engine) GetPreferenceInsights(ctx context.Context, userID string) *Insights {
	preferences := e.GetPreferences(ctx, userID)
	summary := string(preferences.ResponseStyle.StyleType) + " style, " + string(preferences.ResponseStyle.Tone) + " tone"
	return &Insights{
		UserID:          userID,
		LearningEnabled: preferences.LearningEnabled,
		ConfidenceScores: map[string]float64{
			"response_style": preferences.ResponseStyle.Confidence,
			"communication":  preferences.CommunicationPreferences.Confidence,
		},
		Summary:   summary,
		TopTopics: preferences.TopInterests(5),
	}
}

// ResetPreferences restores a fresh default profile, overwriting everything.
func (e *Engine) ResetPreferences(ctx context.Context, userID string) error {
	preferences := store.DefaultUserPreferences(userID)
	e.put(preferences)
	if e.store != nil {
		if _, err := e.store.UpsertUserPreferences(ctx, preferences); err != nil {
			return errors.Wrap(err, "failed to persist reset preferences")
		}
	}
	return nil
}

// ExportPreferences serializes the profile to JSON.
func (e *Engine) ExportPreferences(ctx context.Context, userID string) ([]byte, error) {
	preferences := e.GetPreferences(ctx, userID)
	data, err := json.Marshal(preferences)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export preferences")
	}
	return data, nil
}

// ImportPreferences replaces the profile with a previously exported one. The
// caller's userID is authoritative over any user_id inside the payload.
func (e *Engine) ImportPreferences(ctx context.Context, userID string, data []byte) error {
	preferences := &store.UserPreferences{}
	if err := json.Unmarshal(data, preferences); err != nil {
		return errors.Wrap(err, "failed to import preferences")
	}
	preferences.UserID = userID
	preferences.LastUpdated = time.Now().UTC()

	e.put(preferences)
	if e.store != nil {
		if _, err := e.store.UpsertUserPreferences(ctx, preferences); err != nil {
			return errors.Wrap(err, "failed to persist imported preferences")
		}
	}
	return nil
}

// ClearCache drops every cached profile.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = map[string]*store.UserPreferences{}
}

// CacheSize returns the number of cached profiles.
func (e *Engine) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func (e *Engine) put(preferences *store.UserPreferences) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[preferences.UserID] = preferences
}

// persist writes through to the store on the best-effort paths.
func (e *Engine) persist(ctx context.Context, preferences *store.UserPreferences) {
	if e.store == nil {
		return
	}
	if _, err := e.store.UpsertUserPreferences(ctx, preferences); err != nil {
		slog.Warn("failed to persist preferences", "user_id", preferences.UserID, "error", err)
	}
}

// correctionConfidence lifts confidence to the correction floor and then
// accumulates. Repeated consistent corrections grow confidence monotonically.
func correctionConfidence(current float64) float64 {
	if current < correctionFloor {
		current = correctionFloor
	}
	return store.Clamp(current + correctionStep)
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
