package preference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st := store.New(teststore.New(), &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewEngine(st)
}

func intPtr(v int) *int {
	return &v
}

func TestAnalyzeUserPreferencesComprehensive(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	conversations := []*store.Conversation{
		newTestConversation(t,
			"Please give me a detailed explanation step by step",
			"I appreciate your help, walk me through the code step by step",
			"Can you show me the programming process step by step with examples?",
			"Show me sample code and demonstrate each step",
		),
	}

	preferences := engine.AnalyzeUserPreferences(ctx, "test_user", conversations)

	assert.Equal(t, "test_user", preferences.UserID)
	assert.Equal(t, store.ResponseStyleDetailed, preferences.ResponseStyle.StyleType)
	assert.Equal(t, store.ToneFriendly, preferences.ResponseStyle.Tone)
	assert.Greater(t, preferences.ResponseStyle.Confidence, 0.5)
	assert.True(t, preferences.CommunicationPreferences.PrefersStepByStep)
	assert.True(t, preferences.CommunicationPreferences.PrefersCodeExamples)
	assert.NotEmpty(t, preferences.TopicInterests)
	assert.True(t, preferences.LearningEnabled)
}

func TestGetPreferencesUnknownUser(t *testing.T) {
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(context.Background(), "unknown_user")
	assert.Equal(t, "unknown_user", preferences.UserID)
	assert.Zero(t, preferences.ResponseStyle.Confidence)
	assert.Equal(t, 1, engine.CacheSize())
}

func TestUpdatePreferencesPositiveFeedback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "test_user")
	preferences.ResponseStyle.Confidence = 0.5

	err := engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		MessageID:    "msg_123",
		FeedbackType: store.FeedbackPositive,
		Rating:       intPtr(5),
	})
	require.NoError(t, err)

	updated := engine.GetPreferences(ctx, "test_user")
	assert.Greater(t, updated.ResponseStyle.Confidence, 0.5)
}

func TestUpdatePreferencesNegativeFeedback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "test_user")
	preferences.ResponseStyle.Confidence = 0.8

	err := engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		MessageID:    "msg_123",
		FeedbackType: store.FeedbackNegative,
		Rating:       intPtr(1),
	})
	require.NoError(t, err)

	assert.Less(t, engine.GetPreferences(ctx, "test_user").ResponseStyle.Confidence, 0.8)
}

func TestUpdatePreferencesHighRatingOverridesNegativeType(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "test_user")
	preferences.ResponseStyle.Confidence = 0.5

	// A rating of 4 or more wins over the stated type.
	err := engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		MessageID:    "msg_123",
		FeedbackType: store.FeedbackNegative,
		Rating:       intPtr(4),
	})
	require.NoError(t, err)

	assert.Greater(t, engine.GetPreferences(ctx, "test_user").ResponseStyle.Confidence, 0.5)
}

func TestUpdatePreferencesCorrectionFeedback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	err := engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		MessageID:    "msg_123",
		FeedbackType: store.FeedbackCorrection,
		FeedbackText: "Please make your responses shorter and more concise",
	})
	require.NoError(t, err)

	updated := engine.GetPreferences(ctx, "test_user")
	assert.Equal(t, store.ResponseStyleConcise, updated.ResponseStyle.StyleType)
	assert.Greater(t, updated.ResponseStyle.Confidence, 0.5)
}

func TestConfidenceStaysClampedAfterManyUpdates(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	for i := 0; i < 50; i++ {
		require.NoError(t, engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
			UserID:       "test_user",
			FeedbackType: store.FeedbackPositive,
		}))
	}
	preferences := engine.GetPreferences(ctx, "test_user")
	assert.LessOrEqual(t, preferences.ResponseStyle.Confidence, 1.0)

	for i := 0; i < 50; i++ {
		require.NoError(t, engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
			UserID:       "test_user",
			FeedbackType: store.FeedbackNegative,
		}))
	}
	preferences = engine.GetPreferences(ctx, "test_user")
	assert.GreaterOrEqual(t, preferences.ResponseStyle.Confidence, 0.0)
}

func TestProcessCorrectionFeedbackShorter(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.ProcessCorrectionFeedback(ctx, "test_user",
		"This is a very long and detailed response that contains a lot of information and explanations that might be unnecessary for the user's needs.",
		"This is a concise response.",
		"Too verbose, please be more concise",
	)

	preferences := engine.GetPreferences(ctx, "test_user")
	assert.Equal(t, store.ResponseStyleConcise, preferences.ResponseStyle.StyleType)
	assert.Equal(t, store.LengthShort, preferences.ResponseStyle.PreferredLength)
	assert.Greater(t, preferences.ResponseStyle.Confidence, 0.5)
}

func TestProcessCorrectionFeedbackLonger(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.ProcessCorrectionFeedback(ctx, "test_user",
		"Short response.",
		"This is a much more detailed and comprehensive response that provides extensive explanations and examples to help the user understand the topic better.",
		"Please provide more detail and elaborate on the topic",
	)

	preferences := engine.GetPreferences(ctx, "test_user")
	assert.Equal(t, store.ResponseStyleDetailed, preferences.ResponseStyle.StyleType)
	assert.Equal(t, store.LengthLong, preferences.ResponseStyle.PreferredLength)
	assert.Greater(t, preferences.ResponseStyle.Confidence, 0.5)
}

func TestProcessCorrectionFeedbackFormatting(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.ProcessCorrectionFeedback(ctx, "test_user",
		"First do this, then do that, finally complete the task.",
		"1. Do this\n2. Do that\n3. Complete the task",
		"",
	)

	preferences := engine.GetPreferences(ctx, "test_user")
	assert.True(t, preferences.CommunicationPreferences.PrefersStepByStep)
	assert.GreaterOrEqual(t, preferences.CommunicationPreferences.Confidence, 0.2)
}

func TestProcessCorrectionFeedbackToneShift(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.ProcessCorrectionFeedback(ctx, "test_user",
		"You need to do this.",
		"I hope this helps! Please try doing this, and thank you for your question.",
		"",
	)

	preferences := engine.GetPreferences(ctx, "test_user")
	assert.Equal(t, store.ToneFriendly, preferences.ResponseStyle.Tone)
	assert.GreaterOrEqual(t, preferences.ResponseStyle.Confidence, 0.5)
}

func TestMultipleCorrectionsAccumulate(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.ProcessCorrectionFeedback(ctx, "test_user", "Long response here", "Short.", "Too long")
	first := engine.GetPreferences(ctx, "test_user").ResponseStyle.Confidence

	engine.ProcessCorrectionFeedback(ctx, "test_user", "Another long response", "Brief.", "Still too verbose")
	second := engine.GetPreferences(ctx, "test_user").ResponseStyle.Confidence

	assert.Greater(t, second, first)
	assert.Equal(t, store.ResponseStyleConcise, engine.GetPreferences(ctx, "test_user").ResponseStyle.StyleType)
}

func TestCorrectionTonePrecedence(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	// Casual and friendly markers win over the formal markers they complain
	// about.
	require.NoError(t, engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		FeedbackType: store.FeedbackCorrection,
		FeedbackText: "Too formal, please be more casual and friendly",
	}))
	assert.Equal(t, store.ToneFriendly, engine.GetPreferences(ctx, "test_user").ResponseStyle.Tone)

	require.NoError(t, engine.UpdatePreferences(ctx, "other_user", &store.UserFeedback{
		UserID:       "other_user",
		FeedbackType: store.FeedbackCorrection,
		FeedbackText: "Please use more professional language",
	}))
	assert.Equal(t, store.ToneProfessional, engine.GetPreferences(ctx, "other_user").ResponseStyle.Tone)
}

func TestResetPreferences(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "test_user")
	preferences.ResponseStyle.StyleType = store.ResponseStyleTechnical
	preferences.ResponseStyle.Confidence = 0.9

	require.NoError(t, engine.ResetPreferences(ctx, "test_user"))

	reset := engine.GetPreferences(ctx, "test_user")
	assert.Equal(t, store.ResponseStyleConversational, reset.ResponseStyle.StyleType)
	assert.Zero(t, reset.ResponseStyle.Confidence)
	assert.Zero(t, reset.CommunicationPreferences.Confidence)
	assert.Empty(t, reset.TopicInterests)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "source_user")
	preferences.ResponseStyle.StyleType = store.ResponseStyleTechnical
	preferences.ResponseStyle.Tone = store.ToneProfessional
	preferences.ResponseStyle.Confidence = 0.8
	preferences.CommunicationPreferences.PrefersStepByStep = true
	preferences.CommunicationPreferences.PrefersCodeExamples = true
	preferences.CommunicationPreferences.Confidence = 0.7

	data, err := engine.ExportPreferences(ctx, "source_user")
	require.NoError(t, err)

	require.NoError(t, engine.ImportPreferences(ctx, "target_user", data))

	imported := engine.GetPreferences(ctx, "target_user")
	assert.Equal(t, "target_user", imported.UserID)
	assert.Equal(t, store.ResponseStyleTechnical, imported.ResponseStyle.StyleType)
	assert.Equal(t, store.ToneProfessional, imported.ResponseStyle.Tone)
	assert.True(t, imported.CommunicationPreferences.PrefersStepByStep)
	assert.True(t, imported.CommunicationPreferences.PrefersCodeExamples)
	assert.InDelta(t, 0.7, imported.CommunicationPreferences.Confidence, 1e-9)
}

func TestGetPreferenceInsights(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	preferences := engine.GetPreferences(ctx, "test_user")
	preferences.ResponseStyle.Confidence = 0.8
	preferences.CommunicationPreferences.Confidence = 0.7

	insights := engine.GetPreferenceInsights(ctx, "test_user")
	assert.Equal(t, "test_user", insights.UserID)
	assert.True(t, insights.LearningEnabled)
	assert.InDelta(t, 0.8, insights.ConfidenceScores["response_style"], 1e-9)
	assert.InDelta(t, 0.7, insights.ConfidenceScores["communication"], 1e-9)
	assert.NotEmpty(t, insights.Summary)
}

func TestLearnFromInteraction(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.LearnFromInteraction(ctx, "new_user",
		"I need a brief explanation of Python functions",
		"Python functions are reusable blocks of code...",
		nil,
	)

	preferences := engine.GetPreferences(ctx, "new_user")
	assert.Equal(t, "new_user", preferences.UserID)
}

func TestLearnFromInteractionWithFeedback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	engine.LearnFromInteraction(ctx, "test_user",
		"Great explanation, thanks!",
		"You're welcome!",
		&store.UserFeedback{
			UserID:       "test_user",
			MessageID:    "msg_123",
			FeedbackType: store.FeedbackPositive,
			Rating:       intPtr(5),
		},
	)

	preferences := engine.GetPreferences(ctx, "test_user")
	assert.Greater(t, preferences.ResponseStyle.Confidence, 0.0)
}

func TestClearCache(t *testing.T) {
	engine := newTestEngine(t)
	engine.GetPreferences(context.Background(), "user1")
	engine.GetPreferences(context.Background(), "user2")
	assert.Equal(t, 2, engine.CacheSize())

	engine.ClearCache()
	assert.Zero(t, engine.CacheSize())
}

func TestUpdatePreferencesPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	driver := teststore.New()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() { _ = st.Close() })
	engine := NewEngine(st)

	engine.GetPreferences(ctx, "test_user")
	driver.FailNext = assert.AnError

	err := engine.UpdatePreferences(ctx, "test_user", &store.UserFeedback{
		UserID:       "test_user",
		FeedbackType: store.FeedbackPositive,
	})
	assert.Error(t, err)
}
