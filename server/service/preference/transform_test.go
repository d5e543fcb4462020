package preference

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recallhq/recall/store"
)

func engineWithPreferences(t *testing.T, preferences *store.UserPreferences) *Engine {
	t.Helper()
	engine := newTestEngine(t)
	engine.put(preferences)
	return engine
}

func styledPreferences(style store.ResponseStyleType, tone store.CommunicationTone) *store.UserPreferences {
	preferences := store.DefaultUserPreferences("test_user")
	preferences.ResponseStyle.StyleType = style
	preferences.ResponseStyle.Tone = tone
	preferences.ResponseStyle.Confidence = 0.8
	return preferences
}

func TestApplyPreferencesNoProfile(t *testing.T) {
	engine := newTestEngine(t)
	response := "This is a test response."
	assert.Equal(t, response, engine.ApplyPreferences(context.Background(), "unknown_user", response))
}

func TestApplyPreferencesLearningDisabled(t *testing.T) {
	preferences := styledPreferences(store.ResponseStyleConcise, store.ToneFriendly)
	preferences.LearningEnabled = false
	engine := engineWithPreferences(t, preferences)

	response := "As I mentioned before, this is a test response."
	assert.Equal(t, response, engine.ApplyPreferences(context.Background(), "test_user", response))
}

func TestApplyPreferencesLowConfidence(t *testing.T) {
	preferences := styledPreferences(store.ResponseStyleConcise, store.ToneFriendly)
	preferences.ResponseStyle.Confidence = 0.1
	preferences.CommunicationPreferences.Confidence = 0.1
	engine := engineWithPreferences(t, preferences)

	response := "As I mentioned before, this is a test response."
	assert.Equal(t, response, engine.ApplyPreferences(context.Background(), "test_user", response))
}

func TestApplyConciseStyle(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConcise, store.ToneHelpful))

	response := "As I mentioned before, this is a very long response that contains redundant information. It should be noted that this response is unnecessarily verbose."
	result := engine.ApplyPreferences(context.Background(), "test_user", response)

	assert.Less(t, len(result), len(response))
	assert.NotContains(t, result, "As I mentioned before,")
	assert.NotContains(t, result, "It should be noted that")
}

func TestApplyDetailedStyle(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleDetailed, store.ToneHelpful))

	response := "This is a short response."
	result := engine.ApplyPreferences(context.Background(), "test_user", response)

	assert.Greater(t, len(result), len(response))
	assert.Contains(t, result, "Would you like me to elaborate")
}

func TestApplyTechnicalStyle(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleTechnical, store.ToneHelpful))

	result := engine.ApplyPreferences(context.Background(), "test_user", "This system works by using a simple method.")
	assert.Contains(t, result, "algorithmically implements")
}

func TestApplyCasualStyle(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleCasual, store.ToneHelpful))

	result := engine.ApplyPreferences(context.Background(), "test_user",
		"You need to utilize the functionality to implement the algorithm with these parameters.")

	assert.Contains(t, result, "use")
	assert.Contains(t, result, "feature")
	assert.Contains(t, result, "settings")
	assert.NotContains(t, result, "utilize")
}

func TestApplyFriendlyTone(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConversational, store.ToneFriendly))

	result := engine.ApplyPreferences(context.Background(), "test_user", "Here is the information you requested.")
	assert.Contains(t, strings.ToLower(result), "hope this helps")
}

func TestApplyProfessionalTone(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConversational, store.ToneProfessional))

	result := engine.ApplyPreferences(context.Background(), "test_user", "Hey there! Thanks! No problem with helping you.")

	assert.NotContains(t, result, "Hey")
	assert.Contains(t, result, "Hello")
	assert.Contains(t, result, "Thank you.")
}

func TestApplyDirectTone(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConversational, store.ToneDirect))

	result := engine.ApplyPreferences(context.Background(), "test_user",
		"I think you might want to consider perhaps trying this approach.")

	assert.NotContains(t, result, "I think")
	assert.NotContains(t, result, "might want to")
	assert.NotContains(t, result, "perhaps")
}

func TestApplyEncouragingTone(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConversational, store.ToneEncouraging))

	result := engine.ApplyPreferences(context.Background(), "test_user", "Here is how to solve this problem.")
	assert.True(t, strings.Contains(result, "Great question!") || strings.Contains(result, "You're on the right track!"))
}

func TestApplyStepByStepFormatting(t *testing.T) {
	preferences := store.DefaultUserPreferences("test_user")
	preferences.CommunicationPreferences.PrefersStepByStep = true
	preferences.CommunicationPreferences.Confidence = 0.8
	engine := engineWithPreferences(t, preferences)

	result := engine.ApplyPreferences(context.Background(), "test_user",
		"First, you need to set up the environment. Then, install the dependencies. Finally, run the application.")

	assert.Contains(t, result, "1.")
	assert.Contains(t, result, "2.")
	assert.Contains(t, result, "3.")
}

func TestApplyBulletPointFormatting(t *testing.T) {
	preferences := store.DefaultUserPreferences("test_user")
	preferences.CommunicationPreferences.PrefersBulletPoints = true
	preferences.CommunicationPreferences.Confidence = 0.8
	engine := engineWithPreferences(t, preferences)

	result := engine.ApplyPreferences(context.Background(), "test_user", "1. First item\n2. Second item\n3. Third item")

	assert.Contains(t, result, "•")
	assert.NotContains(t, result, "1.")
}

func TestApplyCodeExamplesFormatting(t *testing.T) {
	preferences := store.DefaultUserPreferences("test_user")
	preferences.CommunicationPreferences.PrefersCodeExamples = true
	preferences.CommunicationPreferences.Confidence = 0.8
	engine := engineWithPreferences(t, preferences)

	result := engine.ApplyPreferences(context.Background(), "test_user", "You can use Python code to solve this.")
	assert.Contains(t, strings.ToLower(result), "example")
}

func TestApplyAnalogiesFormatting(t *testing.T) {
	preferences := store.DefaultUserPreferences("test_user")
	preferences.CommunicationPreferences.PrefersAnalogies = true
	preferences.CommunicationPreferences.Confidence = 0.8
	engine := engineWithPreferences(t, preferences)

	result := engine.ApplyPreferences(context.Background(), "test_user", "This is a complex process.")
	assert.Contains(t, strings.ToLower(result), "think of it")
}

func TestLengthAdjustmentShort(t *testing.T) {
	preferences := styledPreferences(store.ResponseStyleConversational, store.ToneHelpful)
	preferences.ResponseStyle.PreferredLength = store.LengthShort
	engine := engineWithPreferences(t, preferences)

	longResponse := strings.Repeat("This is a very long response. ", 20)
	result := engine.ApplyPreferences(context.Background(), "test_user", longResponse)
	assert.Less(t, len(result), len(longResponse))
}

func TestLengthAdjustmentLong(t *testing.T) {
	preferences := styledPreferences(store.ResponseStyleConversational, store.ToneHelpful)
	preferences.ResponseStyle.PreferredLength = store.LengthLong
	engine := engineWithPreferences(t, preferences)

	result := engine.ApplyPreferences(context.Background(), "test_user", "Short response.")
	assert.Greater(t, len(result), len("Short response."))
}

func TestApplyMultiplePreferences(t *testing.T) {
	preferences := styledPreferences(store.ResponseStyleDetailed, store.ToneFriendly)
	preferences.CommunicationPreferences.PrefersStepByStep = true
	preferences.CommunicationPreferences.PrefersCodeExamples = true
	preferences.CommunicationPreferences.Confidence = 0.8
	engine := engineWithPreferences(t, preferences)

	response := "First, write the code. Then, test it."
	result := engine.ApplyPreferences(context.Background(), "test_user", response)

	assert.Greater(t, len(result), len(response))
	assert.Contains(t, strings.ToLower(result), "hope")
	assert.Contains(t, result, "1.")
	assert.Contains(t, result, "2.")
	assert.Contains(t, strings.ToLower(result), "example")
}

func TestPreserveOriginalWhenNothingApplies(t *testing.T) {
	engine := engineWithPreferences(t, styledPreferences(store.ResponseStyleConversational, store.ToneHelpful))

	response := "This is a well-formatted response that doesn't need changes."
	assert.Equal(t, response, engine.ApplyPreferences(context.Background(), "test_user", response))
}

func TestAnalyzeCorrectionDiff(t *testing.T) {
	diff := analyzeCorrectionDiff(
		"This works by using a simple method.",
		"1. This functions algorithmically\n2. It implements a sophisticated approach\n• Key benefits include efficiency",
	)

	assert.Greater(t, diff.LengthChange, 0)
	assert.True(t, diff.PrefersNumberedLists)
	assert.True(t, diff.PrefersBulletPoints)
}
