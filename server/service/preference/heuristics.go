package preference

import "github.com/recallhq/recall/store"

// heuristicsVersion identifies the trigger-phrase table below. Bump it when
// phrases are added or rebalanced so learned profiles can be traced back to
// the table that produced them.
const heuristicsVersion = 2

// Confidence tuning. Passive analysis alone never pushes confidence past
// passiveCeiling; explicit feedback can go all the way to 1.0.
const (
	passiveCeiling      = 0.8
	activationThreshold = 0.3

	positiveFeedbackStep = 0.1
	negativeFeedbackStep = 0.15

	// A correction lifts confidence to at least correctionFloor and then
	// accumulates by correctionStep on each consistent repetition.
	correctionFloor = 0.5
	correctionStep  = 0.1
)

// styleSignals maps response styles to the phrases in user messages that
// signal a preference for them.
var styleSignals = map[store.ResponseStyleType][]string{
	store.ResponseStyleConcise: {
		"brief", "short", "quick", "concise", "just the basics",
		"nothing detailed", "summarize", "summary",
	},
	store.ResponseStyleDetailed: {
		"in detail", "detailed", "comprehensive", "thorough",
		"walk me through", "step by step", "explain", "elaborate",
	},
	store.ResponseStyleTechnical: {
		"technical", "implementation", "algorithm", "architecture",
		"specification", "documentation", "internals",
	},
	store.ResponseStyleCasual: {
		"casually", "in plain words", "simple terms", "layman",
		"eli5", "no jargon",
	},
}

// toneSignals maps tones to the phrases that signal them.
var toneSignals = map[store.CommunicationTone][]string{
	store.ToneFriendly: {
		"thanks", "thank you", "appreciate", "awesome", "fantastic",
		"great", "love it", "wonderful",
	},
	store.ToneProfessional: {
		"professional", "business", "formal", "corporate", "official",
		"enterprise", "industry",
	},
	store.ToneDirect: {
		"just tell me", "get to the point", "no fluff", "straight answer",
	},
	store.ToneEncouraging: {
		"i'm struggling", "i am struggling", "this is hard",
		"motivate", "encourage",
	},
}

// topicSignals groups topic keywords under a topic label. A topic only
// registers once its keywords are seen at least minTopicMentions times
// across the analyzed conversations.
var topicSignals = map[string][]string{
	"programming": {
		"python", "javascript", "code", "coding", "programming",
		"algorithm", "function", "debugging", "software",
		"object-oriented",
	},
	"web development": {
		"react", "frontend", "backend", "api", "html", "css",
		"node.js", "rest", "web",
	},
	"data science": {
		"machine learning", "data", "neural", "deep learning",
		"pandas", "numpy", "statistics", "model",
	},
	"devops": {
		"docker", "kubernetes", "deployment", "ci/cd", "terraform",
		"infrastructure",
	},
}

const minTopicMentions = 2

// communicationSignals maps formatting preferences to their trigger phrases.
var communicationSignals = map[string][]string{
	"step_by_step": {
		"step by step", "one by one", "break this down", "break it down",
		"walk me through", "start to finish", "first,", "step-by-step",
	},
	"code_examples": {
		"example", "sample", "demonstrate", "code snippet", "show me how",
	},
	"analogies": {
		"analogy", "analogies", "similar to", "metaphor", "compare this to",
		"like a",
	},
	"bullet_points": {
		"list", "bullet point", "outline", "key features", "main points",
	},
}

// minCommunicationMentions is how many trigger hits a formatting preference
// needs before it is considered established.
const minCommunicationMentions = 2

// correctionStyleSignals reinterprets free-text correction feedback into a
// style change. Checked in order; first match wins.
var correctionStyleSignals = []struct {
	phrases []string
	style   store.ResponseStyleType
}{
	{[]string{"concise", "shorter", "brief", "too long", "verbose", "too verbose"}, store.ResponseStyleConcise},
	{[]string{"more detail", "elaborate", "detailed", "comprehensive", "expand"}, store.ResponseStyleDetailed},
	{[]string{"technical", "precise terminology"}, store.ResponseStyleTechnical},
}

// correctionToneSignals reinterprets correction feedback into a tone change.
// Casual and friendly markers are checked before professional ones so that
// "too formal, be more casual" resolves to friendly.
var correctionToneSignals = []struct {
	phrases []string
	tone    store.CommunicationTone
}{
	{[]string{"casual", "friendly", "warmer"}, store.ToneFriendly},
	{[]string{"professional", "formal"}, store.ToneProfessional},
	{[]string{"direct", "to the point"}, store.ToneDirect},
}
