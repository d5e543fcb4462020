package store

import "time"

// FeedbackType enumerates the kinds of feedback a user can give on a
// response.
type FeedbackType string

const (
	FeedbackPositive   FeedbackType = "positive"
	FeedbackNegative   FeedbackType = "negative"
	FeedbackCorrection FeedbackType = "correction"
	FeedbackPreference FeedbackType = "preference"
)

// UserFeedback is a single piece of feedback on an assistant response.
type UserFeedback struct {
	UserID       string         `json:"user_id"`
	MessageID    string         `json:"message_id"`
	FeedbackType FeedbackType   `json:"feedback_type"`
	Rating       *int           `json:"rating,omitempty"` // 1..5
	FeedbackText string         `json:"feedback_text,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// IsPositive reports whether the feedback should be treated as positive.
// A high rating overrides the stated type when both are present.
func (f *UserFeedback) IsPositive() bool {
	if f.FeedbackType == FeedbackPositive {
		return true
	}
	return f.Rating != nil && *f.Rating >= 4
}

// IsCorrection reports whether the feedback carries a correction.
func (f *UserFeedback) IsCorrection() bool {
	return f.FeedbackType == FeedbackCorrection
}
