package apiv1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recallhq/recall/store"
)

// CreateFeedbackRequest is the payload for recording feedback on a response.
type CreateFeedbackRequest struct {
	MessageID    string         `json:"message_id,omitempty"`
	FeedbackType string         `json:"feedback_type"`
	Rating       *int           `json:"rating,omitempty"`
	FeedbackText string         `json:"feedback_text,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// CreateFeedback folds user feedback into the preference profile.
// POST /api/v1/users/:userID/feedback
func (s *APIV1Service) CreateFeedback(c echo.Context) error {
	userID := c.Param("userID")
	var req CreateFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	feedbackType := store.FeedbackType(req.FeedbackType)
	switch feedbackType {
	case store.FeedbackPositive, store.FeedbackNegative, store.FeedbackCorrection, store.FeedbackPreference:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown feedback type: "+req.FeedbackType)
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}

	err := s.Memory.ProcessFeedback(c.Request().Context(), &store.UserFeedback{
		UserID:       userID,
		MessageID:    req.MessageID,
		FeedbackType: feedbackType,
		Rating:       req.Rating,
		FeedbackText: req.FeedbackText,
		Context:      req.Context,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process feedback")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetPreferences returns the user's learned preference profile.
// GET /api/v1/users/:userID/preferences
func (s *APIV1Service) GetPreferences(c echo.Context) error {
	userID := c.Param("userID")
	return c.JSON(http.StatusOK, s.Memory.Preferences().GetPreferences(c.Request().Context(), userID))
}

// GetPreferenceInsights summarizes what has been learned about the user.
// GET /api/v1/users/:userID/preferences/insights
func (s *APIV1Service) GetPreferenceInsights(c echo.Context) error {
	userID := c.Param("userID")
	return c.JSON(http.StatusOK, s.Memory.Preferences().GetPreferenceInsights(c.Request().Context(), userID))
}

// ApplyPreferencesRequest carries a draft response to personalize.
type ApplyPreferencesRequest struct {
	Response string `json:"response"`
}

// ApplyPreferencesResponse returns the personalized response text.
type ApplyPreferencesResponse struct {
	Response string `json:"response"`
}

// ApplyPreferences rewrites a response according to learned preferences.
// POST /api/v1/users/:userID/preferences/apply
func (s *APIV1Service) ApplyPreferences(c echo.Context) error {
	userID := c.Param("userID")
	var req ApplyPreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Response == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "response text is required")
	}
	return c.JSON(http.StatusOK, ApplyPreferencesResponse{
		Response: s.Memory.ApplyPreferences(c.Request().Context(), userID, req.Response),
	})
}

// ResetPreferences discards everything learned about the user.
// DELETE /api/v1/users/:userID/preferences
func (s *APIV1Service) ResetPreferences(c echo.Context) error {
	userID := c.Param("userID")
	if err := s.Memory.Preferences().ResetPreferences(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reset preferences")
	}
	return c.NoContent(http.StatusNoContent)
}
