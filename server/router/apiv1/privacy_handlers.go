package apiv1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/recallhq/recall/server/service/privacy"
	"github.com/recallhq/recall/store"
)

// GetPrivacySettings returns the user's privacy configuration, defaulted
// when the user never changed it.
// GET /api/v1/users/:userID/privacy
func (s *APIV1Service) GetPrivacySettings(c echo.Context) error {
	userID := c.Param("userID")
	settings, err := s.Memory.GetPrivacySettings(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get privacy settings")
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdatePrivacySettingsRequest is the payload for changing privacy settings.
// Omitted fields keep the persisted value's zero default rather than the
// previous value, so clients should send the full settings object.
type UpdatePrivacySettingsRequest struct {
	PrivacyMode             string `json:"privacy_mode"`
	RetentionPolicy         string `json:"data_retention_policy"`
	AllowPreferenceLearning bool   `json:"allow_preference_learning"`
	AllowSearchIndexing     bool   `json:"allow_search_indexing"`
	EncryptSensitiveData    bool   `json:"encrypt_sensitive_data"`
	ShareAnalytics          bool   `json:"share_analytics"`
}

// UpdatePrivacySettings stores new privacy settings and enforces the
// retention policy they carry.
// PUT /api/v1/users/:userID/privacy
func (s *APIV1Service) UpdatePrivacySettings(c echo.Context) error {
	userID := c.Param("userID")
	var req UpdatePrivacySettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	mode := store.PrivacyMode(req.PrivacyMode)
	switch mode {
	case store.PrivacyModeFullMemory, store.PrivacyModeLimitedMemory, store.PrivacyModeNoMemory:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown privacy mode: "+req.PrivacyMode)
	}
	policy := store.RetentionPolicy(req.RetentionPolicy)
	switch policy {
	case store.RetentionSessionOnly, store.Retention30Days, store.Retention90Days,
		store.Retention365Days, store.RetentionIndefinite:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown retention policy: "+req.RetentionPolicy)
	}

	updated, err := s.Memory.UpdatePrivacySettings(c.Request().Context(), &store.PrivacySettings{
		UserID:                  userID,
		PrivacyMode:             mode,
		RetentionPolicy:         policy,
		AllowPreferenceLearning: req.AllowPreferenceLearning,
		AllowSearchIndexing:     req.AllowSearchIndexing,
		EncryptSensitiveData:    req.EncryptSensitiveData,
		ShareAnalytics:          req.ShareAnalytics,
		UpdatedAt:               time.Now().UTC(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update privacy settings")
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteUserData removes user data according to the requested scope. The
// request must carry confirm_deletion or nothing is touched.
// DELETE /api/v1/users/:userID/data
func (s *APIV1Service) DeleteUserData(c echo.Context) error {
	userID := c.Param("userID")
	var options store.DeleteOptions
	if err := c.Bind(&options); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.Memory.DeleteUserData(c.Request().Context(), userID, &options); err != nil {
		if errors.Is(err, privacy.ErrDeletionNotConfirmed) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete user data")
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportUserData returns the full portable snapshot of a user's data. With
// ?format=package the export is returned as named files (JSON plus CSV)
// instead of a single JSON document.
// GET /api/v1/users/:userID/export
func (s *APIV1Service) ExportUserData(c echo.Context) error {
	userID := c.Param("userID")
	ctx := c.Request().Context()

	if c.QueryParam("format") == "package" {
		files, err := s.Memory.Privacy().ExportUserDataPackage(ctx, userID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to export user data")
		}
		payload := make(map[string]string, len(files))
		for name, data := range files {
			payload[name] = string(data)
		}
		return c.JSON(http.StatusOK, payload)
	}

	export, err := s.Memory.ExportUserData(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to export user data")
	}
	return c.JSON(http.StatusOK, export)
}

// AnonymizeDataRequest names the conversations to scrub in place.
type AnonymizeDataRequest struct {
	ConversationIDs []string `json:"conversation_ids"`
}

// AnonymizeData replaces personal identifiers in the named conversations
// with placeholder tokens.
// POST /api/v1/users/:userID/anonymize
func (s *APIV1Service) AnonymizeData(c echo.Context) error {
	userID := c.Param("userID")
	var req AnonymizeDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.ConversationIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_ids is required")
	}

	if err := s.Memory.Privacy().AnonymizeData(c.Request().Context(), userID, req.ConversationIDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to anonymize conversations")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetRetentionStatus reports how the user's retention policy currently
// applies to their stored conversations.
// GET /api/v1/users/:userID/retention
func (s *APIV1Service) GetRetentionStatus(c echo.Context) error {
	userID := c.Param("userID")
	status, err := s.Memory.Retention().GetRetentionStatus(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get retention status")
	}
	return c.JSON(http.StatusOK, status)
}

// VerifyIntegrity scans the user's stored conversations for corruption.
// GET /api/v1/users/:userID/integrity
func (s *APIV1Service) VerifyIntegrity(c echo.Context) error {
	userID := c.Param("userID")
	report, err := s.Integrity.VerifyUserData(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to verify data integrity")
	}
	return c.JSON(http.StatusOK, report)
}

// RunRetentionSweep enforces retention policies for all users immediately
// instead of waiting for the background runner.
// POST /api/v1/retention/sweep
func (s *APIV1Service) RunRetentionSweep(c echo.Context) error {
	report, err := s.Memory.RunRetentionSweep(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to run retention sweep")
	}
	return c.JSON(http.StatusOK, report)
}
