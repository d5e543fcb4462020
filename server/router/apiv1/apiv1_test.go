package apiv1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/server/service/integrity"
	"github.com/recallhq/recall/store"
	"github.com/recallhq/recall/store/teststore"
)

func newTestAPI(t *testing.T) (*echo.Echo, *APIV1Service, *store.Store) {
	t.Helper()
	st := store.New(teststore.New(), &profile.Profile{Mode: "dev", Driver: "sqlite"})
	t.Cleanup(func() {
		_ = st.Close()
	})
	svc := NewAPIV1Service(st.Profile(), st, nil)
	e := echo.New()
	svc.RegisterRoutes(e)
	return e, svc, st
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetHealth(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.NotEmpty(t, health)
	for component, state := range health {
		assert.Equal(t, "healthy", state, component)
	}
}

func TestCreateConversationHandler(t *testing.T) {
	e, _, st := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations",
		`{"messages":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}],"tags":["greeting"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "user-1", created.UserID)
	assert.Len(t, created.Messages, 2)
	assert.Equal(t, 2, created.Metadata.TotalMessages)

	userID := "user-1"
	conversations, err := st.ListConversations(t.Context(), &store.FindConversation{UserID: &userID})
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestCreateConversationRejectsBadRole(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations",
		`{"messages":[{"role":"moderator","content":"hello"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConversationRequiresMessages(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHistoryHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations",
		`{"messages":[{"role":"user","content":"how do I deploy kubernetes"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/users/user-1/search", `{"keywords":["kubernetes"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 1)

	// Other users never see these results.
	rec = doJSON(e, http.MethodPost, "/api/v1/users/user-2/search", `{"keywords":["kubernetes"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Empty(t, results)
}

func TestDeleteUserDataRequiresConfirmation(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodDelete, "/api/v1/users/user-1/data", `{"scope":"all_data"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/api/v1/users/user-1/data",
		`{"scope":"all_data","confirm_deletion":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdatePrivacySettingsHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPut, "/api/v1/users/user-1/privacy",
		`{"privacy_mode":"limited_memory","data_retention_policy":"30_days","allow_preference_learning":true,"allow_search_indexing":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings store.PrivacySettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, store.PrivacyModeLimitedMemory, settings.PrivacyMode)
	assert.Equal(t, store.Retention30Days, settings.RetentionPolicy)

	rec = doJSON(e, http.MethodPut, "/api/v1/users/user-1/privacy",
		`{"privacy_mode":"telepathy","data_retention_policy":"30_days"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportUserDataHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations",
		`{"messages":[{"role":"user","content":"remember this"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/users/user-1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var export store.UserDataExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, "user-1", export.UserID)
	assert.Equal(t, 1, export.Metadata.TotalConversations)

	rec = doJSON(e, http.MethodGet, "/api/v1/users/user-1/export?format=package", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var files map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Contains(t, files, "user_data.json")
	assert.Contains(t, files, "conversations.csv")
	assert.Contains(t, files, "export_summary.json")
}

func TestVerifyIntegrityHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/conversations",
		`{"messages":[{"role":"user","content":"keep this intact"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/users/user-1/integrity", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report integrity.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "user-1", report.UserID)
	assert.Equal(t, 1, report.ScannedConversations)
	assert.True(t, report.Intact())
}

func TestCreateFeedbackHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/user-1/feedback",
		`{"feedback_type":"positive","rating":5}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/users/user-1/feedback",
		`{"feedback_type":"shrug"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/users/user-1/feedback",
		`{"feedback_type":"positive","rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStatsHandler(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var s map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Contains(t, s, "total_conversations")
}

func TestRateLimiterRejectsFloods(t *testing.T) {
	e, _, _ := newTestAPI(t)

	limited := false
	for i := 0; i < 50; i++ {
		rec := doJSON(e, http.MethodGet, "/api/v1/users/flood-user/privacy", "")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
