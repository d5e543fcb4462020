package apiv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recallhq/recall/server/service/search"
	"github.com/recallhq/recall/store"
)

// CreateConversationRequest is the payload for storing a conversation.
type CreateConversationRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// CreateConversation stores a new conversation for the user.
// POST /api/v1/users/:userID/conversations
func (s *APIV1Service) CreateConversation(c echo.Context) error {
	userID := c.Param("userID")
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one message is required")
	}

	conversation := store.NewConversation(userID)
	conversation.Summary = req.Summary
	conversation.Tags = req.Tags
	for _, m := range req.Messages {
		role := store.MessageRole(m.Role)
		switch role {
		case store.MessageRoleUser, store.MessageRoleAssistant, store.MessageRoleSystem:
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown message role: "+m.Role)
		}
		conversation.AddMessage(store.NewMessage(role, m.Content))
	}

	stored, err := s.Memory.StoreConversation(c.Request().Context(), userID, conversation)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, stored)
}

// ListConversations returns the user's conversations, newest first.
// GET /api/v1/users/:userID/conversations?limit=&tag=
func (s *APIV1Service) ListConversations(c echo.Context) error {
	userID := c.Param("userID")
	find := &store.FindConversation{UserID: &userID}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		find.Limit = &limit
	}
	if tag := c.QueryParam("tag"); tag != "" {
		find.Tags = []string{tag}
	}

	conversations, err := s.Store.ListConversations(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}
	return c.JSON(http.StatusOK, conversations)
}

// GetContext assembles the conversation context for a user.
// GET /api/v1/users/:userID/context?limit=
func (s *APIV1Service) GetContext(c echo.Context) error {
	userID := c.Param("userID")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	return c.JSON(http.StatusOK, s.Memory.RetrieveContext(c.Request().Context(), userID, limit))
}

// SearchHistoryRequest is the payload for a history search.
type SearchHistoryRequest struct {
	Keywords  []string   `json:"keywords,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Semantic  bool       `json:"semantic_search,omitempty"`
}

// SearchHistory searches the user's conversation history.
// POST /api/v1/users/:userID/search
func (s *APIV1Service) SearchHistory(c echo.Context) error {
	userID := c.Param("userID")
	var req SearchHistoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.Stats.RecordSearch()
	results := s.Memory.SearchHistory(c.Request().Context(), userID, &search.Query{
		Keywords:  req.Keywords,
		Topics:    req.Topics,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Limit:     req.Limit,
		Offset:    req.Offset,
		Semantic:  req.Semantic,
	})
	return c.JSON(http.StatusOK, results)
}
