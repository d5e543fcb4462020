// Package apiv1 exposes the memory service over a JSON HTTP API.
package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/plugin/ai"
	"github.com/recallhq/recall/server/internal/observability"
	"github.com/recallhq/recall/server/middleware"
	"github.com/recallhq/recall/server/service/integrity"
	"github.com/recallhq/recall/server/service/memory"
	"github.com/recallhq/recall/server/stats"
	"github.com/recallhq/recall/store"
)

// APIV1Service wires HTTP routes to the memory service.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Memory    *memory.Service
	Stats     *stats.Collector
	Integrity *integrity.Service

	rateLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the v1 API surface. provider may be nil.
func NewAPIV1Service(p *profile.Profile, st *store.Store, provider *ai.Provider) *APIV1Service {
	return &APIV1Service{
		Profile:     p,
		Store:       st,
		Memory:      memory.NewService(st, provider),
		Stats:       stats.NewCollector(st),
		Integrity:   integrity.NewService(st),
		rateLimiter: middleware.NewRateLimiter(10, 20),
	}
}

// RegisterRoutes mounts all v1 routes on the echo server.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.GetHealth)

	g := e.Group("/api/v1", s.rateLimiter.Middleware())

	g.POST("/users/:userID/conversations", s.CreateConversation)
	g.GET("/users/:userID/conversations", s.ListConversations)
	g.GET("/users/:userID/context", s.GetContext)
	g.POST("/users/:userID/search", s.SearchHistory)

	g.POST("/users/:userID/feedback", s.CreateFeedback)
	g.GET("/users/:userID/preferences", s.GetPreferences)
	g.GET("/users/:userID/preferences/insights", s.GetPreferenceInsights)
	g.POST("/users/:userID/preferences/apply", s.ApplyPreferences)
	g.DELETE("/users/:userID/preferences", s.ResetPreferences)

	g.GET("/users/:userID/privacy", s.GetPrivacySettings)
	g.PUT("/users/:userID/privacy", s.UpdatePrivacySettings)
	g.DELETE("/users/:userID/data", s.DeleteUserData)
	g.GET("/users/:userID/export", s.ExportUserData)
	g.POST("/users/:userID/anonymize", s.AnonymizeData)

	g.GET("/users/:userID/retention", s.GetRetentionStatus)
	g.GET("/users/:userID/integrity", s.VerifyIntegrity)
	g.POST("/retention/sweep", s.RunRetentionSweep)

	g.GET("/stats", s.GetStats)
	g.GET("/metrics", s.GetMetrics)
}

// GetStats returns aggregate usage statistics.
// GET /api/v1/stats
func (s *APIV1Service) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Stats.GetStats())
}

// GetMetrics returns per-operation request metrics.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}

// GetHealth reports per-component health.
// GET /healthz
func (s *APIV1Service) GetHealth(c echo.Context) error {
	health := s.Memory.HealthCheck(c.Request().Context())
	status := http.StatusOK
	for _, state := range health {
		if state != "healthy" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	return c.JSON(status, health)
}
