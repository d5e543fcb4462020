package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/plugin/ai"
	"github.com/recallhq/recall/server/internal/observability"
	"github.com/recallhq/recall/server/router/apiv1"
	retentionrunner "github.com/recallhq/recall/server/runner/retention"
	"github.com/recallhq/recall/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer      *echo.Echo
	apiV1Service    *apiv1.APIV1Service
	retentionRunner *retentionrunner.Runner
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, provider *ai.Provider) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())
	echoServer.Use(echomw.CORS())
	echoServer.Use(observability.RequestLogger())
	s.echoServer = echoServer

	s.apiV1Service = apiv1.NewAPIV1Service(profile, store, provider)
	s.apiV1Service.RegisterRoutes(echoServer)

	s.retentionRunner = retentionrunner.NewRunner(store)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	go s.retentionRunner.Run(ctx)
	s.apiV1Service.Stats.Start(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", slog.String("address", address))
	return s.echoServer.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("recall stopped properly")
}
