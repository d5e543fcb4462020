// Package retention runs the periodic retention sweep.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/recallhq/recall/server/service/retention"
	"github.com/recallhq/recall/store"
)

type Runner struct {
	store    *store.Store
	service  *retention.Service
	interval time.Duration
}

func NewRunner(st *store.Store) *Runner {
	return &Runner{
		store:    st,
		service:  retention.NewService(st),
		interval: st.Profile().RetentionSweepInterval,
	}
}

// Run starts the background sweep loop.
func (r *Runner) Run(ctx context.Context) {
	// Sweep once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("retention runner stopped")
			return
		}
	}
}

// RunOnce performs a single sweep (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	report, err := r.service.CleanupExpiredData(ctx)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	if len(report.Errors) > 0 {
		slog.Warn("retention sweep finished with errors", "errors", len(report.Errors))
	}
}
