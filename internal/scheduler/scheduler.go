package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"fundamentusapi/internal/fundamentus"
)

// Warmer is the part of the cache a refresh job needs.
type Warmer interface {
	Invalidate()
	Get(ctx context.Context) (fundamentus.TickerTable, error)
}

// Refresher reloads the cache on a cron schedule so requests after a tick
// are served from a warm table.
type Refresher struct {
	cron    *cron.Cron
	warmer  Warmer
	timeout time.Duration
}

// New creates a Refresher. timeout bounds each scheduled reload.
func New(warmer Warmer, timeout time.Duration) *Refresher {
	return &Refresher{
		cron:    cron.New(),
		warmer:  warmer,
		timeout: timeout,
	}
}

// Register schedules the refresh job with a standard 5-field cron expression.
func (r *Refresher) Register(expr string) error {
	if _, err := r.cron.AddFunc(expr, r.Refresh); err != nil {
		return fmt.Errorf("register refresh job %q: %w", expr, err)
	}
	return nil
}

// Refresh invalidates the cache and reads it back. If the reload fails the
// cache keeps serving the previous table.
func (r *Refresher) Refresh() {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.warmer.Invalidate()
	table, err := r.warmer.Get(ctx)
	if err != nil {
		slog.Warn("scheduled refresh failed", "error", err.Error())
		return
	}
	slog.Info("scheduled refresh completed", "tickers", len(table))
}

// Start runs the scheduler in its own goroutine.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx to end.
func (r *Refresher) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
