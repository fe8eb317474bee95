package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/postgres"
	"github.com/fitcomp/internal/redis"
)

// ReconcileWorker runs the periodic consistency pass: it advances stored
// competition statuses from the calendar (upcoming -> active -> completed)
// and rebuilds the Redis standings sets from the canonical Postgres
// aggregates, so a crashed cache or missed update heals itself.
type ReconcileWorker struct {
	postgres *postgres.Repository
	cache    *redis.StandingsCache
	config   *config.WorkerConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	pg *postgres.Repository,
	cache *redis.StandingsCache,
	cfg *config.WorkerConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		postgres: pg,
		cache:    cache,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background reconcile process
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconcile process
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

// run is the main worker loop
func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile runs a single consistency pass
func (w *ReconcileWorker) reconcile(ctx context.Context) {
	w.logger.Info("starting reconcile cycle")
	startTime := time.Now()

	advanced, err := w.postgres.AdvanceStatuses(ctx, time.Now())
	if err != nil {
		w.logger.Error("failed to advance competition statuses", "error", err)
	} else if advanced > 0 {
		w.logger.Info("advanced competition statuses", "count", advanced)
	}

	rebuilt, errorCount := w.rebuildActiveStandings(ctx)

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"rebuilt", rebuilt,
		"errors", errorCount,
	)
}

// rebuildActiveStandings replaces every active competition's standings set
// from the canonical participant totals.
func (w *ReconcileWorker) rebuildActiveStandings(ctx context.Context) (int, int) {
	ids, err := w.postgres.ListCompetitionIDsByStatus(ctx, domain.StatusActive)
	if err != nil {
		w.logger.Error("failed to list active competitions", "error", err)
		return 0, 1
	}

	rebuilt := 0
	errorCount := 0
	for _, id := range ids {
		if err := w.RebuildStandings(ctx, id); err != nil {
			w.logger.Error("failed to rebuild standings",
				"competition_id", id,
				"error", err,
			)
			errorCount++
		} else {
			rebuilt++
		}
	}
	return rebuilt, errorCount
}

// RebuildStandings rebuilds one competition's standings cache from Postgres
func (w *ReconcileWorker) RebuildStandings(ctx context.Context, competitionID string) error {
	totals, err := w.postgres.GetParticipantTotals(ctx, competitionID)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		return nil
	}
	return w.cache.RebuildStandings(ctx, competitionID, totals)
}

// IsRunning returns whether the worker is currently running
func (w *ReconcileWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single reconcile cycle (useful for manual triggers)
func (w *ReconcileWorker) RunOnce(ctx context.Context) {
	w.reconcile(ctx)
}
