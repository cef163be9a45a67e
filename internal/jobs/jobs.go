// Package jobs holds the scheduled entry points: draining the change queue,
// sweeping old queue rows, and the flush-triggered full-page warming run.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/collector"
	"github.com/warmfront/warmfront/internal/config"
	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/queue"
	"github.com/warmfront/warmfront/internal/runguard"
	"github.com/warmfront/warmfront/internal/store"
	"github.com/warmfront/warmfront/internal/warmer"
)

const (
	// queueRetention is how long finished queue rows are kept for inspection.
	queueRetention = 7 * 24 * time.Hour
	// runLockTTL bounds a full-page run; a lock older than this is stale.
	runLockTTL = 6 * time.Hour
)

// Runner executes the scheduled jobs.
type Runner struct {
	cfg      config.Config
	stores   *store.Manager
	repo     queue.Repository
	consumer *queue.Consumer
	registry *collector.Registry
	engine   queue.Warmer
	guard    *runguard.Guard
	logger   *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	cfg config.Config,
	stores *store.Manager,
	repo queue.Repository,
	consumer *queue.Consumer,
	registry *collector.Registry,
	engine queue.Warmer,
	guard *runguard.Guard,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		cfg:      cfg,
		stores:   stores,
		repo:     repo,
		consumer: consumer,
		registry: registry,
		engine:   engine,
		guard:    guard,
		logger:   logger,
	}
}

// ProcessQueue drains one batch of pending queue items. It is a no-op when
// the warmer is disabled.
func (r *Runner) ProcessQueue(ctx context.Context) error {
	if !r.cfg.Warmer.Enabled {
		r.logger.Debug("Warmer disabled, skipping queue processing")
		return nil
	}
	return r.consumer.Process(ctx)
}

// Cleanup deletes queue rows untouched for longer than the retention window.
// Individual delete failures are logged and do not stop the sweep.
func (r *Runner) Cleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-queueRetention)
	old, err := r.repo.GetOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expired queue items: %w", err)
	}
	if len(old) == 0 {
		return nil
	}

	deleted := 0
	for _, item := range old {
		if err := r.repo.Delete(ctx, item.ID); err != nil {
			r.logger.Warn("Failed to delete expired queue item",
				zap.Int64("item_id", item.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	metrics.AddSweepDeleted(deleted)
	r.logger.Info("Queue retention sweep finished",
		zap.Int("deleted", deleted), zap.Int("expired", len(old)))
	return nil
}

// WarmFullPage runs a full warming pass over every store when the trigger
// flag is armed. The in-progress lock caps one run at a time; a run whose
// lock has gone stale is assumed dead and its lock is stolen.
func (r *Runner) WarmFullPage(ctx context.Context) error {
	if !r.cfg.Warmer.Enabled {
		r.logger.Debug("Warmer disabled, skipping full-page run")
		return nil
	}

	armed, err := r.guard.Armed(ctx)
	if err != nil {
		return fmt.Errorf("check warm trigger: %w", err)
	}
	if !armed {
		r.logger.Debug("Warm trigger not armed, nothing to do")
		return nil
	}

	acquired, err := r.guard.TryAcquire(ctx, runLockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := r.guard.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("Failed to release run lock", zap.Error(err))
		}
	}()

	if err := r.guard.Disarm(ctx); err != nil {
		return fmt.Errorf("clear warm trigger: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, runLockTTL)
	defer cancel()

	for _, st := range r.stores.All() {
		if err := r.warmStore(runCtx, st); err != nil {
			r.logger.Error("Full-page warming failed for store",
				zap.String("store", st.Code), zap.Error(err))
		}
	}
	return nil
}

func (r *Runner) warmStore(ctx context.Context, st store.Store) error {
	code := r.cfg.Warmer.DefaultCollector
	if sc, ok := r.cfg.StoreByID(st.ID); ok && sc.DefaultCollector != "" {
		code = sc.DefaultCollector
	}

	c, err := r.registry.Get(code)
	if err != nil {
		return fmt.Errorf("look up collector %q: %w", code, err)
	}

	urls, err := c.CollectURLs(ctx, st)
	if err != nil {
		return fmt.Errorf("collect URLs: %w", err)
	}
	r.logger.Info("Starting full-page warm for store",
		zap.String("store", st.Code),
		zap.String("collector", code),
		zap.Int("urls", len(urls)),
	)

	if _, err := r.engine.Warm(ctx, urls, warmer.OptionsForStore(r.cfg, st)); err != nil {
		return fmt.Errorf("warm store: %w", err)
	}
	return nil
}
