package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

// OwnerLister returns users that own at least one overdue active commitment.
type OwnerLister interface {
	ListOverdueOwners(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type Sweeper interface {
	SweepExpired(ctx context.Context, userID uuid.UUID) (domainagg.ExpireOverdueResult, error)
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	Now         func() time.Time
}

// SweepStats summarizes one pass.
type SweepStats struct {
	Owners  int
	Expired int
	Skipped int
	Failed  int
}

type Worker struct {
	log     *logger.Logger
	owners  OwnerLister
	sweeper Sweeper
	cfg     Config
}

func NewWorker(baseLog *logger.Logger, owners OwnerLister, sweeper Sweeper, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{
		log:     baseLog.With("component", "ExpirySweepWorker"),
		owners:  owners,
		sweeper: sweeper,
		cfg:     cfg,
	}
}

// Start runs sweeps on a ticker until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting expiry sweep worker", "interval", w.cfg.Interval, "concurrency", w.cfg.Concurrency)
	go w.runLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Expiry sweep worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.log.Warn("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires overdue commitments for one batch of owners. A failure for one owner is
// logged and counted; the rest of the batch still runs.
func (w *Worker) SweepOnce(ctx context.Context) (SweepStats, error) {
	owners, err := w.owners.ListOverdueOwners(dbctx.Context{Ctx: ctx}, w.cfg.Now().UTC(), w.cfg.BatchSize)
	if err != nil {
		return SweepStats{}, fmt.Errorf("list overdue owners: %w", err)
	}
	stats := SweepStats{Owners: len(owners)}
	if len(owners) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			res, err := w.safeSweep(gctx, owner)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				w.log.Warn("sweep owner failed", "user_id", owner, "error", err)
				return nil
			}
			stats.Expired += len(res.Expired)
			stats.Skipped += res.Skipped
			return nil
		})
	}
	_ = g.Wait()
	if stats.Expired > 0 || stats.Failed > 0 {
		w.log.Info("expiry sweep finished",
			"owners", stats.Owners,
			"expired", stats.Expired,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return stats, ctx.Err()
}

func (w *Worker) safeSweep(ctx context.Context, owner uuid.UUID) (res domainagg.ExpireOverdueResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("sweep panic", "user_id", owner, "panic", r)
			err = &panicError{Val: r}
		}
	}()
	return w.sweeper.SweepExpired(ctx, owner)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
