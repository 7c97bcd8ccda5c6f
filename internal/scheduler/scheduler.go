// Package scheduler runs the single cooperative tick loop that enqueues due
// sync pairs and periodically sweeps expired operations/records, mirroring
// the tick-and-select shape of the original scheduler service.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/syncengine"
)

// Config wires a Scheduler's dependencies and intervals.
type Config struct {
	Store           store.Store
	SyncEngine      *syncengine.Engine
	TickInterval    time.Duration
	CleanupInterval time.Duration
	OperationMaxAge time.Duration
	RecordMaxAge    time.Duration
	Logger          *slog.Logger
}

// Scheduler enqueues due sync pairs on a fixed tick and periodically deletes
// expired operations and records. Only one instance should run per store.
type Scheduler struct {
	store           store.Store
	engine          *syncengine.Engine
	tickInterval    time.Duration
	cleanupInterval time.Duration
	operationMaxAge time.Duration
	recordMaxAge    time.Duration
	logger          *slog.Logger

	lastCleanup time.Time
	stop        chan struct{}
	done        chan struct{}
}

// New constructs a Scheduler, applying the documented defaults (60s tick,
// 24h cleanup, 30d operation retention, 7d record retention) for any
// zero-valued field.
func New(cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	if cfg.OperationMaxAge <= 0 {
		cfg.OperationMaxAge = 30 * 24 * time.Hour
	}
	if cfg.RecordMaxAge <= 0 {
		cfg.RecordMaxAge = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		store:           cfg.Store,
		engine:          cfg.SyncEngine,
		tickInterval:    cfg.TickInterval,
		cleanupInterval: cfg.CleanupInterval,
		operationMaxAge: cfg.OperationMaxAge,
		recordMaxAge:    cfg.RecordMaxAge,
		logger:          cfg.Logger,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the tick loop in a background goroutine. Stop halts it at
// the next tick boundary; in-flight sync operations the loop already
// enqueued are unaffected and run to completion on their own.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop requests the loop halt and blocks until it has exited.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick_interval", s.tickInterval)

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			s.logger.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()

	s.enqueueDuePairs(ctx)

	if s.lastCleanup.IsZero() || time.Since(s.lastCleanup) >= s.cleanupInterval {
		s.cleanup(ctx)
		s.lastCleanup = time.Now()
	}
}

func (s *Scheduler) enqueueDuePairs(ctx context.Context) {
	pairs, err := s.store.DueSyncPairs(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to list due sync pairs", "error", err)
		return
	}

	for _, pair := range pairs {
		if _, err := s.engine.StartOperation(ctx, pair.ID, "scheduler", nil); err != nil {
			// Best-effort: an enqueue failure (pair inactive or already
			// running, store error) is logged and retried next tick. A full
			// permit pool does not fail the enqueue; the operation waits
			// for a permit in the background.
			s.logger.Warn("scheduled enqueue failed, will retry next tick", "sync_pair_id", pair.ID, "error", err)
		}
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	opCutoff := time.Now().UTC().Add(-s.operationMaxAge)
	if n, err := s.store.DeleteOperationsBefore(ctx, opCutoff); err != nil {
		s.logger.Error("operation cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sync operations", "count", n)
	}

	recCutoff := time.Now().UTC().Add(-s.recordMaxAge)
	if n, err := s.store.DeleteRecordsBefore(ctx, recCutoff); err != nil {
		s.logger.Error("record cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sync records", "count", n)
	}
}
