package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the stale record reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for stale records.
	Interval time.Duration

	// StaleThreshold is how long a record can stay pending before its
	// remaining queued jobs are considered lost and re-enqueued.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of stale records per cycle.
	BatchSize int
}

// Reaper reconciles the store with the queue: records whose queued channel
// jobs never reported an outcome are re-enqueued from the jobs retained in
// the stored payload. The database is the source of truth, so no queued
// dispatch is permanently lost even if Redis data is wiped.
//
// Re-enqueueing can duplicate a delivery that actually went out right
// before the worker crashed; that is the accepted at-least-once tradeoff.
type Reaper struct {
	store  NotificationStore
	queue  JobQueue
	config ReaperConfig
}

// NewReaper creates a stale record reaper.
func NewReaper(store NotificationStore, queue JobQueue, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{store: store, queue: queue, config: cfg}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep performs one reaper cycle: find stale pending records and
// re-enqueue their outstanding channel jobs.
func (r *Reaper) sweep(ctx context.Context) {
	olderThan := time.Now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListStale(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list stale records", "error", err)
		return
	}

	if len(stale) == 0 {
		return // Nothing to do, the common case.
	}

	slog.Warn("reaper: found stale records", "count", len(stale))

	recovered := 0
	for _, rec := range stale {
		for _, job := range rec.Data.QueuedJobs {
			job.RecordID = rec.ID
			if _, err := r.queue.Enqueue(ctx, job, EnqueueOptions{}); err != nil {
				slog.Error("reaper: failed to re-enqueue job",
					"record_id", rec.ID,
					"channel", job.Channel,
					"error", err,
				)
				continue
			}
			recovered++
			slog.Info("reaper: re-enqueued stale job",
				"record_id", rec.ID,
				"channel", job.Channel,
				"age", time.Since(rec.UpdatedAt).Round(time.Second),
			)
		}
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered_jobs", recovered, "stale_records", len(stale))
	}
}
