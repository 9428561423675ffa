package store

// retention.go runs the periodic purge of persisted runs.
//
// The scheduler is long-running and context-aware for graceful shutdown. It
// logs progress and errors but a failed purge never stops the service; the
// next tick tries again.

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes runs older than a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// RetentionPolicy controls the scheduler.
type RetentionPolicy struct {
	Window        time.Duration // Age after which runs are deleted
	BatchSize     int           // Runs per delete statement
	CheckInterval time.Duration // How often to purge
}

// RunRetention purges immediately, then every CheckInterval, until ctx ends.
func RunRetention(ctx context.Context, p Purger, policy RetentionPolicy) {
	slog.Info("retention scheduler started",
		"window", policy.Window.String(),
		"batch_size", policy.BatchSize,
		"interval", policy.CheckInterval.String(),
	)

	purgeOnce(ctx, p, policy, time.Now())

	ticker := time.NewTicker(policy.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			purgeOnce(ctx, p, policy, now)
		}
	}
}

// purgeOnce performs one purge cycle relative to now.
func purgeOnce(ctx context.Context, p Purger, policy RetentionPolicy, now time.Time) {
	start := time.Now()
	cutoff := now.Add(-policy.Window)

	purged, err := p.PurgeBefore(ctx, cutoff, policy.BatchSize)
	if err != nil {
		slog.Error("retention purge failed", "error", err, "purged", purged)
		return
	}
	slog.Info("retention purge completed",
		"runs_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
