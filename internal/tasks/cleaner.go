package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

// cleanupHour is the local hour the daily retention pass runs at.
const cleanupHour = 3

// HistoryCleaner deletes notification history older than the retention
// window once a day. A failed run is logged and skipped; the next run
// simply processes a larger backlog.
type HistoryCleaner struct {
	jobs      repository.NotificationRepository
	retention time.Duration
	loc       *time.Location
	logger    *zap.Logger
}

func NewHistoryCleaner(jobs repository.NotificationRepository, retention time.Duration, loc *time.Location, logger *zap.Logger) *HistoryCleaner {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryCleaner{jobs: jobs, retention: retention, loc: loc, logger: logger}
}

// Start runs the daily schedule until ctx ends.
func (c *HistoryCleaner) Start(ctx context.Context) {
	for {
		next := c.nextRun(time.Now().In(c.loc))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if deleted, err := c.CleanupOnce(ctx); err != nil {
			c.logger.Error("notification cleanup failed", zap.Error(err))
		} else {
			c.logger.Info("notification cleanup completed", zap.Int64("deleted", deleted))
		}
	}
}

// CleanupOnce performs a single retention pass.
func (c *HistoryCleaner) CleanupOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-c.retention)
	return c.jobs.DeleteOlderThan(ctx, cutoff)
}

func (c *HistoryCleaner) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), cleanupHour, 0, 0, 0, c.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
