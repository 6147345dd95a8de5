package repository

import (
	"context"
	"time"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// NotificationStats aggregates history rows for the admin stats endpoint.
type NotificationStats struct {
	TotalJobs    int
	TotalSuccess int
	TotalFailed  int
	ByKind       map[string]int
}

// NotificationRepository persists dispatch job audit records. CreateJob is
// the idempotence point: one row per fingerprint, ever.
type NotificationRepository interface {
	// CreateJob inserts the job unless a row with the same fingerprint
	// already exists; created is false on the duplicate path.
	CreateJob(ctx context.Context, job *domain.Notification) (created bool, err error)

	MarkInFlight(ctx context.Context, jobID string, at time.Time) error
	FinishJob(ctx context.Context, jobID string, status string, success, failed int) error

	GetJob(ctx context.Context, jobID string) (*domain.Notification, error)
	History(ctx context.Context, queueID int, limit int) ([]*domain.Notification, error)
	Stats(ctx context.Context, since time.Time) (*NotificationStats, error)

	// DeleteOlderThan removes history rows past the retention window and
	// returns how many went away.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
