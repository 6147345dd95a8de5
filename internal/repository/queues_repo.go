package repository

import (
	"context"
	"time"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// QueueRepository owns the per-queue power state rows. Writes go through
// CommitTransition, whose compare-and-set guard is what keeps two racing
// commits of the same logical event from both landing.
type QueueRepository interface {
	GetQueue(ctx context.Context, queueID int) (*domain.Queue, error)
	ListQueues(ctx context.Context) ([]*domain.Queue, error)

	// CommitTransition flips is_power_on only when the row still holds the
	// opposite state; it stamps last_change_at/source and bumps
	// total_outages on ON->OFF. Returns false when the guard missed, i.e.
	// someone else already committed.
	CommitTransition(ctx context.Context, queueID int, isPowerOn bool, source string, at time.Time) (bool, error)

	// EnsureQueues provisions queue rows 1..n with power ON, leaving
	// existing rows untouched.
	EnsureQueues(ctx context.Context, n int) error
}
