package repository

import (
	"context"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// UserRepository is the read-only view onto the external recipient
// directory. User lifecycle (registration, referrals, payments) is owned
// by the bot service; the dispatcher only ever queries.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// ActiveByQueue returns active, non-blocked users whose primary queue
	// is queueID, optionally restricted to the given tiers.
	ActiveByQueue(ctx context.Context, queueID int, tierFilter []string) ([]*domain.User, error)

	// ActiveAll is the broadcast variant: every active, non-blocked user.
	ActiveAll(ctx context.Context, tierFilter []string) ([]*domain.User, error)

	// ActiveByIDs resolves an explicit recipient list, dropping inactive
	// and blocked ids.
	ActiveByIDs(ctx context.Context, userIDs []int64) ([]*domain.User, error)

	CountByQueue(ctx context.Context, queueID int) (total int, byTier map[string]int, err error)
}
