package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

// Resolver computes the eligible recipient set for a dispatch. It always
// queries the directory afresh: settings change between cycles, so the
// result is never cached.
type Resolver struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewResolver(users repository.UserRepository, logger *zap.Logger) *Resolver {
	return &Resolver{users: users, logger: logger}
}

// Resolve returns the queue's active subscribers eligible for the given
// notification kind, optionally restricted by tier.
func (r *Resolver) Resolve(ctx context.Context, queueID int, kind string, tierFilter []string) ([]*domain.User, error) {
	users, err := r.users.ActiveByQueue(ctx, queueID, tierFilter)
	if err != nil {
		return nil, err
	}
	return r.filterByKind(users, kind), nil
}

// ResolveAll is the broadcast variant over every queue.
func (r *Resolver) ResolveAll(ctx context.Context, kind string, tierFilter []string) ([]*domain.User, error) {
	users, err := r.users.ActiveAll(ctx, tierFilter)
	if err != nil {
		return nil, err
	}
	return r.filterByKind(users, kind), nil
}

// ResolveIDs resolves an explicit recipient list; inactive and blocked
// ids are silently dropped, kind settings still apply.
func (r *Resolver) ResolveIDs(ctx context.Context, userIDs []int64, kind string) ([]*domain.User, error) {
	users, err := r.users.ActiveByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	return r.filterByKind(users, kind), nil
}

func (r *Resolver) filterByKind(users []*domain.User, kind string) []*domain.User {
	eligible := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if u.CanReceive(kind) {
			eligible = append(eligible, u)
		}
	}
	return eligible
}
