package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// fakeUserRepo only serves CountByQueue; the rest is unused here.
type fakeUserRepo struct {
	counts map[int]map[string]int
}

func (f *fakeUserRepo) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) ActiveByQueue(ctx context.Context, queueID int, tierFilter []string) ([]*domain.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) ActiveAll(ctx context.Context, tierFilter []string) ([]*domain.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) ActiveByIDs(ctx context.Context, userIDs []int64) ([]*domain.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) CountByQueue(ctx context.Context, queueID int) (int, map[string]int, error) {
	byTier := f.counts[queueID]
	total := 0
	for _, n := range byTier {
		total += n
	}
	return total, byTier, nil
}

func newQueueServiceFixture(queues *fakeQueueRepo) (*QueueService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	svc := NewQueueService(queues, &fakeUserRepo{counts: map[int]map[string]int{}}, notifier, zap.NewNop())
	return svc, notifier
}

func TestSetStatus_Override(t *testing.T) {
	queues := newFakeQueueRepo(5)
	svc, notifier := newQueueServiceFixture(queues)

	result, err := svc.SetStatus(context.Background(), 5, false, domain.SourceManual)
	require.NoError(t, err)

	assert.True(t, result.StatusChanged)
	assert.Equal(t, "OFF", result.NewStatus)
	assert.Equal(t, 1, notifier.count())

	q, _ := queues.GetQueue(context.Background(), 5)
	assert.False(t, q.IsPowerOn)
	require.NotNil(t, q.LastChangeSource)
	assert.Equal(t, domain.SourceManual, *q.LastChangeSource)
}

func TestSetStatus_NoOpOnSameState(t *testing.T) {
	queues := newFakeQueueRepo(5) // provisioned ON
	svc, notifier := newQueueServiceFixture(queues)

	result, err := svc.SetStatus(context.Background(), 5, true, domain.SourceManual)
	require.NoError(t, err)

	assert.False(t, result.StatusChanged)
	assert.Equal(t, 0, notifier.count())
}

func TestSetStatus_InvalidInput(t *testing.T) {
	svc, _ := newQueueServiceFixture(newFakeQueueRepo(5))
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, 0, false, domain.SourceManual)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SetStatus(ctx, 5, false, "telepathy")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetStatus_UnknownQueue(t *testing.T) {
	svc, _ := newQueueServiceFixture(newFakeQueueRepo(5))

	_, err := svc.SetStatus(context.Background(), 7, false, domain.SourceManual)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetQueue_RangeCheck(t *testing.T) {
	svc, _ := newQueueServiceFixture(newFakeQueueRepo(5))

	_, err := svc.GetQueue(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUsersCount(t *testing.T) {
	notifier := &fakeNotifier{}
	users := &fakeUserRepo{counts: map[int]map[string]int{
		5: {domain.TierFree: 30, domain.TierPro: 12},
	}}
	svc := NewQueueService(newFakeQueueRepo(5), users, notifier, zap.NewNop())

	total, byTier, err := svc.UsersCount(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.Equal(t, 12, byTier[domain.TierPro])
}
