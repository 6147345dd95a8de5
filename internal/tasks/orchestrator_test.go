package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/notify"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

// fakeJobRepo mirrors the fingerprint-unique semantics of the Postgres
// implementation.
type fakeJobRepo struct {
	mu           sync.Mutex
	jobs         map[string]*domain.Notification
	fingerprints map[string]bool
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.Notification{}, fingerprints: map[string]bool{}}
}

func (f *fakeJobRepo) CreateJob(ctx context.Context, job *domain.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fingerprints[job.Fingerprint] {
		return false, nil
	}
	cp := *job
	if cp.Status == "" {
		cp.Status = domain.JobStatusQueued
	}
	cp.CreatedAt = time.Now()
	f.jobs[cp.ID] = &cp
	f.fingerprints[cp.Fingerprint] = true
	return true, nil
}

func (f *fakeJobRepo) MarkInFlight(ctx context.Context, jobID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[jobID]; ok {
		j.Status = domain.JobStatusInFlight
		j.SentAt = &at
	}
	return nil
}

func (f *fakeJobRepo) FinishJob(ctx context.Context, jobID string, status string, success, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[jobID]; ok {
		j.Status = status
		j.SuccessCount = success
		j.FailCount = failed
	}
	return nil
}

func (f *fakeJobRepo) GetJob(ctx context.Context, jobID string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) History(ctx context.Context, queueID int, limit int) ([]*domain.Notification, error) {
	return nil, nil
}

func (f *fakeJobRepo) Stats(ctx context.Context, since time.Time) (*repository.NotificationStats, error) {
	return &repository.NotificationStats{ByKind: map[string]int{}}, nil
}

func (f *fakeJobRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, j := range f.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(f.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// flakyUserRepo errors the first failures calls, then serves its users.
type flakyUserRepo struct {
	mu       sync.Mutex
	failures int
	users    []*domain.User
}

func (f *flakyUserRepo) take() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("directory unavailable")
	}
	return nil
}

func (f *flakyUserRepo) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (f *flakyUserRepo) ActiveByQueue(ctx context.Context, queueID int, tierFilter []string) ([]*domain.User, error) {
	if err := f.take(); err != nil {
		return nil, err
	}
	var out []*domain.User
	for _, u := range f.users {
		if u.PrimaryQueueID != nil && *u.PrimaryQueueID == queueID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *flakyUserRepo) ActiveAll(ctx context.Context, tierFilter []string) ([]*domain.User, error) {
	if err := f.take(); err != nil {
		return nil, err
	}
	return f.users, nil
}

func (f *flakyUserRepo) ActiveByIDs(ctx context.Context, userIDs []int64) ([]*domain.User, error) {
	if err := f.take(); err != nil {
		return nil, err
	}
	var out []*domain.User
	for _, id := range userIDs {
		for _, u := range f.users {
			if u.UserID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *flakyUserRepo) CountByQueue(ctx context.Context, queueID int) (int, map[string]int, error) {
	return 0, nil, nil
}

// countingTransport records sends without ever failing.
type countingTransport struct {
	mu   sync.Mutex
	sent []int64
}

func (c *countingTransport) Send(ctx context.Context, userID int64, text string, silent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, userID)
	return nil
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type orchestratorFixture struct {
	orch      *Orchestrator
	client    *redis.Client
	jobs      *fakeJobRepo
	users     *flakyUserRepo
	transport *countingTransport
}

func newOrchestratorFixture(t *testing.T, users *flakyUserRepo) *orchestratorFixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zap.NewNop()
	jobs := newFakeJobRepo()
	transport := &countingTransport{}
	resolver := notify.NewResolver(users, logger)
	dispatcher := notify.NewDispatcher(transport, notify.NewComposer(time.UTC, logger), 1000, 100, logger)

	orch := NewOrchestrator(
		client, jobs, resolver, dispatcher, time.UTC,
		2, time.Millisecond, time.Second, 120*time.Second,
		logger,
	)
	return &orchestratorFixture{orch: orch, client: client, jobs: jobs, users: users, transport: transport}
}

func queueUsers(queueID int, ids ...int64) *flakyUserRepo {
	var users []*domain.User
	for _, id := range ids {
		q := queueID
		users = append(users, &domain.User{
			UserID: id, PrimaryQueueID: &q,
			SubscriptionTier: domain.TierFree, IsActive: true,
		})
	}
	return &flakyUserRepo{users: users}
}

func streamLen(t *testing.T, client *redis.Client) int64 {
	n, err := client.XLen(context.Background(), jobStream).Result()
	require.NoError(t, err)
	return n
}

func TestEnqueuePowerTransition_Dedupes(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1, 2))
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, at))
	// Racing duplicate of the same event, seconds later in the same
	// bucket: no second job, no second stream message.
	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, at.Add(5*time.Second)))

	assert.Equal(t, int64(1), streamLen(t, f.client))
	assert.Len(t, f.jobs.jobs, 1)

	for _, job := range f.jobs.jobs {
		assert.Equal(t, domain.NotifyPowerOff, job.Kind)
		require.NotNil(t, job.QueueID)
		assert.Equal(t, 5, *job.QueueID)
	}
}

func TestEnqueuePowerTransition_OppositeStatesAreDistinct(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, at))
	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, true, at))

	assert.Equal(t, int64(2), streamLen(t, f.client))
}

func TestEnqueueBroadcast_Validation(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()

	_, err := f.orch.EnqueueBroadcast(ctx, nil, "   ", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad := 99
	_, err = f.orch.EnqueueBroadcast(ctx, &bad, "msg", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEnqueueBroadcast_NeverDedupes(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()

	id1, err := f.orch.EnqueueBroadcast(ctx, nil, "планові роботи", nil, nil)
	require.NoError(t, err)
	id2, err := f.orch.EnqueueBroadcast(ctx, nil, "планові роботи", nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, int64(2), streamLen(t, f.client))
}

func TestRunJob_Success(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1, 2, 3))
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, time.Now()))

	var jobID string
	for id := range f.jobs.jobs {
		jobID = id
	}
	f.orch.runJob(ctx, jobMessage{JobID: jobID})

	job, err := f.jobs.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, job.Status)
	assert.Equal(t, 3, job.SuccessCount)
	assert.Equal(t, 0, job.FailCount)
	assert.Equal(t, 3, f.transport.count())
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	users := queueUsers(5, 1, 2)
	users.failures = 1 // first resolution attempt errors
	f := newOrchestratorFixture(t, users)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, time.Now()))
	var jobID string
	for id := range f.jobs.jobs {
		jobID = id
	}
	f.orch.runJob(ctx, jobMessage{JobID: jobID})

	job, err := f.jobs.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, job.Status)
	assert.Equal(t, 2, job.SuccessCount)
}

func TestRunJob_ExhaustsRetries(t *testing.T) {
	users := queueUsers(5, 1)
	users.failures = 100 // never recovers within 3 attempts
	f := newOrchestratorFixture(t, users)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueuePowerTransition(ctx, 5, false, time.Now()))
	var jobID string
	for id := range f.jobs.jobs {
		jobID = id
	}
	f.orch.runJob(ctx, jobMessage{JobID: jobID})

	job, err := f.jobs.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 0, f.transport.count())
}

func TestHandleMessage_MalformedPayloadAcked(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()
	require.NoError(t, f.orch.ensureGroup(ctx))

	require.NoError(t, f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: jobStream,
		Values: map[string]interface{}{"data": "not json"},
	}).Err())

	streams, err := f.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group: consumerGroup, Consumer: "test-consumer",
		Streams: []string{jobStream, ">"}, Count: 1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Messages, 1)

	// Must not panic and must leave nothing pending.
	f.orch.handleMessage(ctx, streams[0].Messages[0])

	pending, err := f.client.XPending(ctx, jobStream, consumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestPublishedMessageRoundTrips(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()

	jobID, err := f.orch.EnqueueBroadcast(ctx, nil, "msg", nil, []int64{7, 8})
	require.NoError(t, err)

	msgs, err := f.client.XRange(ctx, jobStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded jobMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, jobID, decoded.JobID)
	assert.Equal(t, []int64{7, 8}, decoded.UserIDs)
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 1))
	ctx := context.Background()

	require.NoError(t, f.orch.ensureGroup(ctx))
	require.NoError(t, f.orch.ensureGroup(ctx)) // BUSYGROUP tolerated
}

func TestSendTest(t *testing.T) {
	f := newOrchestratorFixture(t, queueUsers(5, 42))
	ctx := context.Background()

	result, err := f.orch.SendTest(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, f.transport.count())

	_, err = f.orch.SendTest(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
