package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/notify"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

const (
	jobStream     = "svitlobot:notifications:jobs"
	consumerGroup = "notification-workers"
)

// Default message templates, rendered per recipient by the composer.
const (
	powerOffTemplate = "⚡️ <b>Відключення світла</b>\n\n🔴 Світло відключено\n🔌 Черга: {queue}\n⏰ Час: {time}\n\nМи повідомимо вас, коли світло з'явиться."
	powerOnTemplate  = "⚡️ <b>Включення світла</b>\n\n🟢 Світло з'явилось!\n🔌 Черга: {queue}\n⏰ Час: {time}"
	testTemplate     = "🧪 <b>Тестове сповіщення</b>\n\nЦе тестове повідомлення від системи СвітлоБот."
)

// jobMessage is the stream payload; the job row carries everything else.
type jobMessage struct {
	JobID   string  `json:"job_id"`
	UserIDs []int64 `json:"user_ids,omitempty"` // explicit recipient list, overrides the job's queue
}

// Orchestrator runs notification dispatch off the triggering call's path.
// Jobs are audit rows in Postgres plus a Redis Streams message consumed by
// the worker loop; each attempt gets a wall-clock budget, and a retryable
// failure re-runs the whole job up to the cap (at-least-once delivery:
// recipients that already succeeded may be re-sent).
type Orchestrator struct {
	redisClient *redis.Client
	jobs        repository.NotificationRepository
	resolver    *notify.Resolver
	dispatcher  *notify.Dispatcher
	loc         *time.Location
	logger      *zap.Logger

	maxRetries        int
	retryDelay        time.Duration
	attemptBudget     time.Duration
	fingerprintBucket time.Duration

	consumerName string
}

func NewOrchestrator(
	redisClient *redis.Client,
	jobs repository.NotificationRepository,
	resolver *notify.Resolver,
	dispatcher *notify.Dispatcher,
	loc *time.Location,
	maxRetries int,
	retryDelay, attemptBudget, fingerprintBucket time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if loc == nil {
		loc = time.Local
	}
	return &Orchestrator{
		redisClient:       redisClient,
		jobs:              jobs,
		resolver:          resolver,
		dispatcher:        dispatcher,
		loc:               loc,
		logger:            logger,
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		attemptBudget:     attemptBudget,
		fingerprintBucket: fingerprintBucket,
		consumerName:      "worker-" + uuid.NewString()[:8],
	}
}

// EnqueuePowerTransition creates at most one job per confirmed transition.
// The fingerprint's coarse time bucket makes a racing duplicate commit of
// the same logical event collapse onto the existing job.
func (o *Orchestrator) EnqueuePowerTransition(ctx context.Context, queueID int, isPowerOn bool, at time.Time) error {
	kind := domain.NotifyPowerOff
	template := powerOffTemplate
	if isPowerOn {
		kind = domain.NotifyPowerOn
		template = powerOnTemplate
	}

	job := &domain.Notification{
		ID:          uuid.NewString(),
		Fingerprint: domain.TransitionFingerprint(queueID, isPowerOn, at, o.fingerprintBucket),
		QueueID:     &queueID,
		Kind:        kind,
		Message:     template,
	}
	created, err := o.jobs.CreateJob(ctx, job)
	if err != nil {
		return err
	}
	if !created {
		return nil // already enqueued for this transition
	}
	return o.publish(ctx, jobMessage{JobID: job.ID})
}

// EnqueueBroadcast queues an operator-issued message. queueID nil means
// all queues; an explicit userIDs list overrides the queue entirely.
func (o *Orchestrator) EnqueueBroadcast(ctx context.Context, queueID *int, message string, tierFilter []string, userIDs []int64) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.ErrInvalidInput
	}
	if queueID != nil && !domain.ValidQueueID(*queueID) {
		return "", domain.ErrInvalidInput
	}

	job := &domain.Notification{
		ID:          uuid.NewString(),
		Fingerprint: "custom:" + uuid.NewString(), // broadcasts never dedupe
		QueueID:     queueID,
		Kind:        domain.NotifyCustom,
		Message:     message,
		TierFilter:  tierFilter,
	}
	if _, err := o.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}
	if err := o.publish(ctx, jobMessage{JobID: job.ID, UserIDs: userIDs}); err != nil {
		return "", err
	}
	return job.ID, nil
}

// SendTest delivers the canned test message to a single user,
// synchronously, bypassing the job queue.
func (o *Orchestrator) SendTest(ctx context.Context, userID int64) (*domain.DispatchResult, error) {
	recipients, err := o.resolver.ResolveIDs(ctx, []int64{userID}, domain.NotifyCustom)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return o.dispatcher.Dispatch(ctx, recipients, testTemplate, domain.NotifyCustom, false)
}

func (o *Orchestrator) publish(ctx context.Context, msg jobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job message: %w", err)
	}
	if err := o.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: jobStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Start runs the worker loop until ctx ends.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.ensureGroup(ctx); err != nil {
		return err
	}
	o.logger.Info("notification worker started", zap.String("consumer", o.consumerName))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := o.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: o.consumerName,
			Streams:  []string{jobStream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			o.logger.Error("stream read failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				o.handleMessage(ctx, msg)
			}
		}
	}
}

func (o *Orchestrator) ensureGroup(ctx context.Context) error {
	err := o.redisClient.XGroupCreateMkStream(ctx, jobStream, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (o *Orchestrator) handleMessage(ctx context.Context, msg redis.XMessage) {
	// Ack unconditionally: retry policy lives in runJob, and a poison
	// message must not wedge the group.
	defer o.redisClient.XAck(ctx, jobStream, consumerGroup, msg.ID)

	raw, _ := msg.Values["data"].(string)
	var job jobMessage
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		o.logger.Error("malformed job message", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	o.runJob(ctx, job)
}

// runJob runs dispatch attempts for the whole job with fixed backoff.
func (o *Orchestrator) runJob(ctx context.Context, msg jobMessage) {
	job, err := o.jobs.GetJob(ctx, msg.JobID)
	if err != nil {
		o.logger.Error("job row missing", zap.String("job_id", msg.JobID), zap.Error(err))
		return
	}

	if err := o.jobs.MarkInFlight(ctx, job.ID, time.Now()); err != nil {
		o.logger.Error("mark in flight failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	var last *domain.DispatchResult
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		result, err := o.attempt(ctx, job, msg.UserIDs)
		if err == nil {
			if finishErr := o.jobs.FinishJob(ctx, job.ID, domain.JobStatusDone, result.Success, result.Failed); finishErr != nil {
				o.logger.Error("finish job failed", zap.String("job_id", job.ID), zap.Error(finishErr))
			}
			o.logger.Info("job completed",
				zap.String("job_id", job.ID),
				zap.String("kind", job.Kind),
				zap.Int("success", result.Success),
				zap.Int("failed", result.Failed),
				zap.Int("attempt", attempt+1),
			)
			return
		}

		last = result
		o.logger.Warn("job attempt failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.maxRetries+1),
			zap.Error(err),
		)
		if attempt < o.maxRetries {
			select {
			case <-time.After(o.retryDelay):
			case <-ctx.Done():
				attempt = o.maxRetries // shutting down, park as failed
			}
		}
	}

	success, failed := 0, 0
	if last != nil {
		success, failed = last.Success, last.Failed
	}
	if err := o.jobs.FinishJob(ctx, job.ID, domain.JobStatusFailed, success, failed); err != nil {
		o.logger.Error("finish job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	o.logger.Error("job exhausted retries, marked failed for inspection",
		zap.String("job_id", job.ID),
	)
}

// attempt resolves recipients afresh and runs one full dispatch pass under
// the wall-clock budget. Per-recipient failures are tallies, not errors;
// only a resolution failure or an expired budget is retryable.
func (o *Orchestrator) attempt(ctx context.Context, job *domain.Notification, userIDs []int64) (*domain.DispatchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptBudget)
	defer cancel()

	var recipients []*domain.User
	var err error
	switch {
	case len(userIDs) > 0:
		recipients, err = o.resolver.ResolveIDs(attemptCtx, userIDs, job.Kind)
	case job.QueueID != nil:
		recipients, err = o.resolver.Resolve(attemptCtx, *job.QueueID, job.Kind, job.TierFilter)
	default:
		recipients, err = o.resolver.ResolveAll(attemptCtx, job.Kind, job.TierFilter)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	silent := false
	if job.Kind == domain.NotifyPowerOn || job.Kind == domain.NotifyPowerOff {
		silent = notify.QuietHours(time.Now().In(o.loc))
	}

	return o.dispatcher.Dispatch(attemptCtx, recipients, job.Message, job.Kind, silent)
}
