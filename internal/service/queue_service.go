package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

// OverrideResult reports the outcome of a manual status write.
type OverrideResult struct {
	QueueID       int    `json:"queue_id"`
	StatusChanged bool   `json:"status_changed"`
	NewStatus     string `json:"new_status"`
}

// QueueService serves queue state reads and the manual/admin override
// path. An override bypasses the sensor quorum but still produces a
// notification job.
type QueueService struct {
	queues   repository.QueueRepository
	users    repository.UserRepository
	notifier TransitionNotifier
	logger   *zap.Logger
}

func NewQueueService(queues repository.QueueRepository, users repository.UserRepository, notifier TransitionNotifier, logger *zap.Logger) *QueueService {
	return &QueueService{queues: queues, users: users, notifier: notifier, logger: logger}
}

func (s *QueueService) GetQueue(ctx context.Context, queueID int) (*domain.Queue, error) {
	if !domain.ValidQueueID(queueID) {
		return nil, domain.ErrInvalidInput
	}
	return s.queues.GetQueue(ctx, queueID)
}

func (s *QueueService) ListQueues(ctx context.Context) ([]*domain.Queue, error) {
	return s.queues.ListQueues(ctx)
}

// SetStatus applies a manual override. Valid sources are the recorded
// change sources; an override onto the current state is a no-op.
func (s *QueueService) SetStatus(ctx context.Context, queueID int, isPowerOn bool, source string) (*OverrideResult, error) {
	if !domain.ValidQueueID(queueID) {
		return nil, domain.ErrInvalidInput
	}
	switch source {
	case domain.SourceIoT, domain.SourceCrowdReport, domain.SourceManual:
	default:
		return nil, domain.ErrInvalidInput
	}

	// Existence check first so an unknown queue is NotFound, not a silent
	// CAS miss.
	queue, err := s.queues.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	result := &OverrideResult{QueueID: queueID, NewStatus: powerStatus(isPowerOn)}
	if queue.IsPowerOn == isPowerOn {
		return result, nil
	}

	now := time.Now()
	committed, err := s.queues.CommitTransition(ctx, queueID, isPowerOn, source, now)
	if err != nil {
		return nil, err
	}
	if !committed {
		return result, nil
	}
	result.StatusChanged = true

	s.logger.Info("manual queue override",
		zap.Int("queue_id", queueID),
		zap.String("source", source),
		zap.Bool("is_power_on", isPowerOn),
	)
	if err := s.notifier.EnqueuePowerTransition(ctx, queueID, isPowerOn, now); err != nil {
		s.logger.Error("failed to enqueue override notification",
			zap.Int("queue_id", queueID),
			zap.Error(err),
		)
	}
	return result, nil
}

// UsersCount returns subscriber counts for one queue, split by tier.
func (s *QueueService) UsersCount(ctx context.Context, queueID int) (int, map[string]int, error) {
	if !domain.ValidQueueID(queueID) {
		return 0, nil, domain.ErrInvalidInput
	}
	return s.users.CountByQueue(ctx, queueID)
}
