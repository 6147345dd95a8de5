package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/store"
)

// TransitionNotifier enqueues one notification job for a confirmed power
// transition. Implemented by the task orchestrator.
type TransitionNotifier interface {
	EnqueuePowerTransition(ctx context.Context, queueID int, isPowerOn bool, at time.Time) error
}

// ReadingInput is one telemetry sample from a sensor.
type ReadingInput struct {
	SensorID  string   `json:"sensor_id"`
	IsPowerOn bool     `json:"is_power_on"`
	Voltage   *float64 `json:"voltage,omitempty"`
	Frequency *float64 `json:"frequency,omitempty"`
}

// ReadingResult reports what one ingest call did.
type ReadingResult struct {
	SensorID      string `json:"sensor_id"`
	QueueID       int    `json:"queue_id"`
	PowerStatus   string `json:"power_status"`
	StatusChanged bool   `json:"status_changed"`
}

// FleetHealth summarizes sensor liveness for monitoring.
type FleetHealth struct {
	TotalSensors   int              `json:"total_sensors"`
	Online         int              `json:"online"`
	Offline        int              `json:"offline"`
	OfflineSensors []map[string]any `json:"offline_sensors"`
	Health         string           `json:"health"`
}

// offlineThreshold is how long a sensor may be silent before the fleet
// health check counts it offline.
const offlineThreshold = 5 * time.Minute

// IngestService validates and records sensor telemetry and runs the
// per-queue quorum state machine over it.
//
// The transition rule, re-evaluated on every ingest call: a candidate
// state differing from the queue's commits immediately when the queue has
// a single sensor; with a partner registered it commits only when the
// partner's latest reading is fresher than the freshness window and
// agrees. Anything else (stale, absent, disagreeing) leaves the queue
// untouched until reconciling data arrives.
type IngestService struct {
	apiKey    string
	freshness time.Duration

	sensors  repository.SensorRepository
	queues   repository.QueueRepository
	readings *store.ReadingCache
	notifier TransitionNotifier
	logger   *zap.Logger

	// One mutex per queue serializes read-decide-commit so two
	// near-simultaneous pings cannot both observe the pre-transition
	// state.
	locksMu sync.Mutex
	locks   map[int]*sync.Mutex
}

func NewIngestService(
	apiKey string,
	freshness time.Duration,
	sensors repository.SensorRepository,
	queues repository.QueueRepository,
	readings *store.ReadingCache,
	notifier TransitionNotifier,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		apiKey:    apiKey,
		freshness: freshness,
		sensors:   sensors,
		queues:    queues,
		readings:  readings,
		notifier:  notifier,
		logger:    logger,
		locks:     make(map[int]*sync.Mutex),
	}
}

func (s *IngestService) queueLock(queueID int) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if mu, ok := s.locks[queueID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[queueID] = mu
	return mu
}

// ReportReading handles one sensor ping end to end: shared-secret check,
// telemetry append, then the quorum evaluation.
func (s *IngestService) ReportReading(ctx context.Context, apiKey string, in ReadingInput) (*ReadingResult, error) {
	if apiKey != s.apiKey {
		s.logger.Warn("invalid IoT API key", zap.String("sensor_id", in.SensorID))
		return nil, domain.ErrUnauthorized
	}

	sensor, err := s.sensors.GetSensor(ctx, in.SensorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.sensors.MarkOnline(ctx, sensor.SensorID, now); err != nil {
		return nil, err
	}
	reading := &domain.SensorReading{
		SensorID:   sensor.SensorID,
		IsPowerOn:  in.IsPowerOn,
		Voltage:    in.Voltage,
		Frequency:  in.Frequency,
		ReceivedAt: now,
	}
	if err := s.sensors.AppendReading(ctx, reading); err != nil {
		return nil, err
	}
	if err := s.readings.Put(ctx, store.CachedReading{
		SensorID:   sensor.SensorID,
		IsPowerOn:  in.IsPowerOn,
		ReceivedAt: now,
	}); err != nil {
		// The DB lookup path still works; degrade, don't fail the ping.
		s.logger.Warn("reading cache update failed",
			zap.String("sensor_id", sensor.SensorID),
			zap.Error(err),
		)
	}

	result := &ReadingResult{
		SensorID:    sensor.SensorID,
		QueueID:     sensor.QueueID,
		PowerStatus: powerStatus(in.IsPowerOn),
	}

	changed, err := s.evaluate(ctx, sensor, in.IsPowerOn, now)
	if err != nil {
		return nil, err
	}
	result.StatusChanged = changed
	return result, nil
}

// evaluate runs the quorum rule under the queue's lock.
func (s *IngestService) evaluate(ctx context.Context, sensor *domain.Sensor, candidate bool, at time.Time) (bool, error) {
	mu := s.queueLock(sensor.QueueID)
	mu.Lock()
	defer mu.Unlock()

	queue, err := s.queues.GetQueue(ctx, sensor.QueueID)
	if err != nil {
		// Telemetry was recorded; a missing queue row is a provisioning
		// problem, not a sensor error.
		s.logger.Error("sensor references unknown queue",
			zap.String("sensor_id", sensor.SensorID),
			zap.Int("queue_id", sensor.QueueID),
			zap.Error(err),
		)
		return false, nil
	}

	if queue.IsPowerOn == candidate {
		return false, nil // idle ping
	}

	partner, err := s.sensors.GetPartnerSensor(ctx, sensor.QueueID, sensor.SensorID)
	if err != nil {
		return false, err
	}
	if partner != nil {
		agrees, err := s.partnerAgrees(ctx, partner, candidate, at)
		if err != nil {
			return false, err
		}
		if !agrees {
			// Pending: held silently until a later ping from either
			// sensor reconciles.
			s.logger.Info("transition pending corroboration",
				zap.Int("queue_id", sensor.QueueID),
				zap.String("sensor_id", sensor.SensorID),
				zap.Bool("candidate_power_on", candidate),
			)
			return false, nil
		}
	}

	return s.commit(ctx, sensor.QueueID, candidate, at)
}

// partnerAgrees checks the partner's latest reading, preferring the
// bounded per-sensor cache and falling back to the readings table when
// the cache has no slot (e.g. after a restart).
func (s *IngestService) partnerAgrees(ctx context.Context, partner *domain.Sensor, candidate bool, at time.Time) (bool, error) {
	cached, err := s.readings.Latest(ctx, partner.SensorID)
	if err == nil {
		return at.Sub(cached.ReceivedAt) <= s.freshness && cached.IsPowerOn == candidate, nil
	}
	if err != store.ErrMiss {
		s.logger.Warn("reading cache lookup failed, falling back to db",
			zap.String("sensor_id", partner.SensorID),
			zap.Error(err),
		)
	}

	latest, err := s.sensors.LatestReading(ctx, partner.SensorID, s.freshness)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.IsPowerOn == candidate, nil
}

func (s *IngestService) commit(ctx context.Context, queueID int, isPowerOn bool, at time.Time) (bool, error) {
	committed, err := s.queues.CommitTransition(ctx, queueID, isPowerOn, domain.SourceIoT, at)
	if err != nil {
		return false, err
	}
	if !committed {
		// CAS guard missed: another ping already committed this event.
		return false, nil
	}

	if err := s.notifier.EnqueuePowerTransition(ctx, queueID, isPowerOn, at); err != nil {
		// The transition is committed either way; the job is lost only if
		// the fingerprint was never persisted, which the log captures.
		s.logger.Error("failed to enqueue transition notification",
			zap.Int("queue_id", queueID),
			zap.Error(err),
		)
	}
	return true, nil
}

// RegisterSensor provisions a sensor (idempotent by sensor id).
func (s *IngestService) RegisterSensor(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error) {
	if sensor.SensorID == "" || !domain.ValidQueueID(sensor.QueueID) || (sensor.Priority != 1 && sensor.Priority != 2) {
		return nil, domain.ErrInvalidInput
	}
	return s.sensors.RegisterSensor(ctx, sensor)
}

// ListSensors returns registered sensors, optionally one queue's.
func (s *IngestService) ListSensors(ctx context.Context, queueID int) ([]*domain.Sensor, error) {
	return s.sensors.ListSensors(ctx, queueID)
}

// SensorDetails returns a sensor with its recent readings.
func (s *IngestService) SensorDetails(ctx context.Context, sensorID string) (*domain.Sensor, []*domain.SensorReading, error) {
	sensor, err := s.sensors.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, nil, err
	}
	readings, err := s.sensors.RecentReadings(ctx, sensorID, 10)
	if err != nil {
		return nil, nil, err
	}
	return sensor, readings, nil
}

// CheckFleetHealth reports which sensors have gone silent.
func (s *IngestService) CheckFleetHealth(ctx context.Context) (*FleetHealth, error) {
	sensors, err := s.sensors.ListSensors(ctx, 0)
	if err != nil {
		return nil, err
	}

	health := &FleetHealth{TotalSensors: len(sensors), OfflineSensors: []map[string]any{}}
	threshold := time.Now().Add(-offlineThreshold)
	for _, sensor := range sensors {
		if sensor.LastPingAt != nil && sensor.LastPingAt.After(threshold) {
			health.Online++
			continue
		}
		health.OfflineSensors = append(health.OfflineSensors, map[string]any{
			"sensor_id": sensor.SensorID,
			"queue_id":  sensor.QueueID,
			"last_ping": sensor.LastPingAt,
		})
	}
	health.Offline = len(health.OfflineSensors)
	health.Health = "healthy"
	if health.Offline > 0 {
		health.Health = "degraded"
	}
	return health, nil
}

func powerStatus(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
