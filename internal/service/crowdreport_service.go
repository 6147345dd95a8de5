package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
)

// CrowdReportService records user-submitted power observations and serves
// aggregate counts over them. Reports are advisory corroboration only:
// nothing here touches queue state.
type CrowdReportService struct {
	reports repository.CrowdReportRepository
	logger  *zap.Logger
}

func NewCrowdReportService(reports repository.CrowdReportRepository, logger *zap.Logger) *CrowdReportService {
	return &CrowdReportService{reports: reports, logger: logger}
}

// SubmitReport validates and appends one crowd report.
func (s *CrowdReportService) SubmitReport(ctx context.Context, report *domain.CrowdReport) (*domain.CrowdReport, error) {
	if !domain.ValidReportType(report.ReportType) {
		return nil, domain.ErrInvalidInput
	}
	if !domain.ValidQueueID(report.QueueID) {
		return nil, domain.ErrInvalidInput
	}
	created, err := s.reports.CreateReport(ctx, report)
	if err != nil {
		return nil, err
	}
	s.logger.Info("crowd report recorded",
		zap.Int64("user_id", created.UserID),
		zap.Int("queue_id", created.QueueID),
		zap.String("report_type", created.ReportType),
	)
	return created, nil
}

// GetStats counts on/off reports for a queue within the rolling window.
func (s *CrowdReportService) GetStats(ctx context.Context, queueID, windowMinutes int) (*domain.CrowdReportStats, error) {
	if !domain.ValidQueueID(queueID) {
		return nil, domain.ErrInvalidInput
	}
	if windowMinutes <= 0 {
		windowMinutes = 30
	}
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	onCount, err := s.reports.CountReports(ctx, queueID, domain.ReportPowerOn, since)
	if err != nil {
		return nil, err
	}
	offCount, err := s.reports.CountReports(ctx, queueID, domain.ReportPowerOff, since)
	if err != nil {
		return nil, err
	}

	return &domain.CrowdReportStats{
		QueueID:       queueID,
		OnCount:       onCount,
		OffCount:      offCount,
		PeriodMinutes: windowMinutes,
		LastUpdate:    time.Now(),
	}, nil
}

// RecentReports returns the latest reports, optionally one queue's.
func (s *CrowdReportService) RecentReports(ctx context.Context, queueID, limit int) ([]*domain.CrowdReport, error) {
	return s.reports.RecentReports(ctx, queueID, limit)
}

// UserReports returns one user's report history.
func (s *CrowdReportService) UserReports(ctx context.Context, userID int64, limit int) ([]*domain.CrowdReport, error) {
	return s.reports.UserReports(ctx, userID, limit)
}
