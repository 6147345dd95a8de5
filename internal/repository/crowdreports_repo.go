package repository

import (
	"context"
	"time"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// CrowdReportRepository stores advisory user reports and serves rolling
// window counts over them.
type CrowdReportRepository interface {
	CreateReport(ctx context.Context, report *domain.CrowdReport) (*domain.CrowdReport, error)
	CountReports(ctx context.Context, queueID int, reportType string, since time.Time) (int, error)
	RecentReports(ctx context.Context, queueID int, limit int) ([]*domain.CrowdReport, error)
	UserReports(ctx context.Context, userID int64, limit int) ([]*domain.CrowdReport, error)
}
