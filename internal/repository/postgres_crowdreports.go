package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// PostgresCrowdReportsRepository implements CrowdReportRepository on the
// crowdreports table.
type PostgresCrowdReportsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresCrowdReportsRepository(db *sql.DB, logger *zap.Logger) *PostgresCrowdReportsRepository {
	return &PostgresCrowdReportsRepository{db: db, logger: logger}
}

var _ CrowdReportRepository = (*PostgresCrowdReportsRepository)(nil)

const crowdReportColumns = `id, user_id, address_id, queue_id, report_type, reported_at,
	status, moderated_at, moderated_by, latitude, longitude`

func scanCrowdReport(row interface{ Scan(...any) error }) (*domain.CrowdReport, error) {
	var c domain.CrowdReport
	if err := row.Scan(
		&c.ID, &c.UserID, &c.AddressID, &c.QueueID, &c.ReportType, &c.ReportedAt,
		&c.Status, &c.ModeratedAt, &c.ModeratedBy, &c.Latitude, &c.Longitude,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCrowdReportsRepository) CreateReport(ctx context.Context, report *domain.CrowdReport) (*domain.CrowdReport, error) {
	query := `
		INSERT INTO crowdreports (user_id, address_id, queue_id, report_type, status, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + crowdReportColumns
	status := report.Status
	if status == "" {
		status = domain.ReportStatusPending
	}
	created, err := scanCrowdReport(r.db.QueryRowContext(ctx, query,
		report.UserID, report.AddressID, report.QueueID, report.ReportType,
		status, report.Latitude, report.Longitude,
	))
	if err != nil {
		return nil, fmt.Errorf("create crowd report: %w", err)
	}
	return created, nil
}

func (r *PostgresCrowdReportsRepository) CountReports(ctx context.Context, queueID int, reportType string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM crowdreports
		WHERE queue_id = $1 AND report_type = $2 AND reported_at >= $3`
	var count int
	if err := r.db.QueryRowContext(ctx, query, queueID, reportType, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count crowd reports: %w", err)
	}
	return count, nil
}

func (r *PostgresCrowdReportsRepository) RecentReports(ctx context.Context, queueID int, limit int) ([]*domain.CrowdReport, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + crowdReportColumns + ` FROM crowdreports`
	args := []any{}
	if queueID > 0 {
		query += ` WHERE queue_id = $1`
		args = append(args, queueID)
	}
	query += fmt.Sprintf(` ORDER BY reported_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent crowd reports: %w", err)
	}
	defer rows.Close()
	return collectCrowdReports(rows)
}

func (r *PostgresCrowdReportsRepository) UserReports(ctx context.Context, userID int64, limit int) ([]*domain.CrowdReport, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + crowdReportColumns + `
		FROM crowdreports
		WHERE user_id = $1
		ORDER BY reported_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user crowd reports: %w", err)
	}
	defer rows.Close()
	return collectCrowdReports(rows)
}

func collectCrowdReports(rows *sql.Rows) ([]*domain.CrowdReport, error) {
	var reports []*domain.CrowdReport
	for rows.Next() {
		c, err := scanCrowdReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crowd report: %w", err)
		}
		reports = append(reports, c)
	}
	return reports, rows.Err()
}
