package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// PostgresNotificationsRepository implements NotificationRepository on the
// notifications table.
type PostgresNotificationsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresNotificationsRepository(db *sql.DB, logger *zap.Logger) *PostgresNotificationsRepository {
	return &PostgresNotificationsRepository{db: db, logger: logger}
}

var _ NotificationRepository = (*PostgresNotificationsRepository)(nil)

const notificationColumns = `id, fingerprint, queue_id, kind, message, tier_filter,
	status, success_count, fail_count, created_at, sent_at`

func scanNotification(row interface{ Scan(...any) error }) (*domain.Notification, error) {
	var n domain.Notification
	var tiers pq.StringArray
	if err := row.Scan(
		&n.ID, &n.Fingerprint, &n.QueueID, &n.Kind, &n.Message, &tiers,
		&n.Status, &n.SuccessCount, &n.FailCount, &n.CreatedAt, &n.SentAt,
	); err != nil {
		return nil, err
	}
	n.TierFilter = []string(tiers)
	return &n, nil
}

// CreateJob relies on the unique index on fingerprint: the ON CONFLICT
// no-op makes a duplicate enqueue of the same confirmed transition report
// created=false instead of a second job row.
func (r *PostgresNotificationsRepository) CreateJob(ctx context.Context, job *domain.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, fingerprint, queue_id, kind, message, tier_filter, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fingerprint) DO NOTHING`
	status := job.Status
	if status == "" {
		status = domain.JobStatusQueued
	}
	res, err := r.db.ExecContext(ctx, query,
		job.ID, job.Fingerprint, job.QueueID, job.Kind, job.Message,
		pq.Array(job.TierFilter), status,
	)
	if err != nil {
		return false, fmt.Errorf("create notification job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create notification job rows: %w", err)
	}
	if n == 0 {
		r.logger.Info("duplicate notification job suppressed",
			zap.String("fingerprint", job.Fingerprint),
		)
		return false, nil
	}
	return true, nil
}

func (r *PostgresNotificationsRepository) MarkInFlight(ctx context.Context, jobID string, at time.Time) error {
	query := `UPDATE notifications SET status = $2, sent_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, jobID, domain.JobStatusInFlight, at); err != nil {
		return fmt.Errorf("mark job in flight: %w", err)
	}
	return nil
}

func (r *PostgresNotificationsRepository) FinishJob(ctx context.Context, jobID string, status string, success, failed int) error {
	query := `
		UPDATE notifications
		SET status = $2, success_count = $3, fail_count = $4
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, jobID, status, success, failed); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func (r *PostgresNotificationsRepository) GetJob(ctx context.Context, jobID string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationsRepository) History(ctx context.Context, queueID int, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	args := []any{}
	if queueID > 0 {
		query += ` WHERE queue_id = $1`
		args = append(args, queueID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notification history: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		jobs = append(jobs, n)
	}
	return jobs, rows.Err()
}

func (r *PostgresNotificationsRepository) Stats(ctx context.Context, since time.Time) (*NotificationStats, error) {
	query := `
		SELECT kind, COUNT(*), COALESCE(SUM(success_count), 0), COALESCE(SUM(fail_count), 0)
		FROM notifications
		WHERE created_at >= $1
		GROUP BY kind`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	defer rows.Close()

	stats := &NotificationStats{ByKind: map[string]int{}}
	for rows.Next() {
		var kind string
		var jobs, success, failed int
		if err := rows.Scan(&kind, &jobs, &success, &failed); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByKind[kind] = jobs
		stats.TotalJobs += jobs
		stats.TotalSuccess += success
		stats.TotalFailed += failed
	}
	return stats, rows.Err()
}

func (r *PostgresNotificationsRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old notifications rows: %w", err)
	}
	return n, nil
}
