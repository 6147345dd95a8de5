package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// PostgresQueuesRepository implements QueueRepository on the queues table.
type PostgresQueuesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresQueuesRepository(db *sql.DB, logger *zap.Logger) *PostgresQueuesRepository {
	return &PostgresQueuesRepository{db: db, logger: logger}
}

var _ QueueRepository = (*PostgresQueuesRepository)(nil)

const queueColumns = `queue_id, name, is_power_on, last_change_at, last_change_source,
	total_outages, total_uptime_minutes, created_at`

func scanQueue(row interface{ Scan(...any) error }) (*domain.Queue, error) {
	var q domain.Queue
	if err := row.Scan(
		&q.QueueID, &q.Name, &q.IsPowerOn, &q.LastChangeAt, &q.LastChangeSource,
		&q.TotalOutages, &q.TotalUptimeMinutes, &q.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *PostgresQueuesRepository) GetQueue(ctx context.Context, queueID int) (*domain.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues WHERE queue_id = $1`
	q, err := scanQueue(r.db.QueryRowContext(ctx, query, queueID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("queue %d: %w", queueID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get queue: %w", err)
	}
	return q, nil
}

func (r *PostgresQueuesRepository) ListQueues(ctx context.Context) ([]*domain.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues ORDER BY queue_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []*domain.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

// CommitTransition performs the guarded state flip. The WHERE clause is
// the compare-and-set: it only matches while the row still holds the
// pre-transition state, so concurrent commits collapse to one row update
// and total_outages moves by exactly one per ON->OFF.
func (r *PostgresQueuesRepository) CommitTransition(ctx context.Context, queueID int, isPowerOn bool, source string, at time.Time) (bool, error) {
	query := `
		UPDATE queues
		SET is_power_on = $2,
		    last_change_at = $3,
		    last_change_source = $4,
		    total_outages = total_outages + CASE WHEN $2 THEN 0 ELSE 1 END
		WHERE queue_id = $1 AND is_power_on = NOT $2`
	res, err := r.db.ExecContext(ctx, query, queueID, isPowerOn, at, source)
	if err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit transition rows: %w", err)
	}
	if n == 0 {
		// Either the queue does not exist or it already holds the target
		// state; the caller distinguishes via GetQueue.
		return false, nil
	}
	r.logger.Info("queue transition committed",
		zap.Int("queue_id", queueID),
		zap.Bool("is_power_on", isPowerOn),
		zap.String("source", source),
	)
	return true, nil
}

func (r *PostgresQueuesRepository) EnsureQueues(ctx context.Context, n int) error {
	query := `
		INSERT INTO queues (queue_id, name, is_power_on)
		VALUES ($1, $2, true)
		ON CONFLICT (queue_id) DO NOTHING`
	for i := 1; i <= n; i++ {
		if _, err := r.db.ExecContext(ctx, query, i, fmt.Sprintf("Черга %d", i)); err != nil {
			return fmt.Errorf("ensure queue %d: %w", i, err)
		}
	}
	return nil
}
