package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// PostgresUsersRepository implements UserRepository on the users table.
type PostgresUsersRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresUsersRepository(db *sql.DB, logger *zap.Logger) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db, logger: logger}
}

var _ UserRepository = (*PostgresUsersRepository)(nil)

const userColumns = `user_id, username, first_name, subscription_tier, primary_queue_id,
	is_active, is_bot_blocked, COALESCE(notification_settings, '{}'::jsonb), created_at`

func (r *PostgresUsersRepository) scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var settingsRaw json.RawMessage
	if err := row.Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.SubscriptionTier, &u.PrimaryQueueID,
		&u.IsActive, &u.IsBotBlocked, &settingsRaw, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settingsRaw, &u.Settings); err != nil {
		// Malformed settings fall back to defaults rather than dropping
		// the recipient.
		r.logger.Warn("unparseable notification settings",
			zap.Int64("user_id", u.UserID),
			zap.Error(err),
		)
		u.Settings = domain.NotificationSettings{}
	}
	return &u, nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := r.scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) ActiveByQueue(ctx context.Context, queueID int, tierFilter []string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE primary_queue_id = $1 AND is_active = true AND is_bot_blocked = false`
	args := []any{queueID}
	if len(tierFilter) > 0 {
		query += ` AND subscription_tier = ANY($2)`
		args = append(args, pq.Array(tierFilter))
	}
	return r.queryUsers(ctx, query, args...)
}

func (r *PostgresUsersRepository) ActiveAll(ctx context.Context, tierFilter []string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE is_active = true AND is_bot_blocked = false`
	args := []any{}
	if len(tierFilter) > 0 {
		query += ` AND subscription_tier = ANY($1)`
		args = append(args, pq.Array(tierFilter))
	}
	return r.queryUsers(ctx, query, args...)
}

func (r *PostgresUsersRepository) ActiveByIDs(ctx context.Context, userIDs []int64) ([]*domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE user_id = ANY($1) AND is_active = true AND is_bot_blocked = false`
	return r.queryUsers(ctx, query, pq.Array(userIDs))
}

func (r *PostgresUsersRepository) CountByQueue(ctx context.Context, queueID int) (int, map[string]int, error) {
	query := `
		SELECT subscription_tier, COUNT(*)
		FROM users
		WHERE primary_queue_id = $1
		GROUP BY subscription_tier`
	rows, err := r.db.QueryContext(ctx, query, queueID)
	if err != nil {
		return 0, nil, fmt.Errorf("count users by queue: %w", err)
	}
	defer rows.Close()

	total := 0
	byTier := map[string]int{}
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return 0, nil, fmt.Errorf("scan user count: %w", err)
		}
		byTier[tier] = count
		total += count
	}
	return total, byTier, rows.Err()
}

func (r *PostgresUsersRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
