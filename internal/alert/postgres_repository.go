package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL alert repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// The location is always read through the referenced measurement.
const selectAlerts = `
	SELECT
		a.id, a.user_id, COALESCE(a.threshold_id, ''), a.threshold_limit,
		a.measurement_id, m.location_id,
		a.pollutant, a.value, a.is_read, a.status, a.triggered_at
	FROM alerts a
	JOIN measurements m ON m.id = a.measurement_id
`

// Create stores a new alert.
func (r *PostgresRepository) Create(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, user_id, threshold_id, threshold_limit, measurement_id,
			pollutant, value, is_read, status, triggered_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.ThresholdID,
		a.Limit,
		a.MeasurementID,
		a.Pollutant,
		a.Value,
		a.Read,
		a.Status,
		a.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Alert, error) {
	a, err := scanAlert(r.pool.QueryRow(ctx, selectAlerts+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update persists the read flag and status of an existing alert.
func (r *PostgresRepository) Update(ctx context.Context, a *Alert) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alerts SET is_read = $2, status = $3 WHERE id = $1`,
		a.ID, a.Read, a.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListRecent returns the user's alerts for a pollutant triggered after since.
func (r *PostgresRepository) ListRecent(ctx context.Context, userID string, pollutant measurement.Pollutant, since time.Time) ([]*Alert, error) {
	query := selectAlerts + `
		WHERE a.user_id = $1 AND a.pollutant = $2 AND a.triggered_at > $3
		ORDER BY a.triggered_at DESC
	`
	return r.queryAlerts(ctx, query, userID, pollutant, since)
}

// ListByUser returns the user's alerts, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*Alert, error) {
	query := selectAlerts + `
		WHERE a.user_id = $1 AND (NOT $2 OR NOT a.is_read)
		ORDER BY a.triggered_at DESC, a.id DESC
	`
	return r.queryAlerts(ctx, query, userID, unreadOnly)
}

// CountUnread returns the number of unread alerts for the user.
func (r *PostgresRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND NOT is_read`,
		userID,
	).Scan(&count)
	return count, err
}

func (r *PostgresRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*Alert, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ThresholdID,
		&a.Limit,
		&a.MeasurementID,
		&a.LocationID,
		&a.Pollutant,
		&a.Value,
		&a.Read,
		&a.Status,
		&a.TriggeredAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
