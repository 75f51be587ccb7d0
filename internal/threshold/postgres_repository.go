package threshold

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL threshold repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByUser returns the user's threshold.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*Threshold, error) {
	query := `
		SELECT id, user_id, pm25_limit, pm10_limit, aqi_limit, updated_at
		FROM thresholds
		WHERE user_id = $1
	`

	var t Threshold
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&t.ID,
		&t.UserID,
		&t.PM25,
		&t.PM10,
		&t.AQI,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThresholdNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Upsert stores the user's threshold.
func (r *PostgresRepository) Upsert(ctx context.Context, t *Threshold) error {
	query := `
		INSERT INTO thresholds (id, user_id, pm25_limit, pm10_limit, aqi_limit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			pm25_limit = EXCLUDED.pm25_limit,
			pm10_limit = EXCLUDED.pm10_limit,
			aqi_limit = EXCLUDED.aqi_limit,
			updated_at = EXCLUDED.updated_at
	`

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query, t.ID, t.UserID, t.PM25, t.PM10, t.AQI, t.UpdatedAt)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
