package forecast

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqmonitor/aqm/internal/database"
)

// replaceLockClass namespaces the advisory locks taken by Replace.
const replaceLockClass int32 = 0x46434153

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
	txer database.TxBeginner
}

// NewPostgresRepository creates a new PostgreSQL forecast repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, txer: pool}
}

// Replace deletes and inserts within one transaction so readers never see
// a location without forecasts. Concurrent replaces of the same location,
// from any process, are serialized by a transaction-scoped advisory lock
// taken before the DELETE.
func (r *PostgresRepository) Replace(ctx context.Context, locationID string, forecasts []*Forecast) error {
	return database.WithTx(ctx, r.txer, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, replaceLockClass, locationID); err != nil {
			return fmt.Errorf("lock location forecasts: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM forecasts WHERE location_id = $1`, locationID); err != nil {
			return fmt.Errorf("delete forecasts: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"forecasts"},
			[]string{
				"id", "location_id", "forecast_at",
				"predicted_pm25", "predicted_pm10", "predicted_aqi",
				"model_version", "created_at",
			},
			pgx.CopyFromSlice(len(forecasts), func(i int) ([]any, error) {
				f := forecasts[i]
				return []any{
					f.ID, f.LocationID, f.Timestamp,
					f.PredictedPM25, f.PredictedPM10, f.PredictedAQI,
					f.ModelVersion, f.CreatedAt,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert forecasts: %w", err)
		}
		return nil
	})
}

// ListByLocation returns a location's forecasts in time order.
func (r *PostgresRepository) ListByLocation(ctx context.Context, locationID string) ([]*Forecast, error) {
	query := `
		SELECT id, location_id, forecast_at, predicted_pm25, predicted_pm10, predicted_aqi,
			model_version, created_at
		FROM forecasts
		WHERE location_id = $1
		ORDER BY forecast_at ASC
	`

	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Forecast
	for rows.Next() {
		var f Forecast
		if err := rows.Scan(
			&f.ID,
			&f.LocationID,
			&f.Timestamp,
			&f.PredictedPM25,
			&f.PredictedPM10,
			&f.PredictedAQI,
			&f.ModelVersion,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	return result, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
