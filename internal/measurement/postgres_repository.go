package measurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL measurement repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const measurementColumns = `
	id, location_id, sensor_id, measured_at,
	pm25, pm10, no2, so2, co, o3, aqi
`

// Get retrieves a measurement by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE id = $1`

	m, err := scanMeasurement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeasurementNotFound
		}
		return nil, err
	}
	return m, nil
}

// Create stores a new measurement.
func (r *PostgresRepository) Create(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.LocationID,
		m.SensorID,
		m.Timestamp,
		m.PM25,
		m.PM10,
		m.NO2,
		m.SO2,
		m.CO,
		m.O3,
		m.AQI,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// ListSince returns the measurements for a location after since, oldest first.
func (r *PostgresRepository) ListSince(ctx context.Context, locationID string, since time.Time) ([]*Measurement, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		WHERE location_id = $1 AND measured_at > $2
		ORDER BY measured_at ASC
	`

	return r.queryMeasurements(ctx, query, locationID, since)
}

// LatestPerLocation returns the most recent measurement of every location.
func (r *PostgresRepository) LatestPerLocation(ctx context.Context) ([]*Measurement, error) {
	query := `
		SELECT DISTINCT ON (location_id) ` + measurementColumns + `
		FROM measurements
		ORDER BY location_id, measured_at DESC
	`

	return r.queryMeasurements(ctx, query)
}

// GetLocation retrieves a location by ID.
func (r *PostgresRepository) GetLocation(ctx context.Context, id string) (*Location, error) {
	query := `
		SELECT id, name, lat, lon, timezone
		FROM locations
		WHERE id = $1
	`

	var loc Location
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&loc.ID,
		&loc.Name,
		&loc.Lat,
		&loc.Lon,
		&loc.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// ListLocations returns all known locations ordered by ID.
func (r *PostgresRepository) ListLocations(ctx context.Context) ([]*Location, error) {
	query := `SELECT id, name, lat, lon, timezone FROM locations ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lon, &loc.Timezone); err != nil {
			return nil, err
		}
		locations = append(locations, &loc)
	}
	return locations, rows.Err()
}

func (r *PostgresRepository) queryMeasurements(ctx context.Context, query string, args ...interface{}) ([]*Measurement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var m Measurement
	err := row.Scan(
		&m.ID,
		&m.LocationID,
		&m.SensorID,
		&m.Timestamp,
		&m.PM25,
		&m.PM10,
		&m.NO2,
		&m.SO2,
		&m.CO,
		&m.O3,
		&m.AQI,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
