// Package worker runs the background jobs of the AQM pipeline: alert
// evaluation handed over from ingestion, on-demand user checks and the
// periodic forecast refresh.
package worker

import (
	"errors"
	"fmt"
	"time"
)

// Job types accepted on the job subscription.
const (
	JobEvaluateMeasurement = "evaluate_measurement"
	JobForecastRefresh     = "forecast_refresh"
	JobCheckUser           = "check_user"
)

var (
	// ErrInvalidJob is returned for a job that is missing required fields.
	ErrInvalidJob = errors.New("invalid job")

	// ErrUnknownJobType is returned for a job type the worker does not handle.
	ErrUnknownJobType = errors.New("unknown job type")
)

// Job is a unit of background work, delivered as JSON.
type Job struct {
	JobType       string `json:"job_type"`
	MeasurementID string `json:"measurement_id,omitempty"`

	// LocationID restricts a forecast refresh to one location. Empty means
	// every location.
	LocationID string `json:"location_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

// Validate checks that the job carries the fields its type needs.
func (j Job) Validate() error {
	switch j.JobType {
	case JobEvaluateMeasurement:
		if j.MeasurementID == "" {
			return fmt.Errorf("%w: %s requires measurement_id", ErrInvalidJob, j.JobType)
		}
	case JobCheckUser:
		if j.UserID == "" {
			return fmt.Errorf("%w: %s requires user_id", ErrInvalidJob, j.JobType)
		}
	case JobForecastRefresh:
	case "":
		return fmt.Errorf("%w: job_type is required", ErrInvalidJob)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, j.JobType)
	}
	return nil
}

// RefreshConfig holds configuration for the periodic forecast refresh.
type RefreshConfig struct {
	// Interval between refresh runs.
	// Default: 3 hours
	Interval time.Duration

	// Timeout bounds a single refresh run.
	// Default: 5 minutes
	Timeout time.Duration

	// RunOnStart triggers a refresh as soon as the refresher starts.
	RunOnStart bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:   3 * time.Hour,
		Timeout:    5 * time.Minute,
		RunOnStart: true,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
