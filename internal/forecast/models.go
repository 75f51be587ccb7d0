// Package forecast projects short-horizon pollutant levels from recent
// measurements.
package forecast

import (
	"errors"
	"time"
)

// ErrInsufficientData is returned when a location has no measurements in
// the trailing window.
var ErrInsufficientData = errors.New("insufficient data for forecast")

// ModelVersion tags rows produced by the linear trend method.
const ModelVersion = "linear-trend-v1"

// Forecast is one projected point for a location.
type Forecast struct {
	// ID is the unique forecast identifier (format: fct_XXXX).
	ID         string
	LocationID string

	// Timestamp is the future time the prediction applies to.
	Timestamp time.Time

	PredictedPM25 float64
	PredictedPM10 float64
	PredictedAQI  int

	ModelVersion string
	CreatedAt    time.Time
}
