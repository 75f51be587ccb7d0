// Package alert evaluates measurements against user thresholds and records
// the resulting alerts.
package alert

import (
	"errors"
	"time"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// Repository errors.
var (
	ErrAlertNotFound = errors.New("alert not found")
)

// Status is the lifecycle state of an alert. The only transition is
// SENT to ACKNOWLEDGED.
type Status string

const (
	StatusSent         Status = "SENT"
	StatusAcknowledged Status = "ACKNOWLEDGED"
)

// Alert records a threshold crossing for a user.
type Alert struct {
	// ID is the unique alert identifier (format: alt_XXXX).
	ID     string
	UserID string

	// ThresholdID is the stored threshold in force, empty when the user
	// had none and the defaults applied.
	ThresholdID string

	// Limit is the effective limit the value was compared against.
	Limit float64

	// MeasurementID references the triggering measurement; LocationID is
	// that measurement's location.
	MeasurementID string
	LocationID    string

	Pollutant measurement.Pollutant
	Value     float64

	Read   bool
	Status Status

	// TriggeredAt is the evaluation time, not the measurement time.
	TriggeredAt time.Time
}

// Acknowledge marks the alert as read. Acknowledging twice is a no-op.
func (a *Alert) Acknowledge() {
	a.Read = true
	a.Status = StatusAcknowledged
}

// FixedCeilings are the limits for pollutants that have no per-user
// threshold, in the measurement's native units.
var FixedCeilings = map[measurement.Pollutant]float64{
	measurement.PollutantNO2: 0.1,
	measurement.PollutantSO2: 0.5,
	measurement.PollutantCO:  10,
	measurement.PollutantO3:  0.12,
}
