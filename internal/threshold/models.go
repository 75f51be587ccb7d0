// Package threshold stores per-user alert limits.
package threshold

import (
	"errors"
	"time"
)

var (
	// ErrThresholdNotFound is returned when a user has no explicit threshold.
	ErrThresholdNotFound = errors.New("threshold not found")

	// ErrInvalidLimit is returned for a limit that is not positive.
	ErrInvalidLimit = errors.New("threshold limits must be positive")
)

// Limits are the effective PM2.5, PM10 and AQI limits for a user.
type Limits struct {
	PM25 float64
	PM10 float64
	AQI  float64
}

// DefaultLimits apply to users without a stored threshold, and per field to
// thresholds that leave a limit unset.
var DefaultLimits = Limits{
	PM25: 35.5,
	PM10: 150,
	AQI:  100,
}

// Threshold is a user's stored alert configuration. Nil fields fall back to
// DefaultLimits.
type Threshold struct {
	ID        string
	UserID    string
	PM25      *float64
	PM10      *float64
	AQI       *float64
	UpdatedAt time.Time
}

// Effective resolves the limits in force for t. A nil threshold yields
// DefaultLimits.
func (t *Threshold) Effective() Limits {
	limits := DefaultLimits
	if t == nil {
		return limits
	}
	if t.PM25 != nil {
		limits.PM25 = *t.PM25
	}
	if t.PM10 != nil {
		limits.PM10 = *t.PM10
	}
	if t.AQI != nil {
		limits.AQI = *t.AQI
	}
	return limits
}

func (t *Threshold) copy() *Threshold {
	cpy := *t
	cpy.PM25 = copyFloat(t.PM25)
	cpy.PM10 = copyFloat(t.PM10)
	cpy.AQI = copyFloat(t.AQI)
	return &cpy
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
