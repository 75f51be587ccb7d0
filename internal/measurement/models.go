// Package measurement provides air-quality measurement storage and ingestion.
package measurement

import (
	"errors"
	"time"

	"github.com/aqmonitor/aqm/internal/aqi"
)

// Repository errors.
var (
	ErrMeasurementNotFound = errors.New("measurement not found")
	ErrLocationNotFound    = errors.New("location not found")
)

// Pollutant names a measured quantity. The string values are the ones stored
// on alerts and shown to users.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM2.5"
	PollutantPM10 Pollutant = "PM10"
	PollutantAQI  Pollutant = "AQI"
	PollutantNO2  Pollutant = "NO2"
	PollutantSO2  Pollutant = "SO2"
	PollutantCO   Pollutant = "CO"
	PollutantO3   Pollutant = "O3"
)

// AllPollutants lists every pollutant in evaluation order.
var AllPollutants = []Pollutant{
	PollutantPM25, PollutantPM10, PollutantAQI,
	PollutantNO2, PollutantSO2, PollutantCO, PollutantO3,
}

// Valid reports whether p is a known pollutant.
func (p Pollutant) Valid() bool {
	for _, known := range AllPollutants {
		if p == known {
			return true
		}
	}
	return false
}

// Unit returns the display unit for the pollutant.
func (p Pollutant) Unit() string {
	switch p {
	case PollutantAQI:
		return ""
	case PollutantPM25, PollutantPM10:
		return "µg/m³"
	default:
		return "mg/m³"
	}
}

// Location is a monitored place.
type Location struct {
	ID       string
	Name     string
	Lat      float64
	Lon      float64
	Timezone string
}

// Measurement is a single sensor reading at a location. Pollutant fields are
// nil when the sensor did not report them.
type Measurement struct {
	ID         string
	LocationID string
	SensorID   string
	Timestamp  time.Time

	PM25 *float64
	PM10 *float64
	NO2  *float64
	SO2  *float64
	CO   *float64
	O3   *float64

	// AQI is derived from PM25 by Annotate and is never recomputed once set.
	AQI *int
}

// Annotate computes the AQI from PM2.5 if it has not been computed yet.
func (m *Measurement) Annotate() {
	if m.AQI != nil || m.PM25 == nil {
		return
	}
	index := aqi.ToUSAQI(*m.PM25)
	m.AQI = &index
}

// Value returns the measured value for a pollutant and whether it was
// reported.
func (m *Measurement) Value(p Pollutant) (float64, bool) {
	var v *float64
	switch p {
	case PollutantPM25:
		v = m.PM25
	case PollutantPM10:
		v = m.PM10
	case PollutantNO2:
		v = m.NO2
	case PollutantSO2:
		v = m.SO2
	case PollutantCO:
		v = m.CO
	case PollutantO3:
		v = m.O3
	case PollutantAQI:
		if m.AQI == nil {
			return 0, false
		}
		return float64(*m.AQI), true
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Copy returns a deep copy of the measurement.
func (m *Measurement) Copy() *Measurement {
	if m == nil {
		return nil
	}
	cpy := *m
	cpy.PM25 = copyFloat(m.PM25)
	cpy.PM10 = copyFloat(m.PM10)
	cpy.NO2 = copyFloat(m.NO2)
	cpy.SO2 = copyFloat(m.SO2)
	cpy.CO = copyFloat(m.CO)
	cpy.O3 = copyFloat(m.O3)
	if m.AQI != nil {
		v := *m.AQI
		cpy.AQI = &v
	}
	return &cpy
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// LatestPerLocation reduces measurements to the most recent one per location.
// Ties on timestamp keep the first one seen. The result is ordered by
// location ID.
func LatestPerLocation(measurements []*Measurement) []*Measurement {
	latest := make(map[string]*Measurement)
	for _, m := range measurements {
		if m == nil {
			continue
		}
		cur, ok := latest[m.LocationID]
		if !ok || m.Timestamp.After(cur.Timestamp) {
			latest[m.LocationID] = m
		}
	}

	result := make([]*Measurement, 0, len(latest))
	for _, m := range latest {
		result = append(result, m)
	}
	sortByLocation(result)
	return result
}
