// Package aqi converts PM2.5 concentrations to the US EPA Air Quality Index
// and back.
package aqi

import "math"

// Breakpoint is one segment of the PM2.5 index table.
type Breakpoint struct {
	ConcLow   float64 // µg/m³, inclusive
	ConcHigh  float64 // µg/m³, upper end used for interpolation
	IndexLow  int
	IndexHigh int
}

// Breakpoints is the PM2.5 breakpoint table shared by both conversion
// directions. Segment i covers [ConcLow_i, ConcLow_{i+1}); the last segment
// is extrapolated linearly past its upper end.
var Breakpoints = []Breakpoint{
	{ConcLow: 0.0, ConcHigh: 12.0, IndexLow: 0, IndexHigh: 50},
	{ConcLow: 12.1, ConcHigh: 35.4, IndexLow: 51, IndexHigh: 100},
	{ConcLow: 35.5, ConcHigh: 55.4, IndexLow: 101, IndexHigh: 150},
	{ConcLow: 55.5, ConcHigh: 150.4, IndexLow: 151, IndexHigh: 200},
	{ConcLow: 150.5, ConcHigh: 250.4, IndexLow: 201, IndexHigh: 300},
	{ConcLow: 250.5, ConcHigh: 500.4, IndexLow: 301, IndexHigh: 500},
}

// MaxIndex caps extrapolated AQI values so they fit a 32-bit column.
const MaxIndex = math.MaxInt32

// ToUSAQI maps a PM2.5 concentration to the US AQI. Negative and NaN inputs
// are treated as 0 and results above MaxIndex, +Inf included, are capped.
// The result is truncated, never rounded.
func ToUSAQI(pm25 float64) int {
	if pm25 < 0 || math.IsNaN(pm25) {
		pm25 = 0
	}
	if math.IsInf(pm25, 1) {
		return MaxIndex
	}

	bp := segmentForConcentration(pm25)
	slope := float64(bp.IndexHigh-bp.IndexLow) / (bp.ConcHigh - bp.ConcLow)
	index := float64(bp.IndexLow) + slope*(pm25-bp.ConcLow)
	if index >= MaxIndex {
		return MaxIndex
	}
	return int(index)
}

// ToPM25 maps an AQI value back to the lowest PM2.5 concentration that
// produces it, using the same table as ToUSAQI.
func ToPM25(index int) float64 {
	if index < 0 {
		index = 0
	}

	bp := segmentForIndex(index)
	slope := (bp.ConcHigh - bp.ConcLow) / float64(bp.IndexHigh-bp.IndexLow)
	return bp.ConcLow + slope*float64(index-bp.IndexLow)
}

func segmentForConcentration(pm25 float64) Breakpoint {
	for i := len(Breakpoints) - 1; i > 0; i-- {
		if pm25 >= Breakpoints[i].ConcLow {
			return Breakpoints[i]
		}
	}
	return Breakpoints[0]
}

func segmentForIndex(index int) Breakpoint {
	for i := len(Breakpoints) - 1; i > 0; i-- {
		if index >= Breakpoints[i].IndexLow {
			return Breakpoints[i]
		}
	}
	return Breakpoints[0]
}

// Category is the EPA health category of an index value.
type Category string

const (
	CategoryGood               Category = "Good"
	CategoryModerate           Category = "Moderate"
	CategoryUnhealthySensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          Category = "Unhealthy"
	CategoryVeryUnhealthy      Category = "Very Unhealthy"
	CategoryHazardous          Category = "Hazardous"
)

// CategoryFor returns the health category for an index value.
func CategoryFor(index int) Category {
	switch {
	case index <= 50:
		return CategoryGood
	case index <= 100:
		return CategoryModerate
	case index <= 150:
		return CategoryUnhealthySensitive
	case index <= 200:
		return CategoryUnhealthy
	case index <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
