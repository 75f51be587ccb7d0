package aqi_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqmonitor/aqm/internal/aqi"
)

func TestToUSAQI(t *testing.T) {
	tests := []struct {
		name string
		pm25 float64
		want int
	}{
		{name: "zero", pm25: 0, want: 0},
		{name: "negative clamps to zero", pm25: -12, want: 0},
		{name: "NaN clamps to zero", pm25: math.NaN(), want: 0},
		{name: "top of good", pm25: 12.0, want: 50},
		{name: "start of moderate", pm25: 12.1, want: 51},
		{name: "start of sensitive", pm25: 35.5, want: 101},
		{name: "forty lands in sensitive segment", pm25: 40, want: 112},
		{name: "start of unhealthy", pm25: 55.5, want: 151},
		{name: "start of very unhealthy", pm25: 150.5, want: 201},
		{name: "start of hazardous", pm25: 250.5, want: 301},
		{name: "extrapolates past table", pm25: 600, want: 579},
		{name: "extrapolates far past table", pm25: 1e6, want: 796420},
		{name: "huge value is capped", pm25: 1e300, want: aqi.MaxIndex},
		{name: "positive infinity is capped", pm25: math.Inf(1), want: aqi.MaxIndex},
		{name: "negative infinity clamps to zero", pm25: math.Inf(-1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aqi.ToUSAQI(tt.pm25))
		})
	}
}

func TestToUSAQI_Monotonic(t *testing.T) {
	prev := aqi.ToUSAQI(0)
	for c := 0.0; c <= 600; c += 0.05 {
		got := aqi.ToUSAQI(c)
		if got < prev {
			t.Fatalf("ToUSAQI(%.2f) = %d, smaller than previous %d", c, got, prev)
		}
		prev = got
	}

	for _, c := range []float64{1e3, 1e6, 1e9, 2.7e9, 1e12, 1e300, math.MaxFloat64, math.Inf(1)} {
		got := aqi.ToUSAQI(c)
		if got < prev {
			t.Fatalf("ToUSAQI(%g) = %d, smaller than previous %d", c, got, prev)
		}
		assert.LessOrEqual(t, got, aqi.MaxIndex)
		prev = got
	}
}

func TestToUSAQI_ContinuousAtBreakpoints(t *testing.T) {
	for i := 1; i < len(aqi.Breakpoints); i++ {
		lower := aqi.Breakpoints[i-1]
		boundary := aqi.Breakpoints[i].ConcLow

		// Value of the lower segment's line evaluated at the boundary.
		slope := float64(lower.IndexHigh-lower.IndexLow) / (lower.ConcHigh - lower.ConcLow)
		fromLower := int(float64(lower.IndexLow) + slope*(boundary-lower.ConcLow))

		fromUpper := aqi.ToUSAQI(boundary)
		assert.InDelta(t, fromLower, fromUpper, 1, "boundary %.1f", boundary)
	}
}

func TestToPM25(t *testing.T) {
	assert.InDelta(t, 0.0, aqi.ToPM25(0), 1e-9)
	assert.InDelta(t, 0.0, aqi.ToPM25(-3), 1e-9)
	assert.InDelta(t, 12.0, aqi.ToPM25(50), 1e-9)
	assert.InDelta(t, 12.1, aqi.ToPM25(51), 1e-9)
	assert.InDelta(t, 35.4, aqi.ToPM25(100), 1e-9)
	assert.InDelta(t, 35.5, aqi.ToPM25(101), 1e-9)
	assert.InDelta(t, 250.5, aqi.ToPM25(301), 1e-9)
}

func TestRoundTrip(t *testing.T) {
	for index := 0; index <= 500; index++ {
		back := aqi.ToUSAQI(aqi.ToPM25(index))
		assert.InDelta(t, index, back, 1, "index %d", index)
	}
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, aqi.CategoryGood, aqi.CategoryFor(0))
	assert.Equal(t, aqi.CategoryGood, aqi.CategoryFor(50))
	assert.Equal(t, aqi.CategoryModerate, aqi.CategoryFor(51))
	assert.Equal(t, aqi.CategoryUnhealthySensitive, aqi.CategoryFor(112))
	assert.Equal(t, aqi.CategoryUnhealthy, aqi.CategoryFor(200))
	assert.Equal(t, aqi.CategoryVeryUnhealthy, aqi.CategoryFor(300))
	assert.Equal(t, aqi.CategoryHazardous, aqi.CategoryFor(579))
}
