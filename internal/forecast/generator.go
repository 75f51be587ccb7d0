package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/telemetry"
)

// Projection constants.
const (
	Steps           = 16
	StepInterval    = 3 * time.Hour
	TrailingWindow  = 24 * time.Hour
	TrendWeight     = 0.1
	ScalePM25       = 1.0
	ScalePM10       = 1.2
	ScaleAQI        = 1.0
	JitterAmplitude = 2.5
)

// RandomSource yields values in [0, 1).
type RandomSource interface {
	Float64() float64
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

// NewRandomSource returns a concurrency-safe source seeded with seed.
func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))} //nolint:gosec // jitter, not security
}

// GeneratorConfig holds configuration for the forecast generator.
type GeneratorConfig struct {
	Measurements measurement.Repository
	Forecasts    Repository

	// Random drives the jitter. Default: time-seeded source.
	Random RandomSource

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// Concurrency bounds GenerateAll. Default: 4
	Concurrency int

	Metrics *telemetry.PipelineMetrics
	Logger  zerolog.Logger
}

// Generator produces trend-plus-jitter forecasts.
type Generator struct {
	measurements measurement.Repository
	forecasts    Repository
	random       RandomSource
	now          func() time.Time
	concurrency  int
	metrics      *telemetry.PipelineMetrics
	logger       zerolog.Logger
}

// NewGenerator creates a forecast generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Random == nil {
		cfg.Random = NewRandomSource(time.Now().UnixNano())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Generator{
		measurements: cfg.Measurements,
		forecasts:    cfg.Forecasts,
		random:       cfg.Random,
		now:          cfg.Now,
		concurrency:  cfg.Concurrency,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Baseline holds the trailing averages and trend of a location.
type Baseline struct {
	PM25  float64
	PM10  float64
	AQI   float64
	Trend float64
}

// ComputeBaseline averages the measurements, ignoring missing values, and
// derives the trend as the relative change in mean AQI between the older and
// newer half. measurements must be in time order.
func ComputeBaseline(measurements []*measurement.Measurement) Baseline {
	return Baseline{
		PM25:  average(measurements, measurement.PollutantPM25),
		PM10:  average(measurements, measurement.PollutantPM10),
		AQI:   average(measurements, measurement.PollutantAQI),
		Trend: trend(measurements),
	}
}

func average(ms []*measurement.Measurement, p measurement.Pollutant) float64 {
	var sum float64
	var n int
	for _, m := range ms {
		if v, ok := m.Value(p); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func trend(ms []*measurement.Measurement) float64 {
	if len(ms) < 2 {
		return 0
	}
	half := len(ms) / 2
	first := average(ms[:half], measurement.PollutantAQI)
	second := average(ms[half:], measurement.PollutantAQI)
	if first == 0 {
		return 0
	}
	return (second - first) / first
}

// Generate replaces the forecasts of a location with a fresh projection.
// It returns measurement.ErrLocationNotFound for unknown locations and
// ErrInsufficientData when the trailing window is empty.
func (g *Generator) Generate(ctx context.Context, locationID string) ([]*Forecast, error) {
	if _, err := g.measurements.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}

	now := g.now().UTC()
	recent, err := g.measurements.ListSince(ctx, locationID, now.Add(-TrailingWindow))
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	if len(recent) == 0 {
		g.metrics.ForecastRun(ctx, "insufficient_data")
		return nil, ErrInsufficientData
	}

	forecasts := g.project(locationID, now, ComputeBaseline(recent))

	if err := g.forecasts.Replace(ctx, locationID, forecasts); err != nil {
		g.metrics.ForecastRun(ctx, "error")
		return nil, fmt.Errorf("store forecasts: %w", err)
	}
	g.metrics.ForecastRun(ctx, "ok")

	g.logger.Debug().
		Str("location_id", locationID).
		Int("samples", len(recent)).
		Msg("forecast generated")

	return forecasts, nil
}

func (g *Generator) project(locationID string, now time.Time, b Baseline) []*Forecast {
	forecasts := make([]*Forecast, 0, Steps)
	for i := 1; i <= Steps; i++ {
		drift := b.Trend * float64(i) * TrendWeight
		// One jitter draw per step, shared by all pollutants.
		jitter := (g.random.Float64()*2 - 1) * JitterAmplitude

		forecasts = append(forecasts, &Forecast{
			ID:            "fct_" + uuid.New().String()[:22],
			LocationID:    locationID,
			Timestamp:     now.Add(time.Duration(i) * StepInterval),
			PredictedPM25: clamp(b.PM25 + drift*ScalePM25 + jitter),
			PredictedPM10: clamp(b.PM10 + drift*ScalePM10 + jitter),
			PredictedAQI:  int(clamp(b.AQI + drift*ScaleAQI + jitter)),
			ModelVersion:  ModelVersion,
			CreatedAt:     now,
		})
	}
	return forecasts
}

func clamp(v float64) float64 {
	return math.Max(0, v)
}

// Latest returns the stored forecasts of a location.
func (g *Generator) Latest(ctx context.Context, locationID string) ([]*Forecast, error) {
	if _, err := g.measurements.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return g.forecasts.ListByLocation(ctx, locationID)
}

// RunSummary counts the outcome of GenerateAll.
type RunSummary struct {
	Generated int
	Skipped   int
	Failed    int
}

// GenerateAll regenerates every location in parallel. Locations without
// recent data are skipped; other failures are logged and counted.
func (g *Generator) GenerateAll(ctx context.Context) (RunSummary, error) {
	locations, err := g.measurements.ListLocations(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list locations: %w", err)
	}

	var generated, skipped, failed atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, loc := range locations {
		locationID := loc.ID
		eg.Go(func() error {
			_, err := g.Generate(egCtx, locationID)
			switch {
			case err == nil:
				generated.Add(1)
			case errors.Is(err, ErrInsufficientData):
				skipped.Add(1)
			default:
				failed.Add(1)
				g.logger.Error().Err(err).
					Str("location_id", locationID).
					Msg("forecast generation failed")
			}
			return nil
		})
	}
	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	summary := RunSummary{
		Generated: int(generated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}

	g.logger.Info().
		Int("locations", len(locations)).
		Int("generated", summary.Generated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("forecast refresh completed")

	return summary, nil
}
