package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/worker"
)

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3*time.Hour, cfg.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.True(t, cfg.RunOnStart)
}

// stepClock advances by step on every call.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestRefresher_Run(t *testing.T) {
	fc := &mockForecasts{}
	fc.On("GenerateAll", mock.Anything).Return(forecast.RunSummary{Generated: 2, Skipped: 1}, nil).Once()
	clock := &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: 2 * time.Second}

	r := worker.NewRefresher(worker.RefresherConfig{
		Forecasts: fc,
		Now:       clock.Now,
		Logger:    zerolog.Nop(),
	})

	result := r.Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 2*time.Second, result.Duration)
	assert.Equal(t, 2, result.Summary.Generated)

	m := r.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(0), m.FailedRuns)
	assert.Equal(t, int64(2), m.Generated)
	assert.Equal(t, int64(1), m.Skipped)
	assert.Equal(t, result.EndTime, m.LastRunAt)
	fc.AssertExpectations(t)
}

func TestRefresher_RunFailure(t *testing.T) {
	fc := &mockForecasts{}
	fc.On("GenerateAll", mock.Anything).Return(forecast.RunSummary{}, errors.New("list locations: timeout"))

	r := worker.NewRefresher(worker.RefresherConfig{Forecasts: fc, Logger: zerolog.Nop()})

	result := r.Run(context.Background())
	require.Error(t, result.Err)

	snap := r.MetricsSnapshot()
	assert.Equal(t, int64(1), snap["total_runs"])
	assert.Equal(t, int64(1), snap["failed_runs"])
}

// countingGenerator counts GenerateAll calls.
type countingGenerator struct {
	calls atomic.Int64
}

func (g *countingGenerator) Generate(context.Context, string) ([]*forecast.Forecast, error) {
	return nil, nil
}

func (g *countingGenerator) GenerateAll(context.Context) (forecast.RunSummary, error) {
	g.calls.Add(1)
	return forecast.RunSummary{}, nil
}

func TestRefresher_StartTicksUntilCancelled(t *testing.T) {
	gen := &countingGenerator{}
	r := worker.NewRefresher(worker.RefresherConfig{
		Config: worker.RefreshConfig{
			Interval:   10 * time.Millisecond,
			RunOnStart: true,
		},
		Forecasts: gen,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return gen.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}

func TestRefresher_WithRealGenerator(t *testing.T) {
	repo := measurement.NewInMemoryRepository()
	repo.AddLocation(&measurement.Location{ID: "loc_a"})
	repo.AddLocation(&measurement.Location{ID: "loc_b"})
	now := time.Now()
	pm := 12.0
	require.NoError(t, repo.Create(context.Background(), &measurement.Measurement{
		ID: "msr_1", LocationID: "loc_a", Timestamp: now.Add(-time.Hour), PM25: &pm,
	}))

	store := forecast.NewInMemoryRepository()
	gen := forecast.NewGenerator(forecast.GeneratorConfig{
		Measurements: repo,
		Forecasts:    store,
		Random:       forecast.NewRandomSource(7),
		Logger:       zerolog.Nop(),
	})

	r := worker.NewRefresher(worker.RefresherConfig{Forecasts: gen, Logger: zerolog.Nop()})
	result := r.Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Summary.Generated)
	assert.Equal(t, 1, result.Summary.Skipped)

	rows, err := store.ListByLocation(context.Background(), "loc_a")
	require.NoError(t, err)
	assert.Len(t, rows, forecast.Steps)
}
