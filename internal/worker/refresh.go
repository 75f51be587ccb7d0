package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/forecast"
)

// Refresher regenerates every location's forecast on a fixed interval.
type Refresher struct {
	config    RefreshConfig
	forecasts ForecastGenerator
	now       func() time.Time
	logger    zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresher statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns  int64
	FailedRuns int64

	Generated int64
	Skipped   int64
	Failed    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefresherConfig holds configuration for creating a Refresher.
type RefresherConfig struct {
	Config    RefreshConfig
	Forecasts ForecastGenerator

	// Now returns the current time. Default: time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewRefresher creates a forecast refresher.
func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Refresher{
		config:    cfg.Config.withDefaults(),
		forecasts: cfg.Forecasts,
		now:       cfg.Now,
		logger:    cfg.Logger,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Summary   forecast.RunSummary
	Err       error
}

// Start runs the refresher until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info().
		Dur("interval", r.config.Interval).
		Msg("starting forecast refresher")

	if r.config.RunOnStart {
		r.Run(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("forecast refresher stopped")
			return
		case <-ticker.C:
			r.Run(ctx)
		}
	}
}

// Run executes one refresh of every location.
func (r *Refresher) Run(ctx context.Context) *RefreshResult {
	result := &RefreshResult{StartTime: r.now()}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	result.Summary, result.Err = r.forecasts.GenerateAll(runCtx)

	result.EndTime = r.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.updateMetrics(result)

	if result.Err != nil {
		r.logger.Error().Err(result.Err).
			Dur("duration", result.Duration).
			Msg("forecast refresh failed")
		return result
	}

	r.logger.Info().
		Dur("duration", result.Duration).
		Int("generated", result.Summary.Generated).
		Int("skipped", result.Summary.Skipped).
		Int("failed", result.Summary.Failed).
		Msg("forecast refresh run completed")
	return result
}

func (r *Refresher) updateMetrics(result *RefreshResult) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalRuns++
	if result.Err != nil {
		r.metrics.FailedRuns++
	}
	r.metrics.Generated += int64(result.Summary.Generated)
	r.metrics.Skipped += int64(result.Summary.Skipped)
	r.metrics.Failed += int64(result.Summary.Failed)
	r.metrics.LastRunAt = result.EndTime
	r.metrics.LastRunDuration = result.Duration
	r.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (r *Refresher) GetMetrics() RefreshMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       r.metrics.TotalRuns,
		FailedRuns:      r.metrics.FailedRuns,
		Generated:       r.metrics.Generated,
		Skipped:         r.metrics.Skipped,
		Failed:          r.metrics.Failed,
		LastRunAt:       r.metrics.LastRunAt,
		LastRunDuration: r.metrics.LastRunDuration,
		TotalDuration:   r.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for status output.
func (r *Refresher) MetricsSnapshot() map[string]interface{} {
	m := r.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"generated":         m.Generated,
		"skipped":           m.Skipped,
		"failed":            m.Failed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
