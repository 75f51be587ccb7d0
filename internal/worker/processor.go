package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/user"
)

// MeasurementReader loads stored measurements.
type MeasurementReader interface {
	Get(ctx context.Context, id string) (*measurement.Measurement, error)
}

// Evaluator runs alert evaluation.
type Evaluator interface {
	OnNewMeasurement(ctx context.Context, m *measurement.Measurement) alert.Result
	CheckAllLocationsForUser(ctx context.Context, userID string) (alert.Result, error)
}

// ForecastGenerator regenerates forecasts.
type ForecastGenerator interface {
	Generate(ctx context.Context, locationID string) ([]*forecast.Forecast, error)
	GenerateAll(ctx context.Context) (forecast.RunSummary, error)
}

// ProcessorConfig holds configuration for the job processor.
type ProcessorConfig struct {
	Measurements MeasurementReader
	Evaluator    Evaluator
	Forecasts    ForecastGenerator
	Logger       zerolog.Logger
}

// Processor executes jobs regardless of how they were delivered.
type Processor struct {
	measurements MeasurementReader
	evaluator    Evaluator
	forecasts    ForecastGenerator
	logger       zerolog.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		measurements: cfg.Measurements,
		evaluator:    cfg.Evaluator,
		forecasts:    cfg.Forecasts,
		logger:       cfg.Logger,
	}
}

// HandleJob runs one job. An error for which Permanent reports true will
// fail again on redelivery.
func (p *Processor) HandleJob(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	start := time.Now()
	var err error
	switch job.JobType {
	case JobEvaluateMeasurement:
		err = p.evaluateMeasurement(ctx, job.MeasurementID)
	case JobCheckUser:
		err = p.checkUser(ctx, job.UserID)
	case JobForecastRefresh:
		err = p.refreshForecasts(ctx, job.LocationID)
	}
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed")
	return nil
}

func (p *Processor) evaluateMeasurement(ctx context.Context, id string) error {
	m, err := p.measurements.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load measurement %s: %w", id, err)
	}

	res := p.evaluator.OnNewMeasurement(ctx, m)
	p.logger.Debug().
		Str("measurement_id", id).
		Int("alerts", len(res.Alerts)).
		Int("suppressed", res.Suppressed).
		Int("failed", res.Failed).
		Msg("measurement evaluated")
	return nil
}

func (p *Processor) checkUser(ctx context.Context, userID string) error {
	if _, err := p.evaluator.CheckAllLocationsForUser(ctx, userID); err != nil {
		return fmt.Errorf("check user %s: %w", userID, err)
	}
	return nil
}

func (p *Processor) refreshForecasts(ctx context.Context, locationID string) error {
	if locationID != "" {
		if _, err := p.forecasts.Generate(ctx, locationID); err != nil {
			return fmt.Errorf("generate forecast for %s: %w", locationID, err)
		}
		return nil
	}

	summary, err := p.forecasts.GenerateAll(ctx)
	if err != nil {
		return err
	}
	// Retried when most locations failed.
	if summary.Failed > 0 && summary.Failed > summary.Generated {
		return fmt.Errorf("too many forecast failures: %d failed, %d generated", summary.Failed, summary.Generated)
	}
	return nil
}

// Permanent reports whether err cannot be fixed by redelivering the job.
func Permanent(err error) bool {
	return errors.Is(err, ErrInvalidJob) ||
		errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, measurement.ErrMeasurementNotFound) ||
		errors.Is(err, measurement.ErrLocationNotFound) ||
		errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, forecast.ErrInsufficientData)
}
