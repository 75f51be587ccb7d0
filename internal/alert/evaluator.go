package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/telemetry"
	"github.com/aqmonitor/aqm/internal/threshold"
	"github.com/aqmonitor/aqm/internal/user"
)

// Dispatcher hands an alert to the notification channel. Dispatch must
// return without waiting for delivery.
type Dispatcher interface {
	Dispatch(u *user.User, a *Alert)
}

// Crossing is a measured value above the limit in force.
type Crossing struct {
	Pollutant measurement.Pollutant
	Value     float64
	Limit     float64
}

// Crossings lists every pollutant on m whose value exceeds its limit.
// PM2.5, PM10 and AQI use limits; the rest use FixedCeilings.
func Crossings(m *measurement.Measurement, limits threshold.Limits) []Crossing {
	var result []Crossing
	for _, p := range measurement.AllPollutants {
		value, ok := m.Value(p)
		if !ok {
			continue
		}

		var limit float64
		switch p {
		case measurement.PollutantPM25:
			limit = limits.PM25
		case measurement.PollutantPM10:
			limit = limits.PM10
		case measurement.PollutantAQI:
			limit = limits.AQI
		default:
			limit = FixedCeilings[p]
		}

		if value > limit {
			result = append(result, Crossing{Pollutant: p, Value: value, Limit: limit})
		}
	}
	return result
}

// Result summarizes one evaluation run.
type Result struct {
	// Alerts are the alerts created by the run.
	Alerts []*Alert

	// Suppressed counts crossings skipped because of a recent alert.
	Suppressed int

	// Failed counts user evaluations that errored or panicked.
	Failed int
}

func (r *Result) merge(o Result) {
	r.Alerts = append(r.Alerts, o.Alerts...)
	r.Suppressed += o.Suppressed
	r.Failed += o.Failed
}

// EvaluatorConfig holds configuration for the alert evaluator.
type EvaluatorConfig struct {
	Users        user.Repository
	Thresholds   threshold.Repository
	Measurements measurement.Repository
	Alerts       Repository

	// Dispatcher receives created alerts. Optional.
	Dispatcher Dispatcher

	// Locker serializes recency check and write per key.
	// Default: an in-process KeyedMutex.
	Locker Locker

	// Cooldown is the duplicate suppression window. Default: 30m.
	Cooldown time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	Metrics *telemetry.PipelineMetrics
	Logger  zerolog.Logger
}

// Evaluator checks measurements against the thresholds of active users and
// records an alert for every new crossing.
type Evaluator struct {
	users        user.Repository
	thresholds   threshold.Repository
	measurements measurement.Repository
	alerts       Repository
	dispatcher   Dispatcher
	locker       Locker
	guard        *RecencyGuard
	now          func() time.Time
	metrics      *telemetry.PipelineMetrics
	logger       zerolog.Logger

	inflight sync.WaitGroup
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	if cfg.Locker == nil {
		cfg.Locker = NewKeyedMutex()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Evaluator{
		users:        cfg.Users,
		thresholds:   cfg.Thresholds,
		measurements: cfg.Measurements,
		alerts:       cfg.Alerts,
		dispatcher:   cfg.Dispatcher,
		locker:       cfg.Locker,
		guard:        NewRecencyGuard(cfg.Alerts, cfg.Cooldown, cfg.Now),
		now:          cfg.Now,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Guard returns the recency guard used by the evaluator.
func (e *Evaluator) Guard() *RecencyGuard {
	return e.guard
}

// Submit evaluates m in the background. It never blocks on evaluation.
func (e *Evaluator) Submit(m *measurement.Measurement) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.OnNewMeasurement(context.Background(), m)
	}()
}

// Wait blocks until every submitted evaluation has finished.
func (e *Evaluator) Wait() {
	e.inflight.Wait()
}

// OnNewMeasurement evaluates m for every active user. Failures are logged
// per user and never stop the run.
func (e *Evaluator) OnNewMeasurement(ctx context.Context, m *measurement.Measurement) Result {
	var res Result

	users, err := e.users.ListActive(ctx)
	if err != nil {
		e.logger.Error().Err(err).
			Str("measurement_id", m.ID).
			Msg("failed to list active users")
		return res
	}

	for _, u := range users {
		res.merge(e.evaluateUser(ctx, u, m))
	}

	e.logger.Debug().
		Str("measurement_id", m.ID).
		Str("location_id", m.LocationID).
		Int("users", len(users)).
		Int("alerts", len(res.Alerts)).
		Int("suppressed", res.Suppressed).
		Int("failed", res.Failed).
		Msg("measurement evaluated")

	return res
}

// CheckAllLocationsForUser evaluates the latest measurement of every
// location for one user.
func (e *Evaluator) CheckAllLocationsForUser(ctx context.Context, userID string) (Result, error) {
	u, err := e.users.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	latest, err := e.measurements.LatestPerLocation(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("latest measurements: %w", err)
	}

	var res Result
	for _, m := range latest {
		res.merge(e.evaluateUser(ctx, u, m))
	}

	e.logger.Info().
		Str("user_id", userID).
		Int("locations", len(latest)).
		Int("alerts", len(res.Alerts)).
		Msg("manual check completed")

	return res, nil
}

// evaluateUser isolates one user's evaluation: errors and panics are logged
// and counted. Alerts raised before a failure stay in the result.
func (e *Evaluator) evaluateUser(ctx context.Context, u *user.User, m *measurement.Measurement) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("user_id", u.ID).
				Str("measurement_id", m.ID).
				Int("alerts_before_panic", len(res.Alerts)).
				Interface("panic", r).
				Msg("panic during alert evaluation")
			e.metrics.EvaluationFailed(ctx)
			res.Failed++
		}
	}()

	if err := e.evaluate(ctx, u, m, &res); err != nil {
		e.logger.Error().Err(err).
			Str("user_id", u.ID).
			Str("measurement_id", m.ID).
			Msg("alert evaluation failed")
		e.metrics.EvaluationFailed(ctx)
		res.Failed++
	}
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, u *user.User, m *measurement.Measurement, res *Result) error {
	th, err := e.thresholds.GetByUser(ctx, u.ID)
	if err != nil && !errors.Is(err, threshold.ErrThresholdNotFound) {
		return fmt.Errorf("load threshold: %w", err)
	}
	limits := th.Effective()

	var errs []error
	for _, c := range Crossings(m, limits) {
		a, suppressed, err := e.raise(ctx, u, th, m, c)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", c.Pollutant, err))
		case suppressed:
			res.Suppressed++
			e.metrics.AlertSuppressed(ctx, string(c.Pollutant))
		default:
			res.Alerts = append(res.Alerts, a)
			e.metrics.AlertCreated(ctx, string(c.Pollutant))
			if e.dispatcher != nil {
				e.dispatcher.Dispatch(u, a)
			}
		}
	}

	return errors.Join(errs...)
}

// raise runs the recency check and the alert write under the key's lock.
func (e *Evaluator) raise(ctx context.Context, u *user.User, th *threshold.Threshold, m *measurement.Measurement, c Crossing) (*Alert, bool, error) {
	unlock, err := e.locker.Lock(ctx, LockKey(u.ID, c.Pollutant, m.LocationID))
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	recent, err := e.guard.HasRecentAlert(ctx, u.ID, c.Pollutant, m.LocationID)
	if err != nil {
		return nil, false, err
	}
	if recent {
		return nil, true, nil
	}

	a := &Alert{
		ID:            "alt_" + uuid.New().String()[:22],
		UserID:        u.ID,
		Limit:         c.Limit,
		MeasurementID: m.ID,
		LocationID:    m.LocationID,
		Pollutant:     c.Pollutant,
		Value:         c.Value,
		Read:          false,
		Status:        StatusSent,
		TriggeredAt:   e.now().UTC(),
	}
	if th != nil {
		a.ThresholdID = th.ID
	}

	if err := e.alerts.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("save alert: %w", err)
	}
	return a, false, nil
}
