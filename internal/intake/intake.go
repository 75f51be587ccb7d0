// Package intake polls an external air-quality provider for the current
// readings of every known location and feeds them into ingestion.
package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// ErrNoData is returned by a Provider that has no reading for a point.
var ErrNoData = errors.New("provider returned no data")

// Reading is one provider observation. Gas concentrations are in mg/m³,
// particulate matter in µg/m³. Nil fields were not reported.
type Reading struct {
	ObservedAt time.Time

	PM25 *float64
	PM10 *float64
	NO2  *float64
	SO2  *float64
	CO   *float64
	O3   *float64
}

// Provider fetches the current reading for a coordinate.
type Provider interface {
	Name() string
	Current(ctx context.Context, lat, lon float64) (*Reading, error)
}

// LocationLister lists the locations to poll.
type LocationLister interface {
	Locations(ctx context.Context) ([]*measurement.Location, error)
}

// Ingester stores a measurement and starts its evaluation.
type Ingester interface {
	Ingest(ctx context.Context, m *measurement.Measurement) (*measurement.Measurement, error)
}

// PollerConfig holds configuration for the Poller.
type PollerConfig struct {
	Provider  Provider
	Locations LocationLister
	Ingester  Ingester

	// Interval between polling runs.
	// Default: 30 minutes
	Interval time.Duration

	// Spacing is the pause between two provider calls within a run.
	// Default: 2 seconds. Negative disables spacing.
	Spacing time.Duration

	// Timeout bounds a single provider call.
	// Default: 15 seconds
	Timeout time.Duration

	Logger zerolog.Logger
}

// Poller fetches readings for every location, one at a time.
type Poller struct {
	provider  Provider
	locations LocationLister
	ingester  Ingester
	interval  time.Duration
	spacing   time.Duration
	timeout   time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	lastRun *PollResult
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.Spacing < 0 {
		cfg.Spacing = 0
	} else if cfg.Spacing == 0 {
		cfg.Spacing = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Poller{
		provider:  cfg.Provider,
		locations: cfg.Locations,
		ingester:  cfg.Ingester,
		interval:  cfg.Interval,
		spacing:   cfg.Spacing,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// PollResult summarizes one polling run.
type PollResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Ingested  int
	Empty     int
	Failed    int
}

// Start polls immediately and then on every interval until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info().
		Str("provider", p.provider.Name()).
		Dur("interval", p.interval).
		Msg("starting intake poller")

	p.Run(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Run(ctx)
		}
	}
}

// Run polls every location once. A failing location is logged and skipped.
func (p *Poller) Run(ctx context.Context) PollResult {
	res := PollResult{StartedAt: time.Now()}

	locations, err := p.locations.Locations(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to list locations for intake")
		res.Failed++
		return p.finish(res)
	}

	for i, loc := range locations {
		if i > 0 && p.spacing > 0 {
			select {
			case <-ctx.Done():
				return p.finish(res)
			case <-time.After(p.spacing):
			}
		}

		err := p.pollLocation(ctx, loc)
		switch {
		case err == nil:
			res.Ingested++
		case errors.Is(err, ErrNoData):
			res.Empty++
		default:
			res.Failed++
			p.logger.Error().Err(err).
				Str("location_id", loc.ID).
				Str("provider", p.provider.Name()).
				Msg("intake failed")
		}
	}

	return p.finish(res)
}

func (p *Poller) pollLocation(ctx context.Context, loc *measurement.Location) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	r, err := p.provider.Current(callCtx, loc.Lat, loc.Lon)
	if err != nil {
		return err
	}
	if r.PM25 == nil && r.PM10 == nil && r.NO2 == nil && r.SO2 == nil && r.CO == nil && r.O3 == nil {
		return ErrNoData
	}

	_, err = p.ingester.Ingest(ctx, &measurement.Measurement{
		LocationID: loc.ID,
		SensorID:   p.provider.Name(),
		Timestamp:  r.ObservedAt,
		PM25:       r.PM25,
		PM10:       r.PM10,
		NO2:        r.NO2,
		SO2:        r.SO2,
		CO:         r.CO,
		O3:         r.O3,
	})
	return err
}

func (p *Poller) finish(res PollResult) PollResult {
	res.Duration = time.Since(res.StartedAt)

	p.mu.Lock()
	p.lastRun = &res
	p.mu.Unlock()

	p.logger.Info().
		Dur("duration", res.Duration).
		Int("ingested", res.Ingested).
		Int("empty", res.Empty).
		Int("failed", res.Failed).
		Msg("intake run completed")
	return res
}

// LastRun returns the result of the most recent run, or nil.
func (p *Poller) LastRun() *PollResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastRun == nil {
		return nil
	}
	r := *p.lastRun
	return &r
}
