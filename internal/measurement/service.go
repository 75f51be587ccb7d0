package measurement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Submitter receives freshly stored measurements for alert evaluation.
// Submit must not block the caller.
type Submitter interface {
	Submit(m *Measurement)
}

// ServiceConfig holds configuration for the measurement service.
type ServiceConfig struct {
	// Evaluator is notified of every stored measurement. Optional.
	Evaluator Submitter

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Service ingests and serves measurements.
type Service struct {
	repo      Repository
	evaluator Submitter
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a new measurement service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:      repo,
		evaluator: cfg.Evaluator,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// SetEvaluator wires the evaluator after construction.
func (s *Service) SetEvaluator(e Submitter) {
	s.evaluator = e
}

// Ingest annotates and stores a measurement, then hands it to the evaluator.
// Evaluation runs asynchronously; its outcome never affects the result.
func (s *Service) Ingest(ctx context.Context, m *Measurement) (*Measurement, error) {
	if _, err := s.repo.GetLocation(ctx, m.LocationID); err != nil {
		return nil, err
	}

	if m.ID == "" {
		m.ID = "msr_" + uuid.New().String()[:22]
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	m.Annotate()

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store measurement: %w", err)
	}

	s.logger.Debug().
		Str("measurement_id", m.ID).
		Str("location_id", m.LocationID).
		Msg("measurement stored")

	if s.evaluator != nil {
		s.evaluator.Submit(m.Copy())
	}

	return m, nil
}

// Get retrieves a measurement by ID.
func (s *Service) Get(ctx context.Context, id string) (*Measurement, error) {
	return s.repo.Get(ctx, id)
}

// Location retrieves a location by ID.
func (s *Service) Location(ctx context.Context, id string) (*Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// Locations returns all known locations.
func (s *Service) Locations(ctx context.Context) ([]*Location, error) {
	return s.repo.ListLocations(ctx)
}
