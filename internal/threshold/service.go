package threshold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service reads and replaces users' stored thresholds.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new threshold service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's stored threshold, or nil when the user has none
// and DefaultLimits apply.
func (s *Service) Get(ctx context.Context, userID string) (*Threshold, error) {
	t, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, ErrThresholdNotFound) {
		return nil, nil
	}
	return t, err
}

// Set replaces the user's limits. Nil limits revert to the defaults. The
// threshold keeps its ID across updates.
func (s *Service) Set(ctx context.Context, userID string, pm25, pm10, aqi *float64) (*Threshold, error) {
	for _, v := range []*float64{pm25, pm10, aqi} {
		if v != nil && *v <= 0 {
			return nil, ErrInvalidLimit
		}
	}

	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	t := &Threshold{
		ID:        "thr_" + uuid.New().String()[:22],
		UserID:    userID,
		PM25:      copyFloat(pm25),
		PM10:      copyFloat(pm10),
		AQI:       copyFloat(aqi),
		UpdatedAt: s.now().UTC(),
	}
	if existing != nil {
		t.ID = existing.ID
	}

	if err := s.repo.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("store threshold: %w", err)
	}
	return t, nil
}
