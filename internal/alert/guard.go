package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// DefaultCooldown is the window in which a repeated crossing is suppressed.
const DefaultCooldown = 30 * time.Minute

// RecencyGuard answers whether a user was already alerted about a pollutant
// at a location within the cooldown window. It only reads.
type RecencyGuard struct {
	repo     Repository
	cooldown time.Duration
	now      func() time.Time
}

// NewRecencyGuard creates a guard. A non-positive cooldown selects
// DefaultCooldown; a nil now selects time.Now.
func NewRecencyGuard(repo Repository, cooldown time.Duration, now func() time.Time) *RecencyGuard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &RecencyGuard{repo: repo, cooldown: cooldown, now: now}
}

// Cooldown returns the configured window.
func (g *RecencyGuard) Cooldown() time.Duration {
	return g.cooldown
}

// HasRecentAlert reports whether an alert for the user and pollutant was
// triggered within the cooldown by a measurement at locationID.
func (g *RecencyGuard) HasRecentAlert(ctx context.Context, userID string, pollutant measurement.Pollutant, locationID string) (bool, error) {
	since := g.now().Add(-g.cooldown)

	recent, err := g.repo.ListRecent(ctx, userID, pollutant, since)
	if err != nil {
		return false, fmt.Errorf("list recent alerts: %w", err)
	}
	for _, a := range recent {
		if a.LocationID == locationID {
			return true, nil
		}
	}
	return false, nil
}
