package alert

import (
	"context"
	"time"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// Repository defines the interface for alert persistence.
type Repository interface {
	// Create stores a new alert.
	Create(ctx context.Context, a *Alert) error

	// Get retrieves an alert by ID.
	Get(ctx context.Context, id string) (*Alert, error)

	// Update persists the read flag and status of an existing alert.
	Update(ctx context.Context, a *Alert) error

	// ListRecent returns the user's alerts for a pollutant triggered after
	// since, across all locations.
	ListRecent(ctx context.Context, userID string, pollutant measurement.Pollutant, since time.Time) ([]*Alert, error)

	// ListByUser returns the user's alerts, newest first.
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*Alert, error)

	// CountUnread returns the number of unread alerts for the user.
	CountUnread(ctx context.Context, userID string) (int, error)
}
