package measurement

import (
	"context"
	"sort"
	"time"
)

// Repository defines the interface for measurement persistence.
type Repository interface {
	// Get retrieves a measurement by ID.
	Get(ctx context.Context, id string) (*Measurement, error)

	// Create stores a new measurement.
	Create(ctx context.Context, m *Measurement) error

	// ListSince returns the measurements for a location with a timestamp
	// strictly after since, oldest first.
	ListSince(ctx context.Context, locationID string, since time.Time) ([]*Measurement, error)

	// LatestPerLocation returns the most recent measurement of every location.
	LatestPerLocation(ctx context.Context) ([]*Measurement, error)

	// GetLocation retrieves a location by ID.
	// Returns ErrLocationNotFound if it doesn't exist.
	GetLocation(ctx context.Context, id string) (*Location, error)

	// ListLocations returns all known locations.
	ListLocations(ctx context.Context) ([]*Location, error)
}

func sortByLocation(ms []*Measurement) {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].LocationID < ms[j].LocationID
	})
}

func sortByTimestamp(ms []*Measurement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Timestamp.Before(ms[j].Timestamp)
	})
}
