package measurement

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu           sync.RWMutex
	measurements map[string]*Measurement
	locations    map[string]*Location
}

// NewInMemoryRepository creates a new in-memory measurement repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		measurements: make(map[string]*Measurement),
		locations:    make(map[string]*Location),
	}
}

// AddLocation registers a location.
func (r *InMemoryRepository) AddLocation(loc *Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *loc
	r.locations[loc.ID] = &cpy
}

// Get retrieves a measurement by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.measurements[id]
	if !ok {
		return nil, ErrMeasurementNotFound
	}
	return m.Copy(), nil
}

// Create stores a new measurement.
func (r *InMemoryRepository) Create(_ context.Context, m *Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.measurements[m.ID] = m.Copy()
	return nil
}

// ListSince returns the measurements for a location after since, oldest first.
func (r *InMemoryRepository) ListSince(_ context.Context, locationID string, since time.Time) ([]*Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Measurement
	for _, m := range r.measurements {
		if m.LocationID == locationID && m.Timestamp.After(since) {
			result = append(result, m.Copy())
		}
	}
	sortByTimestamp(result)
	return result, nil
}

// LatestPerLocation returns the most recent measurement of every location.
func (r *InMemoryRepository) LatestPerLocation(_ context.Context) ([]*Measurement, error) {
	r.mu.RLock()
	all := make([]*Measurement, 0, len(r.measurements))
	for _, m := range r.measurements {
		all = append(all, m.Copy())
	}
	r.mu.RUnlock()

	return LatestPerLocation(all), nil
}

// GetLocation retrieves a location by ID.
func (r *InMemoryRepository) GetLocation(_ context.Context, id string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	cpy := *loc
	return &cpy, nil
}

// ListLocations returns all known locations ordered by ID.
func (r *InMemoryRepository) ListLocations(_ context.Context) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Location, 0, len(r.locations))
	for _, loc := range r.locations {
		cpy := *loc
		result = append(result, &cpy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
