package forecast

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for forecast persistence.
type Repository interface {
	// Replace atomically swaps every forecast of a location for forecasts.
	Replace(ctx context.Context, locationID string, forecasts []*Forecast) error

	// ListByLocation returns a location's forecasts in time order.
	ListByLocation(ctx context.Context, locationID string) ([]*Forecast, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	byLocation map[string][]*Forecast
}

// NewInMemoryRepository creates a new in-memory forecast repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byLocation: make(map[string][]*Forecast)}
}

// Replace swaps every forecast of a location under a single lock.
func (r *InMemoryRepository) Replace(_ context.Context, locationID string, forecasts []*Forecast) error {
	rows := make([]*Forecast, 0, len(forecasts))
	for _, f := range forecasts {
		cpy := *f
		rows = append(rows, &cpy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLocation[locationID] = rows
	return nil
}

// ListByLocation returns a location's forecasts in time order.
func (r *InMemoryRepository) ListByLocation(_ context.Context, locationID string) ([]*Forecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.byLocation[locationID]
	result := make([]*Forecast, 0, len(rows))
	for _, f := range rows {
		cpy := *f
		result = append(result, &cpy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
