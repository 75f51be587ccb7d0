package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewInMemoryRepository creates a new in-memory alert repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts: make(map[string]*Alert),
	}
}

// Create stores a new alert.
func (r *InMemoryRepository) Create(_ context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *a
	r.alerts[a.ID] = &cpy
	return nil
}

// Get retrieves an alert by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cpy := *a
	return &cpy, nil
}

// Update persists the read flag and status of an existing alert.
func (r *InMemoryRepository) Update(_ context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.alerts[a.ID]
	if !ok {
		return ErrAlertNotFound
	}
	existing.Read = a.Read
	existing.Status = a.Status
	return nil
}

// ListRecent returns the user's alerts for a pollutant triggered after since.
func (r *InMemoryRepository) ListRecent(_ context.Context, userID string, pollutant measurement.Pollutant, since time.Time) ([]*Alert, error) {
	return r.filter(func(a *Alert) bool {
		return a.UserID == userID && a.Pollutant == pollutant && a.TriggeredAt.After(since)
	}), nil
}

// ListByUser returns the user's alerts, newest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]*Alert, error) {
	return r.filter(func(a *Alert) bool {
		return a.UserID == userID && (!unreadOnly || !a.Read)
	}), nil
}

// CountUnread returns the number of unread alerts for the user.
func (r *InMemoryRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	unread, _ := r.ListByUser(ctx, userID, true)
	return len(unread), nil
}

// Count returns the total number of stored alerts.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

func (r *InMemoryRepository) filter(keep func(*Alert) bool) []*Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Alert
	for _, a := range r.alerts {
		if keep(a) {
			cpy := *a
			result = append(result, &cpy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TriggeredAt.Equal(result[j].TriggeredAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].TriggeredAt.After(result[j].TriggeredAt)
	})
	return result
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
