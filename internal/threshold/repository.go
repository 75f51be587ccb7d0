package threshold

import (
	"context"
	"sync"
)

// Repository defines the interface for threshold persistence.
type Repository interface {
	// GetByUser returns the user's threshold.
	// Returns ErrThresholdNotFound if the user never configured one.
	GetByUser(ctx context.Context, userID string) (*Threshold, error)

	// Upsert stores the user's threshold, replacing any previous one.
	Upsert(ctx context.Context, t *Threshold) error
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	byUser map[string]*Threshold
}

// NewInMemoryRepository creates a new in-memory threshold repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byUser: make(map[string]*Threshold)}
}

// GetByUser returns the user's threshold.
func (r *InMemoryRepository) GetByUser(_ context.Context, userID string) (*Threshold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byUser[userID]
	if !ok {
		return nil, ErrThresholdNotFound
	}
	return t.copy(), nil
}

// Upsert stores the user's threshold.
func (r *InMemoryRepository) Upsert(_ context.Context, t *Threshold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byUser[t.UserID] = t.copy()
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
