package user

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrUserNotFound is returned when no user has the requested ID.
var ErrUserNotFound = errors.New("user not found")

// Repository stores user accounts. Accounts are provisioned elsewhere; the
// alerting pipeline only reads them.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)

	// ListActive returns active users ordered by ID.
	ListActive(ctx context.Context) ([]*User, error)

	Create(ctx context.Context, u *User) error
}

// InMemoryRepository keeps users in a map. Used by tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: map[string]User{}}
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	u, ok := r.users[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *InMemoryRepository) ListActive(_ context.Context) ([]*User, error) {
	r.mu.RLock()
	active := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		if u.Active() {
			active = append(active, &u)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(active, func(a, b *User) int { return strings.Compare(a.ID, b.ID) })
	return active, nil
}

func (r *InMemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	r.users[u.ID] = *u
	r.mu.Unlock()
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
