package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ChannelHealth is the health of one outbound channel.
type ChannelHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports whether the breaker is closed.
func (h *ChannelHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is half-open.
func (h *ChannelHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// Registry tracks guarded clients and the outcome of their last calls.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*registeredChannel
	now      func() time.Time
}

type registeredChannel struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*registeredChannel),
		now:      time.Now,
	}
}

// Register adds a client under its name.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[client.Name()] = &registeredChannel{client: client}
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		now := r.now()
		ch.lastSuccessAt = &now
	}
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		now := r.now()
		ch.lastFailureAt = &now
		if err != nil {
			ch.lastError = err.Error()
		}
	}
}

// Health returns the health of every registered channel ordered by name.
func (r *Registry) Health() []*ChannelHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ChannelHealth, 0, len(r.channels))
	for name, ch := range r.channels {
		health = append(health, &ChannelHealth{
			Name:          name,
			CircuitState:  ch.client.CircuitBreakerState(),
			Counts:        ch.client.CircuitBreakerCounts(),
			LastSuccessAt: ch.lastSuccessAt,
			LastFailureAt: ch.lastFailureAt,
			LastError:     ch.lastError,
		})
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}
