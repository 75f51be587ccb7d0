package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/measurement"
)

// Locker serializes the recency check and alert write for one key.
// The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LockKey builds the key guarding one user, pollutant and location.
func LockKey(userID string, pollutant measurement.Pollutant, locationID string) string {
	return strings.Join([]string{userID, string(pollutant), locationID}, "|")
}

// KeyedMutex is an in-process Locker. Entries are removed once no goroutine
// holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty in-process locker.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free. It does not observe ctx cancellation once
// waiting.
func (k *KeyedMutex) Lock(_ context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}, nil
}

// Len returns the number of keys currently tracked.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// ErrLockTimeout is returned when a distributed lock cannot be acquired in
// time.
var ErrLockTimeout = errors.New("alert lock: timed out waiting for lock")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockerConfig holds configuration for RedisLocker.
type RedisLockerConfig struct {
	// Prefix is prepended to every key. Default: "aqm:alert-lock:".
	Prefix string

	// TTL bounds how long a crashed holder can keep a key. Default: 10s.
	TTL time.Duration

	// WaitTimeout bounds how long Lock waits. Default: 5s.
	WaitTimeout time.Duration

	// RetryInterval is the polling interval while waiting. Default: 25ms.
	RetryInterval time.Duration

	Logger zerolog.Logger
}

// RedisLocker is a Locker shared by every replica connected to the same
// Redis, using SET NX PX with a random token per holder.
type RedisLocker struct {
	client redis.Cmdable
	config RedisLockerConfig
}

// NewRedisLocker creates a distributed locker.
func NewRedisLocker(client redis.Cmdable, cfg RedisLockerConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "aqm:alert-lock:"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, config: cfg}
}

// Lock polls until the key is acquired, ctx is done or WaitTimeout passes.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.config.Prefix + key
	token := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, l.config.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			return func() {
				// Release with a fresh context; the acquire context may be gone.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
					l.config.Logger.Warn().Err(err).
						Str("lock_key", redisKey).
						Dur("ttl", l.config.TTL).
						Msg("failed to release alert lock, key held until ttl")
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// Ensure both lockers implement Locker interface.
var (
	_ Locker = (*KeyedMutex)(nil)
	_ Locker = (*RedisLocker)(nil)
)
