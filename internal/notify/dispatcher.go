package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/telemetry"
	"github.com/aqmonitor/aqm/internal/user"
)

// DispatcherConfig holds configuration for the notification dispatcher.
type DispatcherConfig struct {
	// Senders are tried in order for every alert.
	Senders []Sender

	// Workers is the number of delivery goroutines. Default: 4
	Workers int

	// QueueSize bounds the number of pending notifications. Default: 256
	QueueSize int

	// SendTimeout bounds a single Send call. Default: 10s
	SendTimeout time.Duration

	Metrics *telemetry.PipelineMetrics
	Logger  zerolog.Logger
}

type job struct {
	user  *user.User
	alert *alert.Alert
}

// Dispatcher queues alerts and delivers them from a fixed pool of workers.
// Dispatch never blocks: when the queue is full the notification is dropped.
type Dispatcher struct {
	senders     []Sender
	sendTimeout time.Duration
	metrics     *telemetry.PipelineMetrics
	logger      zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		senders:     cfg.Senders,
		sendTimeout: cfg.SendTimeout,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		queue:       make(chan job, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.worker()
		}()
	}

	return d
}

// Dispatch enqueues a notification and returns immediately.
func (d *Dispatcher) Dispatch(u *user.User, a *alert.Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(a, "dispatcher closed")
		return
	}

	select {
	case d.queue <- job{user: u, alert: a}:
	default:
		d.drop(a, "queue full")
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) drop(a *alert.Alert, reason string) {
	d.logger.Warn().
		Str("alert_id", a.ID).
		Str("user_id", a.UserID).
		Str("reason", reason).
		Msg("notification dropped")
	d.metrics.NotificationDropped(context.Background())
}

func (d *Dispatcher) worker() {
	for j := range d.queue {
		for _, s := range d.senders {
			if err := d.send(s, j); err != nil {
				d.logger.Error().Err(err).
					Str("channel", s.Name()).
					Str("alert_id", j.alert.ID).
					Str("user_id", j.user.ID).
					Msg("notification failed")
				d.metrics.NotificationFailed(context.Background(), s.Name())
			}
		}
	}
}

func (d *Dispatcher) send(s Sender, j job) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{
				Channel: s.Name(),
				UserID:  j.user.ID,
				AlertID: j.alert.ID,
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if err := s.Send(ctx, j.user, j.alert); err != nil {
		return &DispatchError{
			Channel: s.Name(),
			UserID:  j.user.ID,
			AlertID: j.alert.ID,
			Err:     err,
		}
	}
	return nil
}

// Ensure Dispatcher implements alert.Dispatcher interface.
var _ alert.Dispatcher = (*Dispatcher)(nil)
