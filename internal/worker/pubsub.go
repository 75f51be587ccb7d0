package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler feeds jobs from a Pub/Sub subscription to a Processor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.PublishTime, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle runs the job in data and reports whether the message should be
// acknowledged.
func (h *PubSubHandler) handle(ctx context.Context, id string, published time.Time, data []byte) bool {
	logger := h.logger.With().
		Str("message_id", id).
		Str("publish_time", published.Format(time.RFC3339)).
		Logger()

	ack, err := Decide(ctx, h.processor, data)
	if err != nil {
		if ack {
			logger.Warn().Err(err).Msg("dropping job")
		} else {
			logger.Error().Err(err).Msg("job failed")
		}
	}
	return ack
}

// Decide decodes and runs one job message. It returns whether the message
// should be acknowledged along with the job error, if any. Malformed jobs
// and jobs that fail permanently are acknowledged to stop redelivery.
func Decide(ctx context.Context, p *Processor, data []byte) (bool, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return true, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	if err := p.HandleJob(ctx, job); err != nil {
		return Permanent(err), err
	}
	return true, nil
}
