package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/resilience"
	"github.com/aqmonitor/aqm/internal/user"
)

// WebhookPayload is the JSON body posted for every alert.
type WebhookPayload struct {
	AlertID       string    `json:"alertId"`
	UserID        string    `json:"userId"`
	LocationID    string    `json:"locationId"`
	MeasurementID string    `json:"measurementId"`
	Pollutant     string    `json:"pollutant"`
	Value         float64   `json:"value"`
	Limit         float64   `json:"limit"`
	TriggeredAt   time.Time `json:"triggeredAt"`
}

// WebhookSender posts alerts to an HTTP endpoint through a circuit breaker.
// Calls are never retried.
type WebhookSender struct {
	url      string
	client   *resilience.Client
	registry *resilience.Registry
}

// NewWebhookSender creates a webhook sender. registry may be nil.
func NewWebhookSender(url string, client *resilience.Client, registry *resilience.Registry) *WebhookSender {
	if registry != nil {
		registry.Register(client)
	}
	return &WebhookSender{url: url, client: client, registry: registry}
}

// Name implements Sender.
func (s *WebhookSender) Name() string {
	return s.client.Name()
}

// Send posts the alert.
func (s *WebhookSender) Send(ctx context.Context, u *user.User, a *alert.Alert) error {
	err := s.post(ctx, u, a)
	if s.registry != nil {
		if err != nil {
			s.registry.RecordFailure(s.Name(), err)
		} else {
			s.registry.RecordSuccess(s.Name())
		}
	}
	return err
}

func (s *WebhookSender) post(ctx context.Context, u *user.User, a *alert.Alert) error {
	body, err := json.Marshal(WebhookPayload{
		AlertID:       a.ID,
		UserID:        u.ID,
		LocationID:    a.LocationID,
		MeasurementID: a.MeasurementID,
		Pollutant:     string(a.Pollutant),
		Value:         a.Value,
		Limit:         a.Limit,
		TriggeredAt:   a.TriggeredAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Ensure WebhookSender implements Sender interface.
var _ Sender = (*WebhookSender)(nil)
