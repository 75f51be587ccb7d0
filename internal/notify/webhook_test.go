package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/notify"
	"github.com/aqmonitor/aqm/internal/resilience"
	"github.com/aqmonitor/aqm/internal/user"
)

func TestWebhookSender_Send(t *testing.T) {
	var got notify.WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	sender := notify.NewWebhookSender(server.URL, resilience.NewClient(resilience.ClientConfig{Name: "webhook"}), registry)

	err := sender.Send(context.Background(), &user.User{ID: "usr_1"}, testAlert("alt_1"))
	require.NoError(t, err)

	assert.Equal(t, "alt_1", got.AlertID)
	assert.Equal(t, "AQI", got.Pollutant)
	assert.Equal(t, 150.0, got.Value)

	health := registry.Health()
	require.Len(t, health, 1)
	assert.NotNil(t, health[0].LastSuccessAt)
}

func TestWebhookSender_ClientErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	sender := notify.NewWebhookSender(server.URL, resilience.NewClient(resilience.ClientConfig{Name: "webhook"}), registry)

	err := sender.Send(context.Background(), &user.User{ID: "usr_1"}, testAlert("alt_1"))
	assert.ErrorContains(t, err, "401")
	assert.Equal(t, "webhook returned 401", registry.Health()[0].LastError)
}
