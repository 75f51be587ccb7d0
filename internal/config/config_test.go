package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	cfg, err := process()
	require.NoError(t, err)

	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.Equal(t, 3*time.Hour, cfg.ForecastInterval)
	assert.Equal(t, 30*time.Minute, cfg.IntakeInterval)
	assert.Empty(t, cfg.OWMAPIKey)
	assert.Equal(t, "aqm-jobs", cfg.PubSubSubscription)
	assert.Empty(t, cfg.RedisAddr)
}

func TestProcess_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("ALERT_COOLDOWN", "10m")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.org/aqm")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := process()
	require.NoError(t, err)

	assert.False(t, cfg.IsLocal())
	assert.Equal(t, 10*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, "https://hooks.example.org/aqm", cfg.NotifyWebhookURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestProcess_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"APP_ENV": "qa"}},
		{"signing key required outside local", map[string]string{"APP_ENV": "prod"}},
		{"zero workers", map[string]string{"APP_ENV": "local", "NOTIFY_WORKERS": "0"}},
		{"bad webhook url", map[string]string{"APP_ENV": "local", "NOTIFY_WEBHOOK_URL": "not a url"}},
		{"unparsable duration", map[string]string{"APP_ENV": "local", "ALERT_COOLDOWN": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := process()
			assert.Error(t, err)
		})
	}
}
