// Package config loads process configuration from the environment.
//
// Values are read from the OS environment, falling back to a .env file in
// the working directory. OS values always win.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environments.
const (
	EnvLocal      = "local"
	EnvDev        = "dev"
	EnvStaging    = "staging"
	EnvProduction = "prod"
)

// Config is shared by the API and worker binaries. Database settings are
// read separately by database.ConfigFromEnv.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Port        string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	// Alert pipeline
	AlertCooldown    time.Duration `envconfig:"ALERT_COOLDOWN" default:"30m" validate:"min=1s"`
	NotifyWorkers    int           `envconfig:"NOTIFY_WORKERS" default:"4" validate:"min=1,max=64"`
	NotifyQueueSize  int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256" validate:"min=1"`
	NotifyWebhookURL string        `envconfig:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`

	// Forecasts
	ForecastInterval    time.Duration `envconfig:"FORECAST_INTERVAL" default:"3h" validate:"min=1m"`
	ForecastConcurrency int           `envconfig:"FORECAST_CONCURRENCY" default:"4" validate:"min=1,max=32"`

	// Provider intake for the worker. Empty key disables polling.
	OWMAPIKey      string        `envconfig:"OWM_API_KEY"`
	IntakeInterval time.Duration `envconfig:"INTAKE_INTERVAL" default:"30m" validate:"min=1m"`

	// Redis backs the distributed alert lock. Empty uses an in-process lock.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Pub/Sub job intake for the worker. Empty project disables it.
	PubSubProjectID    string `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubSubscription string `envconfig:"PUBSUB_SUBSCRIPTION" default:"aqm-jobs"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"alerts@aqm.local" validate:"email"`

	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" validate:"required_unless=Environment local"`

	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// IsLocal reports whether the process runs in local development.
func (c *Config) IsLocal() bool {
	return c.Environment == EnvLocal
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	return process()
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return &cfg, nil
}
