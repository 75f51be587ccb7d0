// Package app assembles the alert pipeline shared by the API and worker
// binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api/handler"
	"github.com/aqmonitor/aqm/internal/config"
	"github.com/aqmonitor/aqm/internal/database"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/notify"
	"github.com/aqmonitor/aqm/internal/resilience"
	"github.com/aqmonitor/aqm/internal/telemetry"
	"github.com/aqmonitor/aqm/internal/threshold"
	"github.com/aqmonitor/aqm/internal/user"
)

// NewLogger builds the root logger for a binary.
func NewLogger(cfg *config.Config, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsLocal() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Pipeline holds the storage and alerting components used by both binaries.
type Pipeline struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Users        *user.PostgresRepository
	Thresholds   *threshold.PostgresRepository
	Measurements *measurement.PostgresRepository
	Alerts       *alert.PostgresRepository
	Forecasts    *forecast.PostgresRepository

	Channels   *resilience.Registry
	Dispatcher *notify.Dispatcher
	Evaluator  *alert.Evaluator
	Generator  *forecast.Generator
	Metrics    *telemetry.PipelineMetrics

	logger zerolog.Logger
}

// NewPipeline connects to the stores and starts the notification workers.
func NewPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	dbConfig := database.ConfigFromEnv()
	pool, err := database.ConnectWithRetry(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	p := &Pipeline{
		Pool:         pool,
		Users:        user.NewPostgresRepository(pool),
		Thresholds:   threshold.NewPostgresRepository(pool),
		Measurements: measurement.NewPostgresRepository(pool),
		Alerts:       alert.NewPostgresRepository(pool),
		Forecasts:    forecast.NewPostgresRepository(pool),
		Channels:     resilience.NewRegistry(),
		Metrics:      metrics,
		logger:       logger,
	}

	var locker alert.Locker = alert.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		p.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		locker = alert.NewRedisLocker(p.Redis, alert.RedisLockerConfig{Logger: logger})
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis alert lock")
	}

	p.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Senders:   p.senders(cfg),
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Metrics:   metrics,
		Logger:    logger,
	})

	p.Evaluator = alert.NewEvaluator(alert.EvaluatorConfig{
		Users:        p.Users,
		Thresholds:   p.Thresholds,
		Measurements: p.Measurements,
		Alerts:       p.Alerts,
		Dispatcher:   p.Dispatcher,
		Locker:       locker,
		Cooldown:     cfg.AlertCooldown,
		Metrics:      metrics,
		Logger:       logger,
	})

	p.Generator = forecast.NewGenerator(forecast.GeneratorConfig{
		Measurements: p.Measurements,
		Forecasts:    p.Forecasts,
		Random:       forecast.NewRandomSource(time.Now().UnixNano()),
		Concurrency:  cfg.ForecastConcurrency,
		Metrics:      metrics,
		Logger:       logger,
	})

	return p, nil
}

func (p *Pipeline) senders(cfg *config.Config) []notify.Sender {
	var senders []notify.Sender
	if cfg.IsLocal() {
		senders = append(senders, notify.NewLogSender(p.logger))
	}

	if cfg.SMTPHost != "" {
		senders = append(senders, notify.NewEmailSender(notify.EmailSenderConfig{
			SMTP: notify.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
			},
			Locations: p.Measurements,
			Logger:    p.logger,
		}))
		p.logger.Info().
			Str("smtp_addr", cfg.SMTPHost+":"+strconv.Itoa(cfg.SMTPPort)).
			Msg("email notifications enabled")
	}

	if cfg.NotifyWebhookURL != "" {
		client := resilience.NewClient(resilience.ClientConfig{Name: "webhook"})
		senders = append(senders, notify.NewWebhookSender(cfg.NotifyWebhookURL, client, p.Channels))
		p.logger.Info().Msg("webhook notifications enabled")
	}

	if len(senders) == 0 {
		p.logger.Warn().Msg("no notification channel configured, falling back to log sender")
		senders = append(senders, notify.NewLogSender(p.logger))
	}
	return senders
}

// ReadinessChecks returns the dependency checks for the ready endpoint.
func (p *Pipeline) ReadinessChecks() map[string]handler.Check {
	checks := map[string]handler.Check{
		"postgres": p.Pool.Ping,
	}
	if p.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return p.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close drains in-flight evaluations, then the notification queue, then
// closes the store connections.
func (p *Pipeline) Close() {
	p.Evaluator.Wait()
	p.Dispatcher.Close()
	if p.Redis != nil {
		if err := p.Redis.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	p.Pool.Close()
}
