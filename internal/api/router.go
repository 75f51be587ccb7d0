// Package api provides the HTTP API for AQM.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api/handler"
	"github.com/aqmonitor/aqm/internal/api/middleware"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/resilience"
	"github.com/aqmonitor/aqm/internal/threshold"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Tokens             middleware.TokenValidator
	MeasurementService *measurement.Service
	AlertService       *alert.Service
	Evaluator          *alert.Evaluator
	ThresholdService   *threshold.Service
	Forecasts          *forecast.Generator

	// ReadinessChecks are probed by /v1/ops/ready and /v1/ops/status.
	ReadinessChecks map[string]handler.Check

	// Channels reports notification channel health. Optional.
	Channels *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqm-api"
	}

	// Order matters: request ID first so every later layer can log it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks, cfg.Channels)
	measurementHandler := handler.NewMeasurementHandler(cfg.MeasurementService, cfg.Logger)
	alertHandler := handler.NewAlertHandler(cfg.AlertService, cfg.Evaluator, cfg.Logger)
	thresholdHandler := handler.NewThresholdHandler(cfg.ThresholdService)
	forecastHandler := handler.NewForecastHandler(cfg.Forecasts, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Tokens)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)
	expensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Sensor ingestion
		r.Route("/measurements", func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(middleware.RateLimitByIP(middleware.IngestRateLimit)).Post("/", measurementHandler.Ingest)
			r.With(standardRateLimit).Get("/{measurementId}", measurementHandler.GetMeasurement)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(standardRateLimit).Get("/", measurementHandler.ListLocations)
			r.Route("/{locationId}/forecasts", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", forecastHandler.ListForecasts)
				r.With(expensiveRateLimit).Post("/generate", forecastHandler.Generate)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/threshold", thresholdHandler.GetThreshold)
				r.Put("/threshold", thresholdHandler.PutThreshold)

				r.Get("/alerts", alertHandler.ListAlerts)
				r.Get("/alerts/unread-count", alertHandler.UnreadCount)
				r.Post("/alerts/{alertId}/acknowledge", alertHandler.Acknowledge)
			})

			r.With(expensiveRateLimit).Post("/alerts/check", alertHandler.Check)
		})
	})

	return r
}
