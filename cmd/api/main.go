// Package main provides the entrypoint for the AQM API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api"
	"github.com/aqmonitor/aqm/internal/api/middleware"
	"github.com/aqmonitor/aqm/internal/app"
	"github.com/aqmonitor/aqm/internal/auth"
	"github.com/aqmonitor/aqm/internal/config"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/telemetry"
	"github.com/aqmonitor/aqm/internal/threshold"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "aqm-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aqm-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting AQM API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	signingKey := cfg.JWTSigningKey
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens, err := auth.NewJWTService(auth.JWTConfig{SigningKey: signingKey})
	if err != nil {
		return fmt.Errorf("initialize token validation: %w", err)
	}

	pipeline, err := app.NewPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	measurementService := measurement.NewService(pipeline.Measurements, measurement.ServiceConfig{
		Logger: log,
	})
	measurementService.SetEvaluator(pipeline.Evaluator)

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		ServiceName:        serviceName,
		Logger:             log,
		Metrics:            metrics,
		RequireTLS:         !cfg.IsLocal(),
		Tokens:             tokens,
		MeasurementService: measurementService,
		AlertService:       alert.NewService(pipeline.Alerts),
		Evaluator:          pipeline.Evaluator,
		ThresholdService:   threshold.NewService(pipeline.Thresholds),
		Forecasts:          pipeline.Generator,
		ReadinessChecks:    pipeline.ReadinessChecks(),
		Channels:           pipeline.Channels,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
