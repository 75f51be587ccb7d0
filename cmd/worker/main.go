// Package main provides the entrypoint for the AQM background worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aqmonitor/aqm/internal/app"
	"github.com/aqmonitor/aqm/internal/config"
	"github.com/aqmonitor/aqm/internal/intake"
	"github.com/aqmonitor/aqm/internal/intake/openweathermap"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/telemetry"
	"github.com/aqmonitor/aqm/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "aqm-worker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aqm-worker: %v\n", err)
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
		Msg("starting AQM worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	pipeline, err := app.NewPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	processor := worker.NewProcessor(worker.ProcessorConfig{
		Measurements: pipeline.Measurements,
		Evaluator:    pipeline.Evaluator,
		Forecasts:    pipeline.Generator,
		Logger:       log,
	})

	refresher := worker.NewRefresher(worker.RefresherConfig{
		Config: worker.RefreshConfig{
			Interval:   cfg.ForecastInterval,
			RunOnStart: true,
		},
		Forecasts: pipeline.Generator,
		Logger:    log,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Start(ctx)
	}()

	if cfg.OWMAPIKey != "" {
		ingest := measurement.NewService(pipeline.Measurements, measurement.ServiceConfig{Logger: log})
		ingest.SetEvaluator(pipeline.Evaluator)

		poller := intake.NewPoller(intake.PollerConfig{
			Provider: openweathermap.NewClient(openweathermap.ClientConfig{
				APIKey:   cfg.OWMAPIKey,
				Registry: pipeline.Channels,
				Logger:   log,
			}),
			Locations: ingest,
			Ingester:  ingest,
			Interval:  cfg.IntakeInterval,
			Logger:    log,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(ctx)
		}()
	}

	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Processor:        processor,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close pubsub client")
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, job subscription disabled")
	}

	// Cloud Run needs a listening port.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // best-effort health body
			"status":  "healthy",
			"version": Version,
			"refresh": refresher.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("worker stopped")
	return nil
}
