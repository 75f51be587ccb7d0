package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const pipelineMeterName = "github.com/aqmonitor/aqm/pipeline"

// PipelineMetrics holds the instruments of the alert and forecast pipeline.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	alertsCreated        metric.Int64Counter
	alertsSuppressed     metric.Int64Counter
	evaluationFailures   metric.Int64Counter
	notificationFailures metric.Int64Counter
	notificationsDropped metric.Int64Counter
	forecastRuns         metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on the global meter.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	return NewPipelineMetricsWithMeter(otel.Meter(pipelineMeterName))
}

// NewPipelineMetricsWithMeter creates the pipeline instruments on meter.
func NewPipelineMetricsWithMeter(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.alertsCreated, "aqm.alerts.created", "Alerts persisted after a threshold crossing"},
		{&m.alertsSuppressed, "aqm.alerts.suppressed", "Crossings suppressed by the cooldown window"},
		{&m.evaluationFailures, "aqm.evaluation.failures", "Per-user evaluations that failed"},
		{&m.notificationFailures, "aqm.notifications.failures", "Notification sends that returned an error"},
		{&m.notificationsDropped, "aqm.notifications.dropped", "Notifications dropped because the queue was full"},
		{&m.forecastRuns, "aqm.forecast.runs", "Forecast generation runs by outcome"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

// AlertCreated records a persisted alert.
func (m *PipelineMetrics) AlertCreated(ctx context.Context, pollutant string) {
	if m == nil {
		return
	}
	m.alertsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("pollutant", pollutant)))
}

// AlertSuppressed records a crossing suppressed by the cooldown.
func (m *PipelineMetrics) AlertSuppressed(ctx context.Context, pollutant string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("pollutant", pollutant)))
}

// EvaluationFailed records a failed per-user evaluation.
func (m *PipelineMetrics) EvaluationFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.evaluationFailures.Add(ctx, 1)
}

// NotificationFailed records a sender error.
func (m *PipelineMetrics) NotificationFailed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// NotificationDropped records a notification dropped on a full queue.
func (m *PipelineMetrics) NotificationDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.notificationsDropped.Add(ctx, 1)
}

// ForecastRun records a forecast generation with its outcome.
func (m *PipelineMetrics) ForecastRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.forecastRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
