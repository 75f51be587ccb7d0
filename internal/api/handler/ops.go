// Package handler provides HTTP handlers for the AQM API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/api/response"
	"github.com/aqmonitor/aqm/internal/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    map[string]Check
	channels  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. checks are run by the readiness
// and status endpoints; channels may be nil.
func NewOpsHandler(version, buildTime string, checks map[string]Check, channels *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
		channels:  channels,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing dependency makes
// the instance unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Details: map[string]interface{}{},
	}
	for _, s := range subsystems {
		health.Details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
		}
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status. Notification channel trouble
// degrades the status but never fails it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Channels:   []models.ChannelStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}

	if h.channels != nil {
		for _, ch := range h.channels.Health() {
			cs := models.ChannelStatus{
				Channel:       ch.Name,
				Status:        models.HealthStatusOK,
				CircuitState:  ch.CircuitState.String(),
				LastSuccessAt: models.TimestampPtr(ch.LastSuccessAt),
				LastFailureAt: models.TimestampPtr(ch.LastFailureAt),
			}
			switch {
			case ch.IsHealthy():
			case ch.IsDegraded():
				cs.Status = models.HealthStatusDegraded
			default:
				cs.Status = models.HealthStatusFail
			}
			if ch.LastError != "" {
				msg := ch.LastError
				cs.Message = &msg
			}
			if cs.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Channels = append(status.Channels, cs)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}
