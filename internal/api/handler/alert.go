package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api/middleware"
	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/api/response"
)

// AlertHandler handles a user's alert inbox and on-demand checks.
type AlertHandler struct {
	alerts    *alert.Service
	evaluator *alert.Evaluator
	logger    zerolog.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alerts *alert.Service, evaluator *alert.Evaluator, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, evaluator: evaluator, logger: logger}
}

// ListAlerts handles GET /v1/me/alerts[?unread=true], newest first.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, r, "unread must be a boolean", []models.FieldError{
				{Field: "unread", Message: "must be true or false", Code: "boolean"},
			})
			return
		}
		unreadOnly = v
	}

	alerts, err := h.alerts.List(r.Context(), userID, unreadOnly)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.AlertList{Items: toAlerts(alerts)})
}

// UnreadCount handles GET /v1/me/alerts/unread-count.
func (h *AlertHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	n, err := h.alerts.UnreadCount(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.UnreadCount{Unread: n})
}

// Acknowledge handles POST /v1/me/alerts/{alertId}/acknowledge.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	a, err := h.alerts.Acknowledge(r.Context(), userID, chi.URLParam(r, "alertId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAlert(a))
}

// Check handles POST /v1/me/alerts/check: evaluates the latest measurement
// of every location against the caller's thresholds.
func (h *AlertHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	res, err := h.evaluator.CheckAllLocationsForUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("on-demand check failed")
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.CheckResult{
		Alerts:     toAlerts(res.Alerts),
		Suppressed: res.Suppressed,
		Failed:     res.Failed,
	})
}
