package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aqmonitor/aqm/internal/api/middleware"
	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/api/response"
	"github.com/aqmonitor/aqm/internal/threshold"
)

// ThresholdHandler handles the caller's alert limits.
type ThresholdHandler struct {
	service  *threshold.Service
	validate *validator.Validate
}

// NewThresholdHandler creates a new ThresholdHandler.
func NewThresholdHandler(service *threshold.Service) *ThresholdHandler {
	return &ThresholdHandler{service: service, validate: response.NewValidator()}
}

// GetThreshold handles GET /v1/me/threshold. Users without stored limits get
// the defaults with custom=false.
func (h *ThresholdHandler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	t, err := h.service.Get(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toThreshold(t))
}

// PutThreshold handles PUT /v1/me/threshold.
func (h *ThresholdHandler) PutThreshold(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	var input models.ThresholdInput
	if err := response.DecodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		response.Validation(w, r, err)
		return
	}

	t, err := h.service.Set(r.Context(), userID, input.PM25, input.PM10, input.AQI)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toThreshold(t))
}
