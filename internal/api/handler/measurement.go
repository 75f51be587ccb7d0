package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/api/middleware"
	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/api/response"
	"github.com/aqmonitor/aqm/internal/measurement"
)

// MeasurementHandler handles ingestion and location endpoints.
type MeasurementHandler struct {
	service  *measurement.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewMeasurementHandler creates a new MeasurementHandler.
func NewMeasurementHandler(service *measurement.Service, logger zerolog.Logger) *MeasurementHandler {
	return &MeasurementHandler{
		service:  service,
		validate: response.NewValidator(),
		logger:   logger,
	}
}

// Ingest handles POST /v1/measurements. The measurement is stored and
// annotated before the response; alert evaluation happens afterwards and
// never changes the outcome.
func (h *MeasurementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var input models.MeasurementInput
	if err := response.DecodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		response.Validation(w, r, err)
		return
	}
	if input.PM25 == nil && input.PM10 == nil && input.NO2 == nil &&
		input.SO2 == nil && input.CO == nil && input.O3 == nil {
		response.BadRequest(w, r, "at least one pollutant concentration is required", nil)
		return
	}

	m := &measurement.Measurement{
		LocationID: input.LocationID,
		SensorID:   input.SensorID,
		PM25:       input.PM25,
		PM10:       input.PM10,
		NO2:        input.NO2,
		SO2:        input.SO2,
		CO:         input.CO,
		O3:         input.O3,
	}
	if input.Timestamp != nil {
		m.Timestamp = input.Timestamp.Time().UTC()
	}

	stored, err := h.service.Ingest(r.Context(), m)
	if err != nil {
		if errors.Is(err, measurement.ErrLocationNotFound) {
			response.FromError(w, r, err)
			return
		}
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("location_id", input.LocationID).
			Msg("ingest failed")
		response.FromError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/measurements/"+stored.ID, toMeasurement(stored))
}

// GetMeasurement handles GET /v1/measurements/{measurementId}.
func (h *MeasurementHandler) GetMeasurement(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "measurementId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toMeasurement(m))
}

// ListLocations handles GET /v1/locations.
func (h *MeasurementHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Locations(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	out := models.LocationList{Items: make([]models.Location, 0, len(locations))}
	for _, l := range locations {
		out.Items = append(out.Items, toLocation(l))
	}
	response.JSON(w, r, http.StatusOK, out)
}
