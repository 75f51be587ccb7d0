package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/api/response"
	"github.com/aqmonitor/aqm/internal/forecast"
)

// ForecastHandler serves and regenerates location forecasts.
type ForecastHandler struct {
	generator *forecast.Generator
	logger    zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(generator *forecast.Generator, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{generator: generator, logger: logger}
}

// ListForecasts handles GET /v1/locations/{locationId}/forecasts. An empty
// list means no forecast has been generated yet.
func (h *ForecastHandler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	forecasts, err := h.generator.Latest(r.Context(), locationID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toForecastList(locationID, forecasts))
}

// Generate handles POST /v1/locations/{locationId}/forecasts/generate and
// returns the replacement series.
func (h *ForecastHandler) Generate(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	forecasts, err := h.generator.Generate(r.Context(), locationID)
	if err != nil {
		if !errors.Is(err, forecast.ErrInsufficientData) {
			h.logger.Error().Err(err).Str("location_id", locationID).Msg("forecast generation failed")
		}
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toForecastList(locationID, forecasts))
}
