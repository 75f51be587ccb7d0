package handler

import (
	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/aqi"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/threshold"
)

func toMeasurement(m *measurement.Measurement) models.Measurement {
	out := models.Measurement{
		ID:         m.ID,
		LocationID: m.LocationID,
		SensorID:   m.SensorID,
		Timestamp:  models.Timestamp(m.Timestamp),
		PM25:       m.PM25,
		PM10:       m.PM10,
		NO2:        m.NO2,
		SO2:        m.SO2,
		CO:         m.CO,
		O3:         m.O3,
		AQI:        m.AQI,
	}
	if m.AQI != nil {
		out.Category = string(aqi.CategoryFor(*m.AQI))
	}
	return out
}

func toLocation(l *measurement.Location) models.Location {
	return models.Location{
		ID:       l.ID,
		Name:     l.Name,
		Lat:      l.Lat,
		Lon:      l.Lon,
		Timezone: l.Timezone,
	}
}

func toAlert(a *alert.Alert) models.Alert {
	return models.Alert{
		ID:            a.ID,
		MeasurementID: a.MeasurementID,
		LocationID:    a.LocationID,
		Pollutant:     string(a.Pollutant),
		Value:         a.Value,
		Unit:          a.Pollutant.Unit(),
		Limit:         a.Limit,
		Read:          a.Read,
		Status:        string(a.Status),
		TriggeredAt:   models.Timestamp(a.TriggeredAt),
	}
}

func toAlerts(alerts []*alert.Alert) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlert(a))
	}
	return out
}

func toThreshold(t *threshold.Threshold) models.Threshold {
	limits := t.Effective()
	out := models.Threshold{
		PM25: limits.PM25,
		PM10: limits.PM10,
		AQI:  limits.AQI,
	}
	if t != nil {
		out.Custom = true
		out.UpdatedAt = models.TimestampPtr(&t.UpdatedAt)
	}
	return out
}

func toForecastList(locationID string, forecasts []*forecast.Forecast) models.ForecastList {
	out := models.ForecastList{
		LocationID: locationID,
		Items:      make([]models.Forecast, 0, len(forecasts)),
	}
	for _, f := range forecasts {
		out.Items = append(out.Items, models.Forecast{
			Timestamp:     models.Timestamp(f.Timestamp),
			PredictedPM25: f.PredictedPM25,
			PredictedPM10: f.PredictedPM10,
			PredictedAQI:  f.PredictedAQI,
			Category:      string(aqi.CategoryFor(f.PredictedAQI)),
		})
	}
	if len(forecasts) > 0 {
		out.ModelVersion = forecasts[0].ModelVersion
		out.GeneratedAt = models.TimestampPtr(&forecasts[0].CreatedAt)
	}
	return out
}
