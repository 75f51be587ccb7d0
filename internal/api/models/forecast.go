package models

// Forecast is one predicted step for a location.
type Forecast struct {
	Timestamp     Timestamp `json:"timestamp"`
	PredictedPM25 float64   `json:"predictedPm25"`
	PredictedPM10 float64   `json:"predictedPm10"`
	PredictedAQI  int       `json:"predictedAqi"`
	Category      string    `json:"category"`
}

// ForecastList is the forecast series of a location, ascending by time.
type ForecastList struct {
	LocationID   string     `json:"locationId"`
	ModelVersion string     `json:"modelVersion,omitempty"`
	GeneratedAt  *Timestamp `json:"generatedAt,omitempty"`
	Items        []Forecast `json:"items"`
}
