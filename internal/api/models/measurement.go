package models

// MeasurementInput is the body of POST /v1/measurements. At least one
// concentration must be present.
type MeasurementInput struct {
	LocationID string     `json:"locationId" validate:"required,max=64"`
	SensorID   string     `json:"sensorId,omitempty" validate:"max=64"`
	Timestamp  *Timestamp `json:"timestamp,omitempty"`
	PM25       *float64   `json:"pm25,omitempty" validate:"omitempty,gte=0,lte=1000"`
	PM10       *float64   `json:"pm10,omitempty" validate:"omitempty,gte=0,lte=2000"`
	NO2        *float64   `json:"no2,omitempty" validate:"omitempty,gte=0,lte=100"`
	SO2        *float64   `json:"so2,omitempty" validate:"omitempty,gte=0,lte=100"`
	CO         *float64   `json:"co,omitempty" validate:"omitempty,gte=0,lte=1000"`
	O3         *float64   `json:"o3,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Measurement is a stored measurement with its derived AQI.
type Measurement struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId"`
	SensorID   string    `json:"sensorId,omitempty"`
	Timestamp  Timestamp `json:"timestamp"`
	PM25       *float64  `json:"pm25,omitempty"`
	PM10       *float64  `json:"pm10,omitempty"`
	NO2        *float64  `json:"no2,omitempty"`
	SO2        *float64  `json:"so2,omitempty"`
	CO         *float64  `json:"co,omitempty"`
	O3         *float64  `json:"o3,omitempty"`
	AQI        *int      `json:"aqi,omitempty"`
	Category   string    `json:"category,omitempty"`
}

// Location is a monitored site.
type Location struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone,omitempty"`
}

// LocationList is the body of GET /v1/locations.
type LocationList struct {
	Items []Location `json:"items"`
}
