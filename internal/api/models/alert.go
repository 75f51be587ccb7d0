package models

// Alert is an alert in a user's inbox.
type Alert struct {
	ID            string    `json:"id"`
	MeasurementID string    `json:"measurementId"`
	LocationID    string    `json:"locationId"`
	Pollutant     string    `json:"pollutant"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit,omitempty"`
	Limit         float64   `json:"limit"`
	Read          bool      `json:"read"`
	Status        string    `json:"status"`
	TriggeredAt   Timestamp `json:"triggeredAt"`
}

// AlertList is the body of GET /v1/me/alerts.
type AlertList struct {
	Items []Alert `json:"items"`
}

// UnreadCount is the body of GET /v1/me/alerts/unread-count.
type UnreadCount struct {
	Unread int `json:"unread"`
}

// CheckResult summarises an on-demand evaluation.
type CheckResult struct {
	Alerts     []Alert `json:"alerts"`
	Suppressed int     `json:"suppressed"`
	Failed     int     `json:"failed"`
}

// Threshold is a user's effective alert limits. Custom reports whether the
// user stored their own limits.
type Threshold struct {
	PM25      float64    `json:"pm25"`
	PM10      float64    `json:"pm10"`
	AQI       float64    `json:"aqi"`
	Custom    bool       `json:"custom"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
}

// ThresholdInput is the body of PUT /v1/me/threshold. Omitted limits revert
// to the defaults.
type ThresholdInput struct {
	PM25 *float64 `json:"pm25,omitempty" validate:"omitempty,gt=0,lte=1000"`
	PM10 *float64 `json:"pm10,omitempty" validate:"omitempty,gt=0,lte=2000"`
	AQI  *float64 `json:"aqi,omitempty" validate:"omitempty,gt=0,lte=500"`
}
