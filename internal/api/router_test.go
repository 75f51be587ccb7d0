package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/api"
	"github.com/aqmonitor/aqm/internal/api/handler"
	"github.com/aqmonitor/aqm/internal/api/models"
	"github.com/aqmonitor/aqm/internal/auth"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/threshold"
	"github.com/aqmonitor/aqm/internal/user"
)

type harness struct {
	router       http.Handler
	tokens       *auth.JWTService
	evaluator    *alert.Evaluator
	measurements *measurement.InMemoryRepository
	alerts       *alert.InMemoryRepository
}

func newHarness(t *testing.T, checks map[string]handler.Check) *harness {
	t.Helper()
	ctx := context.Background()

	tokens, err := auth.NewJWTService(auth.JWTConfig{SigningKey: "test-secret-key-for-testing-only"})
	require.NoError(t, err)

	measurements := measurement.NewInMemoryRepository()
	measurements.AddLocation(&measurement.Location{ID: "loc_a", Name: "Harbour", Lat: 52.37, Lon: 4.9})

	users := user.NewInMemoryRepository()
	for _, u := range []*user.User{
		{ID: "usr_1", Username: "ana", Status: user.StatusActive},
		{ID: "usr_2", Username: "ben", Status: user.StatusActive},
	} {
		require.NoError(t, users.Create(ctx, u))
	}

	thresholds := threshold.NewInMemoryRepository()
	alerts := alert.NewInMemoryRepository()

	evaluator := alert.NewEvaluator(alert.EvaluatorConfig{
		Users:        users,
		Thresholds:   thresholds,
		Measurements: measurements,
		Alerts:       alerts,
		Logger:       zerolog.Nop(),
	})

	measurementService := measurement.NewService(measurements, measurement.ServiceConfig{
		Evaluator: evaluator,
		Logger:    zerolog.Nop(),
	})

	generator := forecast.NewGenerator(forecast.GeneratorConfig{
		Measurements: measurements,
		Forecasts:    forecast.NewInMemoryRepository(),
		Random:       forecast.NewRandomSource(1),
		Logger:       zerolog.Nop(),
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2026-01-01T00:00:00Z",
		Logger:             zerolog.Nop(),
		Tokens:             tokens,
		MeasurementService: measurementService,
		AlertService:       alert.NewService(alerts),
		Evaluator:          evaluator,
		ThresholdService:   threshold.NewService(thresholds),
		Forecasts:          generator,
		ReadinessChecks:    checks,
	})

	return &harness{
		router:       router,
		tokens:       tokens,
		evaluator:    evaluator,
		measurements: measurements,
		alerts:       alerts,
	}
}

func (h *harness) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, _, err := h.tokens.GenerateAccessToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/v1/ops/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	decode(t, rec, &health)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestReadinessCheck(t *testing.T) {
	h := newHarness(t, map[string]handler.Check{
		"postgres": func(context.Context) error { return nil },
	})
	rec := h.do(t, http.MethodGet, "/v1/ops/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newHarness(t, map[string]handler.Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec = h.do(t, http.MethodGet, "/v1/ops/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health models.Health
	decode(t, rec, &health)
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, "FAIL", health.Details["redis"])
	assert.Equal(t, "OK", health.Details["postgres"])
}

func TestSystemStatus_RequiresAuth(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/v1/ops/status", "", nil).Code)

	rec := h.do(t, http.MethodGet, "/v1/ops/status", "usr_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	decode(t, rec, &status)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Empty(t, status.Channels)
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	h := newHarness(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/measurements"},
		{http.MethodGet, "/v1/locations"},
		{http.MethodGet, "/v1/locations/loc_a/forecasts"},
		{http.MethodGet, "/v1/me/alerts"},
		{http.MethodPost, "/v1/me/alerts/check"},
		{http.MethodPut, "/v1/me/threshold"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := h.do(t, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestIngest_CreatesAlertsAsynchronously(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/measurements", "usr_1", map[string]interface{}{
		"locationId": "loc_a",
		"pm25":       40.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var m models.Measurement
	decode(t, rec, &m)
	require.NotNil(t, m.AQI)
	assert.Equal(t, 112, *m.AQI)
	assert.Equal(t, "Unhealthy for Sensitive Groups", m.Category)
	assert.Equal(t, "/v1/measurements/"+m.ID, rec.Header().Get("Location"))

	h.evaluator.Wait()

	// PM2.5 40 > 35.5 and AQI 112 > 100 for each of the two users.
	assert.Equal(t, 4, h.alerts.Count())

	rec = h.do(t, http.MethodGet, "/v1/me/alerts", "usr_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.AlertList
	decode(t, rec, &list)
	require.Len(t, list.Items, 2)
	for _, a := range list.Items {
		assert.Equal(t, m.ID, a.MeasurementID)
		assert.Equal(t, "loc_a", a.LocationID)
		assert.Equal(t, "SENT", a.Status)
		assert.False(t, a.Read)
	}

	rec = h.do(t, http.MethodGet, "/v1/measurements/"+m.ID, "usr_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngest_Validation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing location", map[string]interface{}{"pm25": 12.0}, http.StatusBadRequest},
		{"negative value", map[string]interface{}{"locationId": "loc_a", "pm25": -1.0}, http.StatusBadRequest},
		{"no pollutants", map[string]interface{}{"locationId": "loc_a"}, http.StatusBadRequest},
		{"unknown field", map[string]interface{}{"locationId": "loc_a", "pm25": 1.0, "foo": 1}, http.StatusBadRequest},
		{"unknown location", map[string]interface{}{"locationId": "loc_zz", "pm25": 1.0}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/v1/measurements", "usr_1", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAlerts_AcknowledgeAndUnreadCount(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/measurements", "usr_1", map[string]interface{}{
		"locationId": "loc_a",
		"pm10":       200.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	h.evaluator.Wait()

	var count models.UnreadCount
	decode(t, h.do(t, http.MethodGet, "/v1/me/alerts/unread-count", "usr_1", nil), &count)
	assert.Equal(t, 1, count.Unread)

	var list models.AlertList
	decode(t, h.do(t, http.MethodGet, "/v1/me/alerts?unread=true", "usr_1", nil), &list)
	require.Len(t, list.Items, 1)
	alertID := list.Items[0].ID
	assert.Equal(t, "PM10", list.Items[0].Pollutant)

	// Another user's alert is invisible.
	rec = h.do(t, http.MethodPost, "/v1/me/alerts/"+alertID+"/acknowledge", "usr_2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/me/alerts/"+alertID+"/acknowledge", "usr_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acked models.Alert
	decode(t, rec, &acked)
	assert.True(t, acked.Read)
	assert.Equal(t, "ACKNOWLEDGED", acked.Status)

	decode(t, h.do(t, http.MethodGet, "/v1/me/alerts/unread-count", "usr_1", nil), &count)
	assert.Equal(t, 0, count.Unread)

	rec = h.do(t, http.MethodGet, "/v1/me/alerts?unread=maybe", "usr_1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts_CheckUsesLatestMeasurement(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	pm := func(v float64) *float64 { return &v }
	require.NoError(t, h.measurements.Create(ctx, &measurement.Measurement{
		ID: "msr_old", LocationID: "loc_a", Timestamp: time.Now().Add(-2 * time.Hour), PM25: pm(90),
	}))
	require.NoError(t, h.measurements.Create(ctx, &measurement.Measurement{
		ID: "msr_new", LocationID: "loc_a", Timestamp: time.Now().Add(-time.Minute), PM25: pm(50),
	}))

	rec := h.do(t, http.MethodPost, "/v1/me/alerts/check", "usr_1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.CheckResult
	decode(t, rec, &res)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "msr_new", res.Alerts[0].MeasurementID)
	assert.Equal(t, 50.0, res.Alerts[0].Value)

	// Inside the cooldown the same crossing is suppressed.
	decode(t, h.do(t, http.MethodPost, "/v1/me/alerts/check", "usr_1", nil), &res)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, res.Suppressed)
}

func TestThreshold_GetAndPut(t *testing.T) {
	h := newHarness(t, nil)

	var th models.Threshold
	decode(t, h.do(t, http.MethodGet, "/v1/me/threshold", "usr_1", nil), &th)
	assert.False(t, th.Custom)
	assert.Equal(t, 35.5, th.PM25)

	rec := h.do(t, http.MethodPut, "/v1/me/threshold", "usr_1", map[string]interface{}{"pm25": 20.0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &th)
	assert.True(t, th.Custom)
	assert.Equal(t, 20.0, th.PM25)
	assert.Equal(t, 150.0, th.PM10)

	rec = h.do(t, http.MethodPut, "/v1/me/threshold", "usr_1", map[string]interface{}{"aqi": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecasts(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/locations/loc_a/forecasts/generate", "usr_1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/locations/loc_zz/forecasts/generate", "usr_1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/measurements", "usr_1", map[string]interface{}{
		"locationId": "loc_a",
		"pm25":       10.0,
		"pm10":       20.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	h.evaluator.Wait()

	rec = h.do(t, http.MethodPost, "/v1/locations/loc_a/forecasts/generate", "usr_1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list models.ForecastList
	decode(t, h.do(t, http.MethodGet, "/v1/locations/loc_a/forecasts", "usr_1", nil), &list)
	require.Len(t, list.Items, forecast.Steps)
	assert.Equal(t, forecast.ModelVersion, list.ModelVersion)
	for i := 1; i < len(list.Items); i++ {
		assert.True(t, list.Items[i].Timestamp.Time().After(list.Items[i-1].Timestamp.Time()))
	}
}

func TestLocations(t *testing.T) {
	h := newHarness(t, nil)

	var list models.LocationList
	rec := h.do(t, http.MethodGet, "/v1/locations", "usr_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Harbour", list.Items[0].Name)
}

func TestRequireJSON_RejectsForms(t *testing.T) {
	h := newHarness(t, nil)
	token, _, err := h.tokens.GenerateAccessToken("usr_1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/measurements", bytes.NewBufferString("locationId=loc_a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
