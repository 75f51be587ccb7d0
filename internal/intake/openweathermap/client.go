// Package openweathermap reads current air pollution from the
// OpenWeatherMap Air Pollution API.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/intake"
	"github.com/aqmonitor/aqm/internal/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the guarded HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Registry records call outcomes for the status endpoint. Optional.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an OpenWeatherMap air pollution client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{Name: ProviderName})
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(httpClient)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Current fetches the current pollutant concentrations at a coordinate.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*intake.Reading, error) {
	r, err := c.current(ctx, lat, lon)
	if c.registry != nil {
		if err != nil {
			c.registry.RecordFailure(c.httpClient.Name(), err)
		} else {
			c.registry.RecordSuccess(c.httpClient.Name())
		}
	}
	return r, err
}

func (c *Client) current(ctx context.Context, lat, lon float64) (*intake.Reading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/air_pollution?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("air pollution request rejected")
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var owmResp airPollutionResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(owmResp.List) == 0 {
		return nil, intake.ErrNoData
	}

	return toReading(owmResp.List[0]), nil
}

// toReading converts an entry to the domain model. The API reports every
// component in µg/m³; gases are stored in mg/m³.
func toReading(e entry) *intake.Reading {
	gas := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		mg := *v / 1000
		return &mg
	}

	return &intake.Reading{
		ObservedAt: time.Unix(e.Dt, 0).UTC(),
		PM25:       e.Components.PM25,
		PM10:       e.Components.PM10,
		NO2:        gas(e.Components.NO2),
		SO2:        gas(e.Components.SO2),
		CO:         gas(e.Components.CO),
		O3:         gas(e.Components.O3),
	}
}

// OpenWeatherMap API response structures.

type airPollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []entry `json:"list"`
}

type entry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"` // 1..5 European scale, unused
	} `json:"main"`
	Components struct {
		CO   *float64 `json:"co"`
		NO   *float64 `json:"no"`
		NO2  *float64 `json:"no2"`
		O3   *float64 `json:"o3"`
		SO2  *float64 `json:"so2"`
		PM25 *float64 `json:"pm2_5"`
		PM10 *float64 `json:"pm10"`
		NH3  *float64 `json:"nh3"`
	} `json:"components"`
}

// Ensure Client implements intake.Provider.
var _ intake.Provider = (*Client)(nil)
