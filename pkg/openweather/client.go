// Package openweather fetches current weather for a coordinate pair from
// the OpenWeather API, used to attach climate data to beach documents.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/shoreline-data/beachsync/internal/model"
	"github.com/shoreline-data/beachsync/internal/resilience"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Client fetches current-weather data. Lookups are paced by a minimum
// interval and optionally charged against the shared request budget.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	pacer      *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at an alternate weather endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter sets the shared request-budget limiter. Every lookup waits
// on it, so the same limiter handed to all collector clients enforces the
// global requests-per-minute budget.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMinInterval sets the minimum delay between requests.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pacer = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewClient creates an OpenWeather client with a 1s default interval.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pacer:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// weatherResponse is the subset of the OpenWeather JSON reply we consume.
type weatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current fetches current conditions for a coordinate pair. Upstream
// failures come back as resilience.TransientError where retryable; the
// enrichment stage treats any error as "proceed without climate info".
func (c *Client) Current(ctx context.Context, lat, lon float64) (*model.ClimateInfo, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "openweather: rate limit wait")
		}
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "openweather: pacing wait")
	}

	params := url.Values{
		"lat":   {fmt.Sprintf("%g", lat)},
		"lon":   {fmt.Sprintf("%g", lon)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "openweather: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "openweather: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("openweather: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "openweather: read body"), 0)
	}

	var wr weatherResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, eris.Wrap(err, "openweather: parse response")
	}

	info := &model.ClimateInfo{
		TemperatureC: wr.Main.Temp,
		WindSpeedMS:  wr.Wind.Speed,
	}
	if len(wr.Weather) > 0 {
		info.Conditions = wr.Weather[0].Description
	}
	return info, nil
}
