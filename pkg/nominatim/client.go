// Package nominatim resolves coordinates to place names via the OSM
// Nominatim reverse-geocoding API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/shoreline-data/beachsync/internal/model"
	"github.com/shoreline-data/beachsync/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client reverse-geocodes coordinates. Nominatim's usage policy requires a
// minimum delay between requests and an identifying User-Agent; the client
// enforces both. Calls are serialized: the policy is per service, not per
// goroutine. An optional shared limiter charges each call against the
// global request budget on top of the courtesy interval.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	pacer      *rate.Limiter
	mu         sync.Mutex
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at an alternate Nominatim endpoint.
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

// WithUserAgent sets the identifying User-Agent required by the service.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLimiter sets the shared request-budget limiter. Every reverse
// lookup waits on it, so the same limiter handed to all collector clients
// enforces the global requests-per-minute budget.
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

// NewClient creates a Nominatim client with a 1s default interval.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		userAgent:  "beachsync/1.0",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pacer:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// reverseResponse is the subset of the Nominatim JSON reply we consume.
type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
		State   string `json:"state"`
		Region  string `json:"region"`
		County  string `json:"county"`
		Country string `json:"country"`
	} `json:"address"`
}

// Reverse resolves a coordinate pair to place metadata. Upstream failures
// come back as resilience.TransientError where retryable; the enrichment
// stage treats any error as "proceed without place info".
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*model.PlaceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "nominatim: rate limit wait")
		}
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: pacing wait")
	}

	params := url.Values{
		"lat":    {fmt.Sprintf("%g", lat)},
		"lon":    {fmt.Sprintf("%g", lon)},
		"format": {"jsonv2"},
		"zoom":   {"10"},
	}
	reqURL := c.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "nominatim: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nominatim: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "nominatim: read body"), 0)
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse response")
	}
	if rr.Error != "" {
		// "Unable to geocode" for open-ocean coordinates and similar.
		return nil, eris.Errorf("nominatim: %s", rr.Error)
	}

	return &model.PlaceInfo{
		PlaceName:   firstNonEmpty(rr.Address.City, rr.Address.Town, rr.Address.Village, rr.Address.Suburb),
		AdminRegion: firstNonEmpty(rr.Address.State, rr.Address.Region, rr.Address.County),
		Country:     rr.Address.Country,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
