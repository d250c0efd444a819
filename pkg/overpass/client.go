// Package overpass queries the OSM Overpass API for beach-tagged points
// of interest within a bounding box.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shoreline-data/beachsync/internal/model"
	"github.com/shoreline-data/beachsync/internal/resilience"
)

const defaultBaseURL = "https://overpass-api.de/api/interpreter"

// ErrMalformedResponse indicates the upstream payload could not be parsed.
// It is never retried.
var ErrMalformedResponse = errors.New("overpass: malformed response")

// ErrQueryTimeout indicates the upstream killed the query for exceeding
// its time budget. The caller may split the region and retry smaller boxes.
var ErrQueryTimeout = errors.New("overpass: query timeout")

// Client fetches beach records from the Overpass API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	queryBudget int // server-side [timeout:] seconds
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at an alternate Overpass endpoint.
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

// WithLimiter sets the shared request-budget limiter. Every fetch waits on
// it, so a single limiter passed to all collectors enforces the global
// requests-per-minute budget.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithQueryBudget sets the server-side query timeout in seconds.
func WithQueryBudget(secs int) Option {
	return func(c *Client) {
		if secs > 0 {
			c.queryBudget = secs
		}
	}
}

// NewClient creates an Overpass client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 90 * time.Second},
		queryBudget: 60,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is the Overpass JSON envelope.
type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FetchBeaches queries the region's bounding box for natural=beach
// elements. Re-invoking repeats the same query, so a failed region can be
// restarted. Transient upstream failures come back wrapped as
// resilience.TransientError; unparseable payloads wrap
// ErrMalformedResponse.
func (c *Client) FetchBeaches(ctx context.Context, region model.Region) ([]model.RawRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limit wait")
		}
	}

	body, err := c.post(ctx, c.buildQuery(region))
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "overpass: parse response: %v", err)
	}

	// Overpass reports killed queries in-band with a 200 status.
	if strings.Contains(strings.ToLower(resp.Remark), "timed out") {
		return nil, eris.Wrapf(ErrQueryTimeout, "overpass: region %s", region.Name)
	}

	records := make([]model.RawRecord, 0, len(resp.Elements))
	var skipped int
	for _, el := range resp.Elements {
		lat, lon, ok := el.coordinates()
		if !ok {
			skipped++
			continue
		}
		records = append(records, model.RawRecord{
			SourceID:  fmt.Sprintf("osm_%s_%d", el.Type, el.ID),
			Tags:      el.Tags,
			Latitude:  lat,
			Longitude: lon,
		})
	}

	if skipped > 0 {
		zap.L().Debug("overpass: elements without coordinates skipped",
			zap.String("region", region.Name),
			zap.Int("skipped", skipped),
		)
	}

	return records, nil
}

// coordinates resolves an element's point location: nodes carry lat/lon
// directly, ways and relations carry a computed center.
func (el element) coordinates() (float64, float64, bool) {
	switch {
	case el.Type == "node":
		return el.Lat, el.Lon, true
	case el.Center != nil:
		return el.Center.Lat, el.Center.Lon, true
	default:
		return 0, 0, false
	}
}

// buildQuery renders the Overpass QL query for a bounding box.
func (c *Client) buildQuery(r model.Region) string {
	bbox := fmt.Sprintf("(%g,%g,%g,%g)", r.South, r.West, r.North, r.East)
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node["natural"="beach"]%s;
  way["natural"="beach"]%s;
  relation["natural"="beach"]%s;
);
out center;`, c.queryBudget, bbox, bbox, bbox)
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "overpass: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "overpass: read body"), 0)
	}
	return body, nil
}
