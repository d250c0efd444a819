package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/shoreline-data/beachsync/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base := []Option{WithBaseURL(srv.URL), WithMinInterval(time.Millisecond)}
	return NewClient("test-key", append(base, opts...)...)
}

func TestCurrent_ParsesConditions(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{
			"main": {"temp": 24.3},
			"weather": [{"description": "clear sky"}],
			"wind": {"speed": 3.6}
		}`))
	})

	info, err := client.Current(context.Background(), -25.9, 113.5)
	require.NoError(t, err)
	assert.InDelta(t, 24.3, info.TemperatureC, 1e-9)
	assert.Equal(t, "clear sky", info.Conditions)
	assert.InDelta(t, 3.6, info.WindSpeedMS, 1e-9)
}

func TestCurrent_EmptyWeatherList(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 18.0}, "weather": [], "wind": {"speed": 1.2}}`))
	})

	info, err := client.Current(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, info.Conditions)
	assert.InDelta(t, 18.0, info.TemperatureC, 1e-9)
}

func TestCurrent_TransientOnServerError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Current(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestCurrent_PermanentOnBadKey(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Current(context.Background(), 1, 1)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestCurrent_EnforcesMinInterval(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 20}, "weather": [], "wind": {"speed": 0}}`))
	}, WithMinInterval(40*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Current(context.Background(), 1, 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestCurrent_DrawsFromSharedBudget(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 20}, "weather": [], "wind": {"speed": 0}}`))
	},
		WithMinInterval(time.Millisecond),
		WithLimiter(rate.NewLimiter(rate.Every(50*time.Millisecond), 1)),
	)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Current(context.Background(), 1, 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
