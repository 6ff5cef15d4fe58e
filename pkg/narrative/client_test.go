package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-gaterace/pkg/config"
	"github.com/opd-ai/go-gaterace/pkg/event"
)

func testConfig(endpoint string) config.NarrativeConfig {
	return config.NarrativeConfig{
		Enabled:           true,
		Endpoint:          endpoint,
		Timeout:           2 * time.Second,
		RequestsPerMinute: 0,
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxRequests:         1,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			MaxConsecutiveFails: 3,
		},
	}
}

func flavorServer(t *testing.T, text string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response{Text: text + " " + req.Chassis})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func failingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func receive(t *testing.T, c *Client) Result {
	t.Helper()
	select {
	case res := <-c.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for narrative result")
		return Result{}
	}
}

func TestFetch_Success(t *testing.T) {
	srv, hits := flavorServer(t, "welcome")
	c := NewClient(testConfig(srv.URL), nil)

	text, err := c.Fetch(context.Background(), Request{Chassis: "phantom", RaceID: "r-1"})

	require.NoError(t, err)
	assert.Equal(t, "welcome phantom", text)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestFetch_BadStatus(t *testing.T) {
	srv, _ := failingServer(t, http.StatusInternalServerError)
	c := NewClient(testConfig(srv.URL), nil)

	_, err := c.Fetch(context.Background(), Request{Chassis: "phantom"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Equal(t, gobreaker.StateClosed, c.State(), "one failure does not trip")
}

func TestFetch_EmptyText(t *testing.T) {
	srv, _ := flavorServer(t, "")
	c := NewClient(testConfig(srv.URL), nil)

	// the server appends the chassis, so an empty chassis yields blank text
	_, err := c.Fetch(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestFetch_BreakerTrips(t *testing.T) {
	srv, hits := failingServer(t, http.StatusBadGateway)
	c := NewClient(testConfig(srv.URL), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(ctx, Request{Chassis: "vanguard"})
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, c.State())

	_, err := c.Fetch(ctx, Request{Chassis: "vanguard"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the server")
}

func TestFetch_RateLimited(t *testing.T) {
	srv, hits := flavorServer(t, "hi")
	cfg := testConfig(srv.URL)
	cfg.RequestsPerMinute = 1
	c := NewClient(cfg, nil)
	ctx := context.Background()

	_, err := c.Fetch(ctx, Request{Chassis: "phantom"})
	require.NoError(t, err)

	_, err = c.Fetch(ctx, Request{Chassis: "phantom"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), hits.Load())
	assert.Zero(t, c.Counts().TotalFailures, "rate limiting is not a service failure")
}

func TestRequest_DeliversResult(t *testing.T) {
	srv, _ := flavorServer(t, "go")
	c := NewClient(testConfig(srv.URL), nil)

	c.Request(context.Background(), Request{Chassis: "interceptor", RaceID: "race-7"})
	res := receive(t, c)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "go interceptor", res.Text)
	assert.Equal(t, "race-7", res.RaceID)
	assert.NoError(t, res.Err)
}

func TestRequest_FallsBack(t *testing.T) {
	srv, _ := failingServer(t, http.StatusServiceUnavailable)
	c := NewClient(testConfig(srv.URL), nil)

	c.Request(context.Background(), Request{Chassis: "vanguard", RaceID: "race-8"})
	res := receive(t, c)

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, FallbackText("vanguard"), res.Text)
	assert.True(t, errors.Is(res.Err, ErrBadStatus))
}

func TestRequest_UnreachableService(t *testing.T) {
	srv, _ := flavorServer(t, "x")
	url := srv.URL
	srv.Close()
	c := NewClient(testConfig(url), nil)

	c.Request(context.Background(), Request{Chassis: "phantom"})
	res := receive(t, c)

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Error(t, res.Err)
}

func TestSubscribe_RaceStarted(t *testing.T) {
	srv, _ := flavorServer(t, "launch")
	c := NewClient(testConfig(srv.URL), nil)
	bus := event.NewEventBus()
	c.Subscribe(context.Background(), bus)

	bus.Publish(event.NewRaceEvent(event.RaceStarted, nil, "race-9", "phantom", 0, 0))
	res := receive(t, c)
	c.Wait()

	assert.Equal(t, "launch phantom", res.Text)
	assert.Equal(t, "race-9", res.RaceID)
}

func TestSubscribe_IgnoresOtherEvents(t *testing.T) {
	srv, hits := flavorServer(t, "x")
	c := NewClient(testConfig(srv.URL), nil)
	bus := event.NewEventBus()
	c.Subscribe(context.Background(), bus)

	bus.Publish(event.NewRaceEvent(event.RaceFinished, nil, "race-9", "phantom", 400, 570))
	c.Wait()

	assert.Zero(t, hits.Load())
	assert.Empty(t, c.Results())
}

func TestFallbackText(t *testing.T) {
	tests := []struct {
		chassis string
		want    string
	}{
		{"interceptor", fallbackLines["interceptor"]},
		{"VANGUARD", fallbackLines["vanguard"]},
		{"phantom", fallbackLines["phantom"]},
		{"", "Gates are hot. Fly clean."},
		{"zeppelin", "Gates are hot. Fly clean."},
	}
	for _, tt := range tests {
		t.Run(tt.chassis, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackText(tt.chassis))
		})
	}
}
