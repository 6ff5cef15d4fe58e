// Package narrative fetches race flavor text from an external service.
// Calls go through a circuit breaker and a rate limiter, run off the frame
// loop, and fall back to built-in lines when the service is unavailable.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/opd-ai/go-gaterace/pkg/config"
	"github.com/opd-ai/go-gaterace/pkg/event"
	"github.com/opd-ai/go-gaterace/pkg/logging"
)

var (
	// ErrRateLimited is returned when the request budget is spent
	ErrRateLimited = errors.New("narrative: rate limited")
	// ErrBadStatus is returned for a non-2xx reply
	ErrBadStatus = errors.New("narrative: unexpected status")
	// ErrEmptyText is returned when the reply carries no text
	ErrEmptyText = errors.New("narrative: empty text")
)

// Outcome labels for Result
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

const (
	resultBuffer = 16
	maxBodyBytes = 64 << 10
)

// Request identifies the race the text is for
type Request struct {
	Chassis string `json:"chassis"`
	RaceID  string `json:"raceId"`
}

type response struct {
	Text string `json:"text"`
}

// Result is delivered for every asynchronous request
type Result struct {
	RaceID  string
	Chassis string
	Text    string
	Outcome string
	// Err is the failure that caused a fallback, nil on success
	Err error
}

// Client wraps the narrative service with circuit breaker functionality
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	logger   *logging.Logger

	results chan Result
	wg      sync.WaitGroup
}

// NewClient creates a client from the narrative config section
func NewClient(cfg config.NarrativeConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With("component", "narrative")

	settings := gobreaker.Settings{
		Name:        "gaterace-narrative",
		MaxRequests: uint32(cfg.CircuitBreaker.MaxRequests),
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreaker.MaxConsecutiveFails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		limiter:  newLimiter(cfg.RequestsPerMinute),
		logger:   logger,
		results:  make(chan Result, resultBuffer),
	}
}

// newLimiter allows a minute's budget up front, then refills evenly. A
// non-positive budget disables limiting.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Fetch calls the service synchronously
func (c *Client) Fetch(ctx context.Context, req Request) (string, error) {
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		c.logger.LogWithContext(ctx, zapcore.WarnLevel, "narrative request failed",
			"error", err,
			"state", c.breaker.State().String(),
		)
		return "", fmt.Errorf("circuit breaker: %w", err)
	}
	return out.(string), nil
}

func (c *Client) post(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&r); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// Request fetches in the background and delivers a Result on Results. It
// never blocks; a result is dropped if nobody is draining the channel.
func (c *Client) Request(ctx context.Context, req Request) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx := logging.WithCorrelationID(ctx, req.RaceID)
		res := Result{RaceID: req.RaceID, Chassis: req.Chassis, Outcome: OutcomeOK}

		text, err := c.Fetch(ctx, req)
		if err != nil {
			res.Outcome = OutcomeFallback
			res.Err = err
			text = FallbackText(req.Chassis)
		}
		res.Text = text

		select {
		case c.results <- res:
		default:
			c.logger.Warn(ctx, "narrative result dropped, channel full")
		}
	}()
}

// Results returns the channel asynchronous requests report on
func (c *Client) Results() <-chan Result {
	return c.results
}

// Subscribe requests flavor text for every race start published on bus
func (c *Client) Subscribe(ctx context.Context, bus *event.Bus) event.SubscriptionID {
	return bus.Subscribe(event.RaceStarted, func(e event.Event) {
		re, ok := e.(*event.RaceEvent)
		if !ok {
			return
		}
		c.Request(ctx, Request{Chassis: re.Chassis, RaceID: re.RaceID})
	})
}

// Wait blocks until in-flight requests have finished
func (c *Client) Wait() {
	c.wg.Wait()
}

// State returns the current state of the circuit breaker
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker's failure/success counts
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

var fallbackLines = map[string]string{
	"interceptor": "Interceptor on the line. Light thrust, tight lines, no second chances.",
	"vanguard":    "Vanguard rolls out heavy. It will not turn fast, so turn early.",
	"phantom":     "Phantom is cleared. Quick hands will find the gaps.",
}

// FallbackText returns the built-in line used when the service is unavailable
func FallbackText(chassis string) string {
	if line, ok := fallbackLines[strings.ToLower(chassis)]; ok {
		return line
	}
	return "Gates are hot. Fly clean."
}
