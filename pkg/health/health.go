// Package health provides liveness and readiness checks for the race host.
// The readiness probe fails when the frame loop stalls or when a required
// dependency is unavailable.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck defines the interface for individual health checks.
type HealthCheck interface {
	// Name returns the unique name of this health check
	Name() string
	// Check performs the health check and returns an error if unhealthy
	Check(ctx context.Context) error
}

// HealthStatus represents the overall health status of the host.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents the health status of an individual component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker manages and executes health checks.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates a new health checker instance.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers a health check, replacing any with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a health check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names returns the registered check names in sorted order.
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth executes all registered health checks. The overall status is
// healthy only if every check passes.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := HealthStatus{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentHealth, len(hc.checks)),
	}

	for name, check := range hc.checks {
		if err := check.Check(ctx); err != nil {
			status.Status = StatusUnhealthy
			status.Checks[name] = ComponentHealth{
				Status:  StatusUnhealthy,
				Message: err.Error(),
			}
			continue
		}
		status.Checks[name] = ComponentHealth{Status: StatusHealthy}
	}

	return status
}

// LivenessHandler returns 200 while the process can serve requests.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler runs every check and returns 503 if any fails.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := hc.CheckHealth(ctx)

	w.Header().Set("Content-Type", "application/json")
	if health.Status == StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

var (
	// ErrNoFrames means the frame loop has not produced a frame yet
	ErrNoFrames = errors.New("no frame stepped yet")
	// ErrBreakerOpen means a dependency's circuit breaker is rejecting calls
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// FrameLoopHealthCheck fails when the last frame is older than the window.
type FrameLoopHealthCheck struct {
	lastFrame func() time.Time
	window    time.Duration
	now       func() time.Time
}

// NewFrameLoopHealthCheck creates a liveness check for the frame loop.
// lastFrame returns the zero time until the first frame is stepped.
func NewFrameLoopHealthCheck(lastFrame func() time.Time, window time.Duration) *FrameLoopHealthCheck {
	return &FrameLoopHealthCheck{
		lastFrame: lastFrame,
		window:    window,
		now:       time.Now,
	}
}

// Name returns the name of this health check.
func (f *FrameLoopHealthCheck) Name() string {
	return "frame_loop"
}

// Check verifies that frames are still being stepped.
func (f *FrameLoopHealthCheck) Check(ctx context.Context) error {
	last := f.lastFrame()
	if last.IsZero() {
		return ErrNoFrames
	}
	if age := f.now().Sub(last); age > f.window {
		return fmt.Errorf("last frame %s ago exceeds %s", age.Round(time.Millisecond), f.window)
	}
	return nil
}

// BreakerHealthCheck reports a dependency as down while its breaker is open.
// Half-open counts as healthy since trial requests are being let through.
type BreakerHealthCheck struct {
	name  string
	state func() gobreaker.State
}

// NewBreakerHealthCheck creates a health check over a circuit breaker state.
func NewBreakerHealthCheck(name string, state func() gobreaker.State) *BreakerHealthCheck {
	return &BreakerHealthCheck{
		name:  name,
		state: state,
	}
}

// Name returns the name of this health check.
func (b *BreakerHealthCheck) Name() string {
	return b.name
}

// Check fails while the breaker is open.
func (b *BreakerHealthCheck) Check(ctx context.Context) error {
	if b.state() == gobreaker.StateOpen {
		return ErrBreakerOpen
	}
	return nil
}
