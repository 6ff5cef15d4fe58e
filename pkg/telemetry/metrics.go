package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opd-ai/go-gaterace/pkg/event"
)

// Race outcome label values. Labels are bounded; never label by race ID.
const (
	outcomeStarted  = "started"
	outcomeFinished = "finished"
	outcomeAborted  = "aborted"
)

// Metrics holds the host's Prometheus collectors
type Metrics struct {
	Frames       prometheus.Counter
	StepDuration prometheus.Histogram
	GatesPassed  prometheus.Counter
	Races        *prometheus.CounterVec
	CraftResets  prometheus.Counter
	LastScore    prometheus.Gauge

	WSConnections prometheus.Gauge
	WSMessages    prometheus.Counter
	Rejected      *prometheus.CounterVec
	Requests      *prometheus.CounterVec

	Narrative *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "gaterace_frames_total",
			Help: "Frames stepped",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gaterace_step_duration_seconds",
			Help:    "Time spent in one engine step",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
		GatesPassed: f.NewCounter(prometheus.CounterOpts{
			Name: "gaterace_gates_passed_total",
			Help: "Gates passed across all races, including final gates",
		}),
		Races: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gaterace_races_total",
			Help: "Race lifecycle transitions",
		}, []string{"outcome"}),
		CraftResets: f.NewCounter(prometheus.CounterOpts{
			Name: "gaterace_craft_resets_total",
			Help: "Craft recovered to spawn after leaving the flight volume",
		}),
		LastScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "gaterace_last_score",
			Help: "Score of the most recently finished race",
		}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "gaterace_websocket_connections_active",
			Help: "Currently connected frame feed clients",
		}),
		WSMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "gaterace_websocket_messages_total",
			Help: "Messages broadcast to frame feed clients",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gaterace_connection_rejected_total",
			Help: "Frame feed connections rejected",
		}, []string{"reason"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gaterace_http_requests_total",
			Help: "HTTP requests by route pattern",
		}, []string{"method", "route", "status"}),
		Narrative: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gaterace_narrative_requests_total",
			Help: "Narrative lookups by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveStep records one stepped frame
func (m *Metrics) ObserveStep(d time.Duration) {
	m.Frames.Inc()
	m.StepDuration.Observe(d.Seconds())
}

// RegisterEventHandlers keeps the race counters in step with the bus
func (m *Metrics) RegisterEventHandlers(bus *event.Bus) {
	bus.Subscribe(event.RaceStarted, func(event.Event) {
		m.Races.WithLabelValues(outcomeStarted).Inc()
	})
	bus.Subscribe(event.RaceAborted, func(event.Event) {
		m.Races.WithLabelValues(outcomeAborted).Inc()
	})
	bus.Subscribe(event.RaceFinished, func(e event.Event) {
		m.Races.WithLabelValues(outcomeFinished).Inc()
		if re, ok := e.(*event.RaceEvent); ok {
			m.LastScore.Set(float64(re.Score))
		}
	})
	bus.Subscribe(event.GatePassed, func(event.Event) {
		m.GatesPassed.Inc()
	})
	bus.Subscribe(event.CraftReset, func(event.Event) {
		m.CraftResets.Inc()
	})
}
