package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opd-ai/go-gaterace/pkg/config"
	"github.com/opd-ai/go-gaterace/pkg/engine"
	"github.com/opd-ai/go-gaterace/pkg/health"
	"github.com/opd-ai/go-gaterace/pkg/logging"
	"github.com/opd-ai/go-gaterace/pkg/physics"
)

// CommandKind identifies a control request from the API
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandAbort
	CommandSetMode
)

// Command is a control request for the frame loop. Mode is set only for
// CommandSetMode.
type Command struct {
	Kind CommandKind
	Mode physics.Mode
}

const commandBuffer = 16

// ServerOptions contains the dependencies of a Server
type ServerOptions struct {
	Config   config.TelemetryConfig
	Hub      *Hub
	Metrics  *Metrics
	Gatherer prometheus.Gatherer
	Health   *health.HealthChecker
	Logger   *logging.Logger
}

// Server publishes frames to HTTP clients and queues their commands for the
// frame loop. Handlers never touch the engine.
type Server struct {
	cfg      config.TelemetryConfig
	router   *chi.Mux
	hub      *Hub
	metrics  *Metrics
	gatherer prometheus.Gatherer
	health   *health.HealthChecker
	logger   *logging.Logger

	snapshot  atomic.Pointer[engine.Frame]
	lastFrame atomic.Int64
	published atomic.Uint64
	commands  chan Command

	http *http.Server
}

// NewServer builds the router. No goroutines start and no listener opens
// until Start.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	checker := opts.Health
	if checker == nil {
		checker = health.NewHealthChecker()
	}

	s := &Server{
		cfg:      opts.Config,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		health:   checker,
		logger:   logger.With("component", "telemetry"),
		commands: make(chan Command, commandBuffer),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/frame", s.handleFrame)
		r.Post("/race/start", s.handleStart)
		r.Post("/race/abort", s.handleAbort)
		r.Put("/mode/{mode}", s.handleMode)
	})
	return r
}

// observe counts requests by route pattern so label cardinality stays bounded
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Commands returns the queue the frame loop drains each frame
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// Publish stores the frame as the current snapshot and broadcasts every
// BroadcastEvery frames. Called from the frame loop.
func (s *Server) Publish(f engine.Frame) {
	s.snapshot.Store(&f)
	s.lastFrame.Store(time.Now().UnixNano())

	n := s.published.Add(1)
	every := uint64(1)
	if s.cfg.BroadcastEvery > 1 {
		every = uint64(s.cfg.BroadcastEvery)
	}
	if n%every == 0 && s.hub.ClientCount() > 0 {
		s.hub.Broadcast("frame", f)
	}
}

// Snapshot returns the last published frame, or nil
func (s *Server) Snapshot() *engine.Frame {
	return s.snapshot.Load()
}

// LastFrameTime returns when the last frame was published, or the zero time
func (s *Server) LastFrameTime() time.Time {
	ns := s.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Start runs the hub and begins listening. Serve errors other than a clean
// shutdown are logged.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)

	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info(ctx, "telemetry server starting", "addr", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "telemetry server failed", err, "addr", s.cfg.ListenAddr)
		}
	}()
}

// Shutdown stops the listener gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	f := s.snapshot.Load()
	if f == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame stepped yet")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, Command{Kind: CommandStart})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, Command{Kind: CommandAbort})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	mode, err := physics.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.enqueue(w, r, Command{Kind: CommandSetMode, Mode: mode})
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, cmd Command) {
	select {
	case s.commands <- cmd:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	default:
		s.logger.Warn(r.Context(), "command queue full, dropping command", "kind", int(cmd.Kind))
		writeError(w, http.StatusServiceUnavailable, "command queue full")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
