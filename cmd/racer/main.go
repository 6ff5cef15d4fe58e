// cmd/racer/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/go-gaterace/pkg/config"
	"github.com/opd-ai/go-gaterace/pkg/engine"
	"github.com/opd-ai/go-gaterace/pkg/health"
	"github.com/opd-ai/go-gaterace/pkg/logging"
	"github.com/opd-ai/go-gaterace/pkg/narrative"
	"github.com/opd-ai/go-gaterace/pkg/pilot"
	"github.com/opd-ai/go-gaterace/pkg/telemetry"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "", "Path to YAML or JSON configuration file")
	createDefault := flag.Bool("default", false, "Write the default configuration to -config (or gaterace.yaml) and exit")
	driver := flag.String("driver", "", "Frame driver: ticker or engo (overrides config)")
	mode := flag.String("mode", "", "Presentation mode: free or confined (overrides config)")
	frames := flag.Uint64("frames", 0, "Stop after this many frames (overrides config)")
	flag.Parse()

	if *createDefault {
		path := *configPath
		if path == "" {
			path = "gaterace.yaml"
		}
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", path)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}
	if *driver != "" {
		cfg.Loop.Driver = *driver
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *frames != 0 {
		cfg.Loop.MaxFrames = *frames
	}
	if err := cfg.Validate(); err != nil {
		logger.Error(ctx, "Invalid configuration", err)
		os.Exit(1)
	}
	if cfg.LogLevel != "" {
		logger = logging.NewLoggerWithLevel(cfg.LogLevel)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := newHost(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Error(ctx, "Failed to build race host", err)
		os.Exit(1)
	}

	if h.server != nil {
		h.server.Start(ctx)
	}

	logger.Info(ctx, "Starting frame loop",
		"driver", cfg.Loop.Driver,
		"fps", cfg.Loop.FPS,
		"mode", cfg.Mode,
		"chassis", cfg.Chassis,
		"max_frames", cfg.Loop.MaxFrames,
	)
	switch cfg.Loop.Driver {
	case "engo":
		runEngo(ctx, h, cfg.Loop.FPS)
	default:
		runTicker(ctx, h, cfg.Loop.FrameInterval())
	}

	logger.Info(ctx, "Shutting down",
		"frames", h.last.Tick,
		"score", h.last.Race.Score,
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if h.server != nil {
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Telemetry server shutdown failed", err)
		}
	}
	if h.narrative != nil {
		h.narrative.Wait()
	}
}

// newHost wires the engine to the configured input source, telemetry and
// narrative client. Nothing is started.
func newHost(ctx context.Context, cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*host, error) {
	course, err := cfg.BuildCourse()
	if err != nil {
		return nil, logging.WrapError(err, "build course %q", cfg.Course.Name)
	}
	stats, err := cfg.ShipStats()
	if err != nil {
		return nil, logging.WrapError(err, "select chassis %q", cfg.Chassis)
	}
	mode, err := cfg.PresentationMode()
	if err != nil {
		return nil, logging.WrapError(err, "parse mode %q", cfg.Mode)
	}

	eng := engine.New(engine.Options{
		Course:    course,
		Stats:     stats,
		ShipScale: cfg.ShipScale,
		Chassis:   cfg.Chassis,
		Mode:      mode,
		Logger:    logger,
	})

	h := &host{
		engine:    eng,
		mode:      mode,
		logger:    logger,
		autoStart: cfg.Loop.AutoStart,
		maxFrames: cfg.Loop.MaxFrames,
		last:      eng.Frame(),
	}
	if cfg.Loop.Autopilot {
		h.autopilot = pilot.New()
	}

	checker := health.NewHealthChecker()

	if cfg.Narrative.Enabled {
		h.narrative = narrative.NewClient(cfg.Narrative, logger)
		h.narrative.Subscribe(ctx, eng.EventBus)
		checker.AddCheck(health.NewBreakerHealthCheck("narrative", h.narrative.State))
	}

	if cfg.Telemetry.Enabled {
		h.metrics = telemetry.NewMetrics(reg)
		h.metrics.RegisterEventHandlers(eng.EventBus)
		h.hub = telemetry.NewHub(cfg.Telemetry.MaxClients, cfg.Telemetry.WriteTimeout, h.metrics, logger)
		h.server = telemetry.NewServer(telemetry.ServerOptions{
			Config:   cfg.Telemetry,
			Hub:      h.hub,
			Metrics:  h.metrics,
			Gatherer: gatherer,
			Health:   checker,
			Logger:   logger,
		})
		checker.AddCheck(health.NewFrameLoopHealthCheck(h.server.LastFrameTime, cfg.Telemetry.StaleFrameWindow))
	}

	if cfg.Loop.AutoStart {
		h.start()
	}

	logger.Info(ctx, "Race host ready",
		"course", course.Name(),
		"gates", course.Len(),
		"chassis", cfg.Chassis,
		"mode", mode.String(),
		"autopilot", cfg.Loop.Autopilot,
		"telemetry", cfg.Telemetry.Enabled,
		"narrative", cfg.Narrative.Enabled,
	)
	return h, nil
}
