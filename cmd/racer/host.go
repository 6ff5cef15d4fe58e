package main

import (
	"context"
	"time"

	"github.com/opd-ai/go-gaterace/pkg/engine"
	"github.com/opd-ai/go-gaterace/pkg/logging"
	"github.com/opd-ai/go-gaterace/pkg/narrative"
	"github.com/opd-ai/go-gaterace/pkg/physics"
	"github.com/opd-ai/go-gaterace/pkg/pilot"
	"github.com/opd-ai/go-gaterace/pkg/telemetry"
)

// restartDelayFrames is how long a finished race stays on screen before an
// auto-started host begins the next one
const restartDelayFrames = 120

// host owns the engine and everything that runs on the frame goroutine.
// Optional parts are nil when disabled.
type host struct {
	engine    *engine.Engine
	mode      physics.Mode
	autopilot *pilot.Autopilot
	server    *telemetry.Server
	hub       *telemetry.Hub
	metrics   *telemetry.Metrics
	narrative *narrative.Client
	logger    *logging.Logger

	autoStart  bool
	maxFrames  uint64
	finishedAt uint64
	last       engine.Frame
}

// step runs one frame: apply queued commands, sample input, advance the
// engine and publish the result. It reports false once maxFrames is reached.
func (h *host) step(ctx context.Context) bool {
	h.drainCommands(ctx)
	h.drainNarrative(ctx)
	h.maybeRestart()

	var input physics.ControlSample
	if h.autopilot != nil {
		input = h.autopilot.Next(h.last)
	}

	began := time.Now()
	h.last = h.engine.Step(input, h.mode)
	if h.metrics != nil {
		h.metrics.ObserveStep(time.Since(began))
	}
	if h.server != nil {
		h.server.Publish(h.last)
	}

	return h.maxFrames == 0 || h.last.Tick < h.maxFrames
}

func (h *host) drainCommands(ctx context.Context) {
	if h.server == nil {
		return
	}
	for {
		select {
		case cmd := <-h.server.Commands():
			h.apply(ctx, cmd)
		default:
			return
		}
	}
}

func (h *host) apply(ctx context.Context, cmd telemetry.Command) {
	switch cmd.Kind {
	case telemetry.CommandStart:
		h.start()
	case telemetry.CommandAbort:
		h.engine.Abort()
		h.last = h.engine.Frame()
	case telemetry.CommandSetMode:
		h.mode = cmd.Mode
	default:
		h.logger.Warn(ctx, "unknown command", "kind", int(cmd.Kind))
	}
}

func (h *host) start() {
	if h.engine.Start() {
		h.finishedAt = 0
		h.last = h.engine.Frame()
	}
}

func (h *host) maybeRestart() {
	if !h.autoStart || !h.last.Race.IsGameOver {
		return
	}
	if h.finishedAt == 0 {
		h.finishedAt = h.last.Tick
	}
	if h.last.Tick-h.finishedAt >= restartDelayFrames {
		h.start()
	}
}

func (h *host) drainNarrative(ctx context.Context) {
	if h.narrative == nil {
		return
	}
	for {
		select {
		case res := <-h.narrative.Results():
			h.logger.Info(logging.WithCorrelationID(ctx, res.RaceID), "race flavor text",
				"text", res.Text,
				"outcome", res.Outcome,
			)
			if h.metrics != nil {
				h.metrics.Narrative.WithLabelValues(res.Outcome).Inc()
			}
			if h.hub != nil {
				h.hub.Broadcast("narrative", map[string]string{
					"raceId":  res.RaceID,
					"chassis": res.Chassis,
					"text":    res.Text,
				})
			}
		default:
			return
		}
	}
}
