package engine

import (
	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-gaterace/pkg/camera"
	"github.com/opd-ai/go-gaterace/pkg/event"
	"github.com/opd-ai/go-gaterace/pkg/physics"
	"github.com/opd-ai/go-gaterace/pkg/race"
)

// System priorities. ecs.World runs higher priorities first, which fixes the
// per-frame order: integrate, enforce bounds, evaluate gates, aim camera.
const (
	priorityIntegrator = 40
	priorityBoundary   = 30
	priorityGates      = 20
	priorityCamera     = 10
)

// The dt passed by ecs.World is ignored: every system advances one frame.

type integratorSystem struct {
	engine *Engine
}

func (s *integratorSystem) Priority() int { return priorityIntegrator }

func (s *integratorSystem) Update(float32) {
	physics.Integrate(&s.engine.craft, s.engine.input, s.engine.stats)
}

func (s *integratorSystem) Remove(ecs.BasicEntity) {}

type boundarySystem struct {
	engine *Engine
}

func (s *boundarySystem) Priority() int { return priorityBoundary }

func (s *boundarySystem) Update(float32) {
	e := s.engine
	escaped := e.craft.Position
	if !physics.Enforce(&e.craft, e.mode) {
		return
	}

	e.logger.Warn(e.ctx, "craft left flight volume, recovered to spawn",
		"x", escaped.X, "y", escaped.Y, "z", escaped.Z,
	)
	e.EventBus.Publish(event.NewCraftEvent(event.CraftReset, e, e.machine.State().RaceID, escaped, e.mode))
}

func (s *boundarySystem) Remove(ecs.BasicEntity) {}

type gateSystem struct {
	engine *Engine
}

func (s *gateSystem) Priority() int { return priorityGates }

func (s *gateSystem) Update(float32) {
	e := s.engine
	e.machine.Tick()

	tr := e.machine.Evaluate(e.craft.Position, e.shipScale)
	switch tr.Kind {
	case race.GatePassed:
		state := e.machine.State()
		e.logger.Debug(e.ctx, "gate passed", "gate", tr.GateIndex, "score", tr.Score, "frame", tr.Frame)
		e.EventBus.Publish(event.NewGateEvent(e, state.RaceID, tr.GateIndex, tr.Score, tr.Frame))
	case race.RaceFinished:
		state := e.machine.State()
		e.logger.Info(e.ctx, "race finished", "score", state.Score, "frames", state.Frames, "splits", state.Splits)
		e.EventBus.Publish(event.NewGateEvent(e, state.RaceID, tr.GateIndex, tr.Score, tr.Frame))
		e.EventBus.Publish(event.NewRaceEvent(event.RaceFinished, e, state.RaceID, e.chassis, state.Score, state.Frames))
	}
}

func (s *gateSystem) Remove(ecs.BasicEntity) {}

type cameraSystem struct {
	engine *Engine
}

func (s *cameraSystem) Priority() int { return priorityCamera }

func (s *cameraSystem) Update(float32) {
	e := s.engine
	e.pose = camera.ComputePose(e.craft, e.mode, e.pose)
}

func (s *cameraSystem) Remove(ecs.BasicEntity) {}
