// pkg/engine/engine.go
package engine

import (
	"context"

	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-gaterace/pkg/camera"
	"github.com/opd-ai/go-gaterace/pkg/event"
	"github.com/opd-ai/go-gaterace/pkg/logging"
	"github.com/opd-ai/go-gaterace/pkg/physics"
	"github.com/opd-ai/go-gaterace/pkg/race"
)

// Options configures a new Engine. Course is required; the rest have
// usable zero values.
type Options struct {
	Course    *race.Course
	Stats     physics.ShipStats
	ShipScale float64
	Chassis   string
	Mode      physics.Mode
	EventBus  *event.Bus
	Logger    *logging.Logger
}

// Frame is everything the presentation layer needs for one rendered frame
type Frame struct {
	Tick       uint64             `json:"tick"`
	Mode       physics.Mode       `json:"mode"`
	Chassis    string             `json:"chassis"`
	Craft      physics.CraftState `json:"craft"`
	Camera     camera.Pose        `json:"camera"`
	Race       race.State         `json:"race"`
	ActiveGate *race.Gate         `json:"activeGate,omitempty"`
}

// Engine runs the per-frame flight and race update for a single craft.
//
// Engine is not safe for concurrent use. All calls must come from the
// goroutine that drives the frame loop.
type Engine struct {
	world   *ecs.World
	craftID ecs.BasicEntity

	craft   physics.CraftState
	machine *race.Machine
	pose    camera.Pose
	mode    physics.Mode

	stats     physics.ShipStats
	shipScale float64
	chassis   string

	// input is the sample for the frame in progress; cleared after each step
	input physics.ControlSample
	tick  uint64

	EventBus *event.Bus
	logger   *logging.Logger
	ctx      context.Context
}

// New creates an engine with the craft at spawn and the race not started
func New(opts Options) *Engine {
	bus := opts.EventBus
	if bus == nil {
		bus = event.NewEventBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &Engine{
		world:     &ecs.World{},
		craftID:   ecs.NewBasic(),
		craft:     physics.NewCraftState(),
		machine:   race.NewMachine(opts.Course),
		pose:      camera.InitialPose(opts.Mode),
		mode:      opts.Mode,
		stats:     opts.Stats,
		shipScale: opts.ShipScale,
		chassis:   opts.Chassis,
		EventBus:  bus,
		ctx:       context.Background(),
	}
	e.logger = logger.With("craft_id", e.craftID.ID(), "chassis", opts.Chassis)

	e.world.AddSystem(&integratorSystem{engine: e})
	e.world.AddSystem(&boundarySystem{engine: e})
	e.world.AddSystem(&gateSystem{engine: e})
	e.world.AddSystem(&cameraSystem{engine: e})

	return e
}

// Start begins a race and puts the craft back at spawn. It is ignored while
// a race is already running.
func (e *Engine) Start() bool {
	raceID := logging.GenerateCorrelationID()
	if !e.machine.Start(raceID) {
		e.logger.Debug(e.ctx, "start ignored, race already running")
		return false
	}

	e.ctx = logging.WithCorrelationID(context.Background(), raceID)
	e.craft.Reset()
	e.pose = camera.InitialPose(e.mode)

	e.logger.Info(e.ctx, "race started",
		"course", e.machine.Course().Name(),
		"gates", e.machine.Course().Len(),
		"mode", e.mode.String(),
	)
	e.EventBus.Publish(event.NewRaceEvent(event.RaceStarted, e, raceID, e.chassis, 0, 0))
	return true
}

// Abort stops the current race, if any, and returns to not-started
func (e *Engine) Abort() {
	state := e.machine.State()
	if e.machine.Status() == race.StatusNotStarted {
		return
	}
	e.machine.Abort()

	e.logger.Info(e.ctx, "race aborted", "score", state.Score, "frames", state.Frames)
	e.EventBus.Publish(event.NewRaceEvent(event.RaceAborted, e, state.RaceID, e.chassis, state.Score, state.Frames))
}

// Step advances the simulation by exactly one frame. Physics constants are
// tuned for one call per rendered frame at roughly 60 Hz.
func (e *Engine) Step(input physics.ControlSample, mode physics.Mode) Frame {
	if mode != e.mode {
		e.logger.Info(e.ctx, "presentation mode changed", "from", e.mode.String(), "to", mode.String())
		e.mode = mode
		e.EventBus.Publish(event.NewCraftEvent(event.ModeChanged, e, e.machine.State().RaceID, e.craft.Position, mode))
	}

	e.input = input.Clamped()
	e.tick++
	e.world.Update(1)
	e.input = physics.ControlSample{}

	return e.Frame()
}

// Frame returns a snapshot of the current state without stepping
func (e *Engine) Frame() Frame {
	f := Frame{
		Tick:    e.tick,
		Mode:    e.mode,
		Chassis: e.chassis,
		Craft:   e.craft,
		Camera:  e.pose,
		Race:    e.machine.State(),
	}
	if gate, ok := e.machine.ActiveGate(); ok {
		f.ActiveGate = &gate
	}
	return f
}

// Craft returns the current craft state
func (e *Engine) Craft() physics.CraftState {
	return e.craft
}

// SetCraft replaces the craft state, e.g. to restore a saved pose
func (e *Engine) SetCraft(c physics.CraftState) {
	e.craft = c
}

// Race returns the current race state
func (e *Engine) Race() race.State {
	return e.machine.State()
}

// ActiveGate returns the gate the craft must reach next
func (e *Engine) ActiveGate() (race.Gate, bool) {
	return e.machine.ActiveGate()
}

// Mode returns the presentation mode used by the last step
func (e *Engine) Mode() physics.Mode {
	return e.mode
}

// Stats returns the ship tuning
func (e *Engine) Stats() physics.ShipStats {
	return e.stats
}

// Tick returns the number of frames stepped since creation
func (e *Engine) Tick() uint64 {
	return e.tick
}
