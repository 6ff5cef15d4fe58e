package race

import (
	"github.com/opd-ai/go-gaterace/pkg/physics"
)

const (
	// GateDetectionRadius is the base trigger radius around a gate
	GateDetectionRadius = 1.2
	// GatePoints is added to the score for every gate except the last
	GatePoints = 100
	// scalePadding widens the trigger so even tiny ships can hit a gate
	scalePadding = 0.5
)

// Status is the race lifecycle state
type Status int

const (
	StatusNotStarted Status = iota
	StatusRacing
	StatusFinished
)

// String returns a readable status name
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRacing:
		return "racing"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the HUD-facing view of the race
type State struct {
	RaceID           string   `json:"raceId,omitempty"`
	Status           Status   `json:"status"`
	IsPlaying        bool     `json:"isPlaying"`
	IsGameOver       bool     `json:"isGameOver"`
	CurrentGateIndex int      `json:"currentGateIndex"`
	TotalGates       int      `json:"totalGates"`
	Score            int      `json:"score"`
	Frames           uint64   `json:"frames"`
	Splits           []uint64 `json:"splits,omitempty"`
}

// TransitionKind describes what an evaluation did
type TransitionKind int

const (
	NoTransition TransitionKind = iota
	GatePassed
	RaceFinished
)

// Transition is the outcome of one Evaluate call
type Transition struct {
	Kind      TransitionKind
	GateIndex int
	Score     int
	Frame     uint64
}

// DetectionRadius returns the trigger radius for a ship of the given visual
// scale. Bigger ships get a bigger trigger.
func DetectionRadius(shipScale float64) float64 {
	return GateDetectionRadius * (shipScale + scalePadding)
}

// Machine is the gate progression state machine. It is not safe for
// concurrent use; the frame loop owns it.
type Machine struct {
	course *Course
	status Status
	state  State
}

// NewMachine creates a machine in the not-started state
func NewMachine(course *Course) *Machine {
	return &Machine{
		course: course,
		status: StatusNotStarted,
		state:  State{TotalGates: course.Len()},
	}
}

// Course returns the course being raced
func (m *Machine) Course() *Course {
	return m.course
}

// Status returns the current lifecycle state
func (m *Machine) Status() Status {
	return m.status
}

// State returns a snapshot of the race state
func (m *Machine) State() State {
	s := m.state
	s.Status = m.status
	if len(m.state.Splits) > 0 {
		s.Splits = make([]uint64, len(m.state.Splits))
		copy(s.Splits, m.state.Splits)
	}
	return s
}

// ActiveGate returns the gate the craft must reach next. ok is false unless
// racing.
func (m *Machine) ActiveGate() (Gate, bool) {
	if m.status != StatusRacing {
		return Gate{}, false
	}
	return m.course.Gate(m.state.CurrentGateIndex)
}

// Start begins a new race. It is ignored while a race is running and
// returns false in that case.
func (m *Machine) Start(raceID string) bool {
	if m.status == StatusRacing {
		return false
	}

	m.status = StatusRacing
	m.state = State{
		RaceID:           raceID,
		IsPlaying:        true,
		IsGameOver:       false,
		CurrentGateIndex: 0,
		TotalGates:       m.course.Len(),
		Score:            0,
	}
	return true
}

// Abort returns the machine to not-started from any state
func (m *Machine) Abort() {
	m.status = StatusNotStarted
	m.state = State{TotalGates: m.course.Len()}
}

// Tick counts one racing frame. It is a no-op outside a race.
func (m *Machine) Tick() {
	if m.status == StatusRacing {
		m.state.Frames++
	}
}

// Evaluate checks the craft position against the active gate and advances
// the race when the craft is inside its trigger sphere.
//
// Passing the final gate ends the race without awarding points.
func (m *Machine) Evaluate(position physics.Vector3, shipScale float64) Transition {
	gate, ok := m.ActiveGate()
	if !ok {
		return Transition{Kind: NoTransition}
	}

	trigger := physics.Sphere{Center: gate.Position, Radius: DetectionRadius(shipScale)}
	if !trigger.Contains(position) {
		return Transition{Kind: NoTransition}
	}

	m.state.Splits = append(m.state.Splits, m.state.Frames)

	if m.course.IsLast(gate.Index) {
		m.status = StatusFinished
		m.state.IsGameOver = true
		m.state.IsPlaying = false
		return Transition{
			Kind:      RaceFinished,
			GateIndex: gate.Index,
			Score:     m.state.Score,
			Frame:     m.state.Frames,
		}
	}

	m.state.CurrentGateIndex++
	m.state.Score += GatePoints
	return Transition{
		Kind:      GatePassed,
		GateIndex: gate.Index,
		Score:     m.state.Score,
		Frame:     m.state.Frames,
	}
}
