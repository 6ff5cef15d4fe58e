package physics

import "math"

// Tuning constants, tuned against a ~60 Hz frame cadence. Every value is per
// frame, not per second.
const (
	// Drag is the per-frame velocity decay factor
	Drag = 0.94
	// ThrustPower is the velocity gained per frame at full throttle with a
	// speed stat of 5
	ThrustPower = 0.012
	// RotationSpeed is radians turned per frame at full stick with a
	// handling stat of 5
	RotationSpeed = 0.03
	// StatBaseline is the stat value that yields unscaled thrust and rotation
	StatBaseline = 5.0
)

var (
	// SpawnPosition is where the craft starts a race and where it is
	// recovered to after leaving the free-flight volume
	SpawnPosition = Vector3{X: 0, Y: 1.5, Z: -8}
	// SpawnOrientation faces the craft along +Z
	SpawnOrientation = EulerAngles{Pitch: 0, Yaw: math.Pi, Roll: 0}

	forwardAxis = Vector3{X: 0, Y: 0, Z: -1}
)

// ShipStats tunes thrust and rotation responsiveness.
// Durability is carried for damage mechanics the engine does not model.
type ShipStats struct {
	Speed      float64 `json:"speed"`
	Durability float64 `json:"durability"`
	Handling   float64 `json:"handling"`
}

// ControlSample is the normalized stick input for one frame
type ControlSample struct {
	Throttle float64 `json:"throttle"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
}

// Clamped returns a copy of the sample with every axis in [-1, 1]. NaN
// becomes 0.
func (c ControlSample) Clamped() ControlSample {
	return ControlSample{
		Throttle: clampAxis(c.Throttle),
		Yaw:      clampAxis(c.Yaw),
		Pitch:    clampAxis(c.Pitch),
		Roll:     clampAxis(c.Roll),
	}
}

// IsNeutral reports whether no axis is deflected
func (c ControlSample) IsNeutral() bool {
	return c == ControlSample{}
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, -1, 1)
}

// Clamp saturates v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CraftState tracks the craft's kinematic state across frames
type CraftState struct {
	Velocity    Vector3     `json:"velocity"`
	Position    Vector3     `json:"position"`
	Orientation EulerAngles `json:"orientation"`
}

// NewCraftState returns a craft at the spawn pose
func NewCraftState() CraftState {
	return CraftState{
		Position:    SpawnPosition,
		Orientation: SpawnOrientation,
	}
}

// Reset puts the craft back at the spawn pose with zero velocity
func (c *CraftState) Reset() {
	*c = NewCraftState()
}

// Forward returns the unit direction the craft's nose points along
func (c CraftState) Forward() Vector3 {
	return forwardAxis.Rotate(c.Orientation)
}

// Speed returns the velocity magnitude in units per frame
func (c CraftState) Speed() float64 {
	return c.Velocity.Length()
}

// Integrate advances the craft by exactly one frame.
//
// Thrust uses the orientation from before this frame's rotation is applied,
// so the thrust direction trails the stick by one frame.
func Integrate(craft *CraftState, input ControlSample, stats ShipStats) {
	in := input.Clamped()

	forward := craft.Forward()
	thrust := forward.Scale(in.Throttle * ThrustPower * (stats.Speed / StatBaseline))
	craft.Velocity = craft.Velocity.Add(thrust)

	turn := RotationSpeed * (stats.Handling / StatBaseline)
	craft.Orientation.Yaw -= in.Yaw * turn
	craft.Orientation.Pitch += in.Pitch * turn
	craft.Orientation.Roll -= in.Roll * turn

	craft.Velocity = craft.Velocity.Scale(Drag)
	craft.Position = craft.Position.Add(craft.Velocity)
}
