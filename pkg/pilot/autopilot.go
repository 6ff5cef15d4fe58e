// pkg/pilot/autopilot.go
// Package pilot produces control samples that fly the craft through the
// course without a human at the stick.
package pilot

import (
	"math"

	"github.com/opd-ai/go-gaterace/pkg/engine"
	"github.com/opd-ai/go-gaterace/pkg/physics"
)

const (
	// DefaultGain maps radians of heading error to stick deflection
	DefaultGain = 4.0
	// DefaultAlignment is the heading error under which full throttle is used
	DefaultAlignment = 0.5
	// cruiseThrottle is used while turning toward the gate
	cruiseThrottle = 0.3
	// maxClimb bounds the sine of the commanded pitch
	maxClimb = 0.8
	// minYawCos is the smallest |cos(yaw)| at which pitch can steer altitude
	minYawCos = 0.2
)

// Autopilot steers toward the active gate with proportional control on
// each axis.
type Autopilot struct {
	Gain      float64
	Alignment float64
}

// New creates an autopilot with default tuning
func New() *Autopilot {
	return &Autopilot{
		Gain:      DefaultGain,
		Alignment: DefaultAlignment,
	}
}

// Next returns the control sample for the frame after f. The craft is left
// coasting when no race is running.
func (a *Autopilot) Next(f engine.Frame) physics.ControlSample {
	if !f.Race.IsPlaying || f.ActiveGate == nil {
		return physics.ControlSample{}
	}
	return a.Steer(f.Craft, f.ActiveGate.Position)
}

// Steer returns the sample that turns the craft toward target
func (a *Autopilot) Steer(craft physics.CraftState, target physics.Vector3) physics.ControlSample {
	d := target.Sub(craft.Position)
	dist := d.Length()
	if dist < 1e-9 {
		return physics.ControlSample{}
	}

	o := craft.Orientation

	// forward is (-sin yaw, cos yaw * sin pitch, -cos yaw * cos pitch)
	heading := math.Atan2(-d.X, -d.Z)
	yawErr := WrapAngle(heading - o.Yaw)

	var pitchTarget float64
	if c := math.Cos(o.Yaw); math.Abs(c) > minYawCos {
		pitchTarget = math.Asin(physics.Clamp(d.Y/dist/c, -maxClimb, maxClimb))
	}

	throttle := cruiseThrottle
	if math.Abs(yawErr) < a.Alignment {
		throttle = 1
	}

	// yaw and roll inputs are subtracted from orientation by the integrator
	return physics.ControlSample{
		Throttle: throttle,
		Yaw:      -a.Gain * yawErr,
		Pitch:    a.Gain * (pitchTarget - o.Pitch),
		Roll:     a.Gain * o.Roll,
	}.Clamped()
}

// WrapAngle normalizes an angle to (-π, π]. Infinite or NaN input yields NaN,
// which Clamped turns into a neutral axis.
func WrapAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
