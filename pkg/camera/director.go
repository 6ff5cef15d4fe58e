// Package camera derives the render camera pose from the craft pose.
package camera

import (
	"github.com/opd-ai/go-gaterace/pkg/physics"
)

const (
	// FollowSmoothing is the fraction of the gap to the desired chase
	// position closed each frame
	FollowSmoothing = 0.12
	// degenerateDistance is how close the craft may get to the camera before
	// the look direction is considered undefined
	degenerateDistance = 0.1
)

var (
	// ObserverPosition is the fixed viewpoint used in confined mode
	ObserverPosition = physics.Vector3{X: 0, Y: 1.6, Z: 0}
	// ChaseOffset is the chase camera offset in craft-local space
	ChaseOffset = physics.Vector3{X: 0, Y: 1.5, Z: 6}
)

// Pose is where the render camera sits and what it looks at
type Pose struct {
	Position physics.Vector3 `json:"position"`
	Target   physics.Vector3 `json:"target"`
	// Forward is the unit look direction
	Forward physics.Vector3 `json:"forward"`
}

// InitialPose returns the pose for the first frame of a mode, looking at a
// craft sitting at spawn.
func InitialPose(mode physics.Mode) Pose {
	craft := physics.NewCraftState()
	var position physics.Vector3
	if mode == physics.ModeConfined {
		position = ObserverPosition
	} else {
		position = craft.Position.Add(ChaseOffset.Rotate(craft.Orientation))
	}
	return Pose{
		Position: position,
		Target:   craft.Position,
		Forward:  craft.Position.Sub(position).Normalize(),
	}
}

// ComputePose returns the camera pose for this frame. It holds no state; the
// caller passes last frame's pose back in.
func ComputePose(craft physics.CraftState, mode physics.Mode, previous Pose) Pose {
	var position physics.Vector3
	switch mode {
	case physics.ModeConfined:
		position = ObserverPosition
	default:
		desired := craft.Position.Add(ChaseOffset.Rotate(craft.Orientation))
		position = previous.Position.Lerp(desired, FollowSmoothing)
	}

	look := craft.Position.Sub(position)
	if look.Length() < degenerateDistance {
		// Too close to aim at; keep looking the way we were.
		return Pose{
			Position: position,
			Target:   position.Add(previous.Forward),
			Forward:  previous.Forward,
		}
	}
	return Pose{
		Position: position,
		Target:   craft.Position,
		Forward:  look.Normalize(),
	}
}
