package physics

import (
	"fmt"
	"strings"
)

// Mode selects how the flight volume is constrained
type Mode int

const (
	// ModeFree is unbounded flight with a chase camera
	ModeFree Mode = iota
	// ModeConfined keeps the craft in a box in front of a fixed observer
	ModeConfined
)

// String returns the config name of the mode
func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeConfined:
		return "confined"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode converts a config name into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "":
		return ModeFree, nil
	case "confined", "ar", "passthrough":
		return ModeConfined, nil
	default:
		return ModeFree, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Box is an axis-aligned volume
type Box struct {
	Min Vector3
	Max Vector3
}

// Contains reports whether p lies inside or on the box
func (b Box) Contains(p Vector3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ClampPoint snaps each axis of p into the box independently
func (b Box) ClampPoint(p Vector3) Vector3 {
	return Vector3{
		X: Clamp(p.X, b.Min.X, b.Max.X),
		Y: Clamp(p.Y, b.Min.Y, b.Max.Y),
		Z: Clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

var (
	// ConfinedVolume is the flight box used in confined mode
	ConfinedVolume = Box{
		Min: Vector3{X: -15, Y: 0.2, Z: -40},
		Max: Vector3{X: 15, Y: 10, Z: -2},
	}
	// FreeFlightRadius is the distance from the origin past which the craft
	// is recovered to spawn in free mode
	FreeFlightRadius = 150.0
)

// Enforce applies the mode's spatial constraint to the craft. It reports
// whether the craft was teleported back to spawn.
//
// Confined clamping leaves velocity alone, so a craft pushing into a wall
// stays pinned against it.
func Enforce(craft *CraftState, mode Mode) bool {
	switch mode {
	case ModeConfined:
		craft.Position = ConfinedVolume.ClampPoint(craft.Position)
		return false
	default:
		if craft.Position.LengthSquared() > FreeFlightRadius*FreeFlightRadius {
			craft.Position = SpawnPosition
			craft.Velocity = Vector3{}
			return true
		}
		return false
	}
}
