// pkg/physics/collision.go
package physics

import "errors"

// ErrInvalidMode is returned when a presentation mode name is not recognised
var ErrInvalidMode = errors.New("invalid presentation mode")

// Sphere represents a spherical trigger volume
type Sphere struct {
	Center Vector3
	Radius float64
}

// Contains reports whether p is strictly inside the sphere. The test ignores
// direction of approach.
func (s Sphere) Contains(p Vector3) bool {
	return s.Center.Sub(p).LengthSquared() < s.Radius*s.Radius
}
