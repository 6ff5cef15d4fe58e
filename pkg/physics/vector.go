// pkg/physics/vector.go
package physics

import "math"

// Vector3 represents a 3D vector with x, y and z components
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the sum of two vectors
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub returns the difference between two vectors
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Scale multiplies the vector by a scalar value
func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{
		X: v.X * factor,
		Y: v.Y * factor,
		Z: v.Z * factor,
	}
}

// Length returns the magnitude of the vector
func (v Vector3) Length() float64 {
	return math.Sqrt(v.LengthSquared())
}

// LengthSquared returns magnitude squared (optimization for comparisons)
func (v Vector3) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Normalize returns a unit vector in the same direction
func (v Vector3) Normalize() Vector3 {
	length := v.Length()
	if length == 0 {
		return Vector3{}
	}
	return v.Scale(1 / length)
}

// Distance returns the distance between two vectors
func (v Vector3) Distance(other Vector3) float64 {
	return v.Sub(other).Length()
}

// Dot returns the dot product of two vectors
func (v Vector3) Dot(other Vector3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Lerp moves v toward target by the fraction t
func (v Vector3) Lerp(target Vector3, t float64) Vector3 {
	return Vector3{
		X: v.X + (target.X-v.X)*t,
		Y: v.Y + (target.Y-v.Y)*t,
		Z: v.Z + (target.Z-v.Z)*t,
	}
}

// EulerAngles is an orientation in radians. Pitch turns about X, Yaw about Y
// and Roll about Z; rotations compose in XYZ order.
type EulerAngles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Rotate applies the orientation to v, i.e. Rx(pitch) * Ry(yaw) * Rz(roll) * v.
func (v Vector3) Rotate(o EulerAngles) Vector3 {
	// roll about Z
	cz, sz := math.Cos(o.Roll), math.Sin(o.Roll)
	r := Vector3{
		X: v.X*cz - v.Y*sz,
		Y: v.X*sz + v.Y*cz,
		Z: v.Z,
	}

	// yaw about Y
	cy, sy := math.Cos(o.Yaw), math.Sin(o.Yaw)
	r = Vector3{
		X: r.X*cy + r.Z*sy,
		Y: r.Y,
		Z: -r.X*sy + r.Z*cy,
	}

	// pitch about X
	cx, sx := math.Cos(o.Pitch), math.Sin(o.Pitch)
	return Vector3{
		X: r.X,
		Y: r.Y*cx - r.Z*sx,
		Z: r.Y*sx + r.Z*cx,
	}
}
