// Package race tracks progress of a single craft through an ordered course of
// gates.
package race

import (
	"errors"
	"fmt"

	"github.com/opd-ai/go-gaterace/pkg/physics"
)

// ErrEmptyCourse is returned when a course is built without gates
var ErrEmptyCourse = errors.New("course has no gates")

// Gate is a point the craft must pass near, in order
type Gate struct {
	Index    int             `json:"index"`
	Position physics.Vector3 `json:"position"`
}

// Course is an ordered, immutable sequence of gates
type Course struct {
	name  string
	gates []Gate
}

// NewCourse builds a course from gate positions in race order
func NewCourse(name string, positions []physics.Vector3) (*Course, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("course %q: %w", name, ErrEmptyCourse)
	}

	gates := make([]Gate, len(positions))
	for i, p := range positions {
		gates[i] = Gate{Index: i, Position: p}
	}
	return &Course{name: name, gates: gates}, nil
}

// Name returns the course name
func (c *Course) Name() string {
	return c.name
}

// Len returns the number of gates
func (c *Course) Len() int {
	return len(c.gates)
}

// Gate returns the gate at index i
func (c *Course) Gate(i int) (Gate, bool) {
	if i < 0 || i >= len(c.gates) {
		return Gate{}, false
	}
	return c.gates[i], true
}

// Gates returns a copy of the gate list
func (c *Course) Gates() []Gate {
	out := make([]Gate, len(c.gates))
	copy(out, c.gates)
	return out
}

// IsLast reports whether i is the final gate
func (c *Course) IsLast(i int) bool {
	return i == len(c.gates)-1
}
