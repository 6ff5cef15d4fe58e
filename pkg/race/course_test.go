package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-gaterace/pkg/physics"
)

var testGates = []physics.Vector3{
	{X: 0, Y: 1.8, Z: -12},
	{X: 3, Y: 2.5, Z: -28},
	{X: -4, Y: 3, Z: -42},
	{X: 2, Y: 2.2, Z: -58},
	{X: 0, Y: 2, Z: -75},
}

func newTestCourse(t *testing.T) *Course {
	t.Helper()
	course, err := NewCourse("canyon", testGates)
	require.NoError(t, err)
	return course
}

func TestNewCourse_Empty(t *testing.T) {
	course, err := NewCourse("void", nil)
	assert.Nil(t, course)
	assert.ErrorIs(t, err, ErrEmptyCourse)
	assert.Contains(t, err.Error(), "void")
}

func TestCourse_Accessors(t *testing.T) {
	course := newTestCourse(t)

	assert.Equal(t, "canyon", course.Name())
	assert.Equal(t, 5, course.Len())
	assert.True(t, course.IsLast(4))
	assert.False(t, course.IsLast(3))

	gate, ok := course.Gate(1)
	require.True(t, ok)
	assert.Equal(t, Gate{Index: 1, Position: physics.Vector3{X: 3, Y: 2.5, Z: -28}}, gate)

	_, ok = course.Gate(5)
	assert.False(t, ok)
	_, ok = course.Gate(-1)
	assert.False(t, ok)
}

func TestCourse_GatesIsACopy(t *testing.T) {
	course := newTestCourse(t)

	gates := course.Gates()
	gates[0].Position = physics.Vector3{X: 99}

	first, _ := course.Gate(0)
	assert.Equal(t, testGates[0], first.Position)
}
