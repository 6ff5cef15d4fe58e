package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-gaterace/pkg/physics"
)

func TestNewMachine_NotStarted(t *testing.T) {
	m := NewMachine(newTestCourse(t))

	assert.Equal(t, StatusNotStarted, m.Status())
	state := m.State()
	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsGameOver)
	assert.Equal(t, 5, state.TotalGates)

	_, ok := m.ActiveGate()
	assert.False(t, ok)
}

func TestMachine_Start(t *testing.T) {
	m := NewMachine(newTestCourse(t))

	require.True(t, m.Start("race-1"))

	state := m.State()
	assert.Equal(t, StatusRacing, state.Status)
	assert.Equal(t, "race-1", state.RaceID)
	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsGameOver)
	assert.Equal(t, 0, state.CurrentGateIndex)
	assert.Equal(t, 0, state.Score)

	gate, ok := m.ActiveGate()
	require.True(t, ok)
	assert.Equal(t, 0, gate.Index)
}

func TestMachine_StartWhileRacingIsNoop(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("race-1"))
	m.Tick()
	m.Evaluate(testGates[0], 1.0)
	before := m.State()

	assert.False(t, m.Start("race-2"))
	assert.Equal(t, before, m.State())
}

func TestMachine_EvaluateOutsideRaceIsNoop(t *testing.T) {
	m := NewMachine(newTestCourse(t))

	tr := m.Evaluate(testGates[0], 1.0)
	assert.Equal(t, NoTransition, tr.Kind)
	assert.Equal(t, StatusNotStarted, m.Status())
	assert.Equal(t, 0, m.State().Score)
}

func TestMachine_FirstGateScenario(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))

	tr := m.Evaluate(physics.Vector3{X: 0, Y: 1.8, Z: -12.05}, 1.0)

	assert.Equal(t, GatePassed, tr.Kind)
	assert.Equal(t, 0, tr.GateIndex)
	assert.Equal(t, 100, tr.Score)
	state := m.State()
	assert.Equal(t, 1, state.CurrentGateIndex)
	assert.Equal(t, 100, state.Score)
	assert.True(t, state.IsPlaying)
}

func TestMachine_OutsideRadiusDoesNotAdvance(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))

	// 1.2 * (1.0 + 0.5) = 1.8
	tr := m.Evaluate(physics.Vector3{X: 0, Y: 1.8, Z: -14}, 1.0)
	assert.Equal(t, NoTransition, tr.Kind)
	assert.Equal(t, 0, m.State().CurrentGateIndex)

	// a larger ship reaches further
	tr = m.Evaluate(physics.Vector3{X: 0, Y: 1.8, Z: -14}, 1.5)
	assert.Equal(t, GatePassed, tr.Kind)
}

func TestMachine_OnlyActiveGateCounts(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))

	tr := m.Evaluate(testGates[2], 1.0)
	assert.Equal(t, NoTransition, tr.Kind)
	assert.Equal(t, 0, m.State().CurrentGateIndex)
}

func TestMachine_FinalGateScenario(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))

	for i := 0; i < 4; i++ {
		require.Equal(t, GatePassed, m.Evaluate(testGates[i], 1.0).Kind)
	}
	require.Equal(t, 4, m.State().CurrentGateIndex)
	require.Equal(t, 400, m.State().Score)

	shipScale := 1.0
	near := physics.Vector3{X: 0, Y: 2, Z: -75 + 0.6*(shipScale+0.5)}
	tr := m.Evaluate(near, shipScale)

	assert.Equal(t, RaceFinished, tr.Kind)
	assert.Equal(t, 4, tr.GateIndex)
	state := m.State()
	assert.Equal(t, StatusFinished, state.Status)
	assert.True(t, state.IsGameOver)
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 400, state.Score, "final gate awards no points")

	// further evaluations after the finish do nothing
	assert.Equal(t, NoTransition, m.Evaluate(near, shipScale).Kind)
}

func TestMachine_RestartAfterFinish(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("first"))
	for _, g := range testGates {
		m.Evaluate(g, 1.0)
	}
	require.Equal(t, StatusFinished, m.Status())

	require.True(t, m.Start("second"))
	state := m.State()
	assert.Equal(t, "second", state.RaceID)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, 0, state.CurrentGateIndex)
	assert.False(t, state.IsGameOver)
	assert.Empty(t, state.Splits)
}

func TestMachine_Abort(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))
	m.Evaluate(testGates[0], 1.0)

	m.Abort()

	assert.Equal(t, StatusNotStarted, m.Status())
	assert.Equal(t, 0, m.State().Score)
	assert.True(t, m.Start("again"))
}

func TestMachine_SplitsAndFrames(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	m.Tick()
	assert.Zero(t, m.State().Frames, "frames only count while racing")

	require.True(t, m.Start("r"))
	for i := 0; i < 30; i++ {
		m.Tick()
	}
	tr := m.Evaluate(testGates[0], 1.0)
	assert.Equal(t, uint64(30), tr.Frame)

	for i := 0; i < 12; i++ {
		m.Tick()
	}
	m.Evaluate(testGates[1], 1.0)

	state := m.State()
	assert.Equal(t, []uint64{30, 42}, state.Splits)

	// snapshot splits must not alias internal state
	state.Splits[0] = 999
	assert.Equal(t, uint64(30), m.State().Splits[0])
}

func TestMachine_ProgressIsMonotonic(t *testing.T) {
	m := NewMachine(newTestCourse(t))
	require.True(t, m.Start("r"))

	path := []physics.Vector3{
		{X: 0, Y: 1.5, Z: -8},
		testGates[0],
		testGates[0],
		{X: 50, Y: 50, Z: 50},
		testGates[1],
		testGates[0],
		testGates[2],
		testGates[1],
		testGates[3],
	}

	lastIndex, lastScore := 0, 0
	for _, p := range path {
		m.Evaluate(p, 1.0)
		state := m.State()
		assert.GreaterOrEqual(t, state.CurrentGateIndex, lastIndex)
		assert.GreaterOrEqual(t, state.Score, lastScore)
		assert.Less(t, state.CurrentGateIndex, state.TotalGates)
		lastIndex, lastScore = state.CurrentGateIndex, state.Score
	}
	assert.Equal(t, 4, lastIndex)
	assert.Equal(t, 400, lastScore)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "not_started", StatusNotStarted.String())
	assert.Equal(t, "racing", StatusRacing.String())
	assert.Equal(t, "finished", StatusFinished.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestDetectionRadius(t *testing.T) {
	assert.InDelta(t, 1.8, DetectionRadius(1.0), 1e-12)
	assert.InDelta(t, 0.6, DetectionRadius(0), 1e-12)
}
