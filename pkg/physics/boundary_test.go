package physics

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in       string
		expected Mode
		wantErr  bool
	}{
		{"free", ModeFree, false},
		{"", ModeFree, false},
		{"Confined", ModeConfined, false},
		{" passthrough ", ModeConfined, false},
		{"ar", ModeConfined, false},
		{"orbital", ModeFree, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mode, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "free", ModeFree.String())
	assert.Equal(t, "confined", ModeConfined.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}

func TestEnforce_ConfinedClampsEachAxis(t *testing.T) {
	tests := []struct {
		name     string
		position Vector3
		expected Vector3
	}{
		{"inside", Vector3{X: 1, Y: 2, Z: -10}, Vector3{X: 1, Y: 2, Z: -10}},
		{"too_high", Vector3{X: 0, Y: 15, Z: -10}, Vector3{X: 0, Y: 10, Z: -10}},
		{"below_floor", Vector3{X: 0, Y: -3, Z: -10}, Vector3{X: 0, Y: 0.2, Z: -10}},
		{"too_close", Vector3{X: 0, Y: 2, Z: 5}, Vector3{X: 0, Y: 2, Z: -2}},
		{"too_far", Vector3{X: 0, Y: 2, Z: -75}, Vector3{X: 0, Y: 2, Z: -40}},
		{"corner", Vector3{X: -99, Y: 99, Z: 99}, Vector3{X: -15, Y: 10, Z: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			velocity := Vector3{X: 0.3, Y: 0.4, Z: -0.5}
			craft := CraftState{Position: tt.position, Velocity: velocity}

			reset := Enforce(&craft, ModeConfined)

			assert.False(t, reset)
			assert.Equal(t, tt.expected, craft.Position)
			assert.Equal(t, velocity, craft.Velocity, "velocity is never zeroed by clamping")
		})
	}
}

func TestEnforce_ConfinedAlwaysInsideVolume(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for i := 0; i < 1000; i++ {
		craft := CraftState{Position: Vector3{
			X: rng.Float64()*400 - 200,
			Y: rng.Float64()*400 - 200,
			Z: rng.Float64()*400 - 200,
		}}
		Enforce(&craft, ModeConfined)

		p := craft.Position
		require.True(t, p.Z >= -40 && p.Z <= -2, "z=%f", p.Z)
		require.True(t, p.X >= -15 && p.X <= 15, "x=%f", p.X)
		require.True(t, p.Y >= 0.2 && p.Y <= 10, "y=%f", p.Y)
	}
}

func TestEnforce_FreeRecoversBeyondRadius(t *testing.T) {
	orientation := EulerAngles{Pitch: 0.2, Yaw: 1, Roll: -0.4}
	craft := CraftState{
		Position:    Vector3{X: 100, Y: 100, Z: -100},
		Velocity:    Vector3{X: 2, Y: 2, Z: -2},
		Orientation: orientation,
	}

	reset := Enforce(&craft, ModeFree)

	assert.True(t, reset)
	assert.Equal(t, Vector3{X: 0, Y: 1.5, Z: -8}, craft.Position)
	assert.Equal(t, Vector3{}, craft.Velocity)
	assert.Equal(t, orientation, craft.Orientation)
}

func TestEnforce_FreeLeavesCraftInsideRadius(t *testing.T) {
	tests := []struct {
		name     string
		position Vector3
	}{
		{"origin", Vector3{}},
		{"far_but_inside", Vector3{X: 149.9}},
		{"on_radius", Vector3{Z: -150}},
		{"outside_confined_box", Vector3{X: 60, Y: 40, Z: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			velocity := Vector3{X: 1}
			craft := CraftState{Position: tt.position, Velocity: velocity}

			assert.False(t, Enforce(&craft, ModeFree))
			assert.Equal(t, tt.position, craft.Position)
			assert.Equal(t, velocity, craft.Velocity)
		})
	}
}

func TestBox_Contains(t *testing.T) {
	assert.True(t, ConfinedVolume.Contains(Vector3{X: 0, Y: 1.6, Z: -10}))
	assert.True(t, ConfinedVolume.Contains(ConfinedVolume.Max))
	assert.False(t, ConfinedVolume.Contains(Vector3{X: 0, Y: 1.6, Z: 0}))
}

func TestSphere_Contains(t *testing.T) {
	gate := Sphere{Center: Vector3{X: 0, Y: 1.8, Z: -12}, Radius: 1.8}

	assert.True(t, gate.Contains(Vector3{X: 0, Y: 1.8, Z: -12.05}))
	assert.True(t, gate.Contains(Vector3{X: 0, Y: 1.8, Z: -10.5}), "approach from behind counts")
	assert.False(t, gate.Contains(Vector3{X: 0, Y: 1.8, Z: -10.1}))
	assert.False(t, gate.Contains(Vector3{X: 5, Y: 1.8, Z: -12}))
}
