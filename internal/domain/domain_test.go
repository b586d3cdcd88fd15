package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationMath(t *testing.T) {
	a := Location{X: 1, Y: 2, Z: 0}
	b := Location{X: 4, Y: 6, Z: 0}

	assert.Equal(t, 5.0, a.DistanceTo(b))
	assert.Equal(t, Location{X: 5, Y: 8}, a.Add(b))
	assert.Equal(t, Location{X: 3, Y: 4}, b.Sub(a))
	assert.Equal(t, Location{X: 2.5, Y: 4}, a.Lerp(b, 0.5))
	assert.Equal(t, b, a.Lerp(b, 1))
}

func TestFuelStatus(t *testing.T) {
	cases := []struct {
		level, capacity float64
		want            string
	}{
		{100, 100, FuelStatusOK},
		{20, 100, FuelStatusOK},
		{19.9, 100, FuelStatusLow},
		{10, 100, FuelStatusLow},
		{9.9, 100, FuelStatusCritical},
		{0, 100, FuelStatusCritical},
		{5, 0, FuelStatusCritical},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FuelStatus(c.level, c.capacity), "level %v capacity %v", c.level, c.capacity)
	}

	d := Drone{Model: DroneModel{FuelCapacity: 50}, Telemetry: Telemetry{FuelLevel: 25}}
	assert.Equal(t, 50.0, d.FuelPercentage())
}

func TestObstacleContains(t *testing.T) {
	building := Obstacle{Name: "Building 1", Position: Location{X: 50, Y: 50}, Size: Dimensions{Length: 10, Width: 10, Height: 20}}

	assert.True(t, building.Contains(Location{X: 50, Y: 50, Z: 10}))
	assert.True(t, building.Contains(Location{X: 45, Y: 55, Z: 20}), "faces are inside")
	assert.False(t, building.Contains(Location{X: 44.9, Y: 50, Z: 10}))
	assert.False(t, building.Contains(Location{X: 50, Y: 50, Z: 20.1}), "above the roof")
}

func TestBoundariesContains(t *testing.T) {
	b := Boundaries{MaxX: 100, MaxY: 100, MaxZ: 50}
	assert.True(t, b.Contains(Location{}))
	assert.True(t, b.Contains(Location{X: 100, Y: 100, Z: 50}))
	assert.False(t, b.Contains(Location{X: -0.1}))
	assert.False(t, b.Contains(Location{Z: 50.1}))
}

func TestAirborne(t *testing.T) {
	for _, s := range []DroneState{StateTakingOff, StateFlying, StateLanding, StateEmergency} {
		assert.True(t, s.Airborne(), s)
	}
	for _, s := range []DroneState{StateIdle, StateMaintenance} {
		assert.False(t, s.Airborne(), s)
	}
}

func TestHeadings(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeHeading(360))
	assert.Equal(t, 270.0, NormalizeHeading(-90))
	assert.Equal(t, 30.0, NormalizeHeading(750))

	assert.Equal(t, 20.0, HeadingDelta(350, 10))
	assert.Equal(t, -20.0, HeadingDelta(10, 350))
	assert.Equal(t, 90.0, HeadingDelta(0, 90))
}

func TestValidateModel(t *testing.T) {
	good := DroneModel{Name: "quad", MaxSpeed: 10, MaxVerticalSpeed: 1, MaxYawRate: 90, MaxAltitude: 40, FuelCapacity: 100, FuelConsumptionRate: 1}
	require.NoError(t, ValidateModel(good))

	bad := good
	bad.MaxSpeed = 0
	assert.ErrorIs(t, ValidateModel(bad), ErrInvalid)

	bad = good
	bad.Name = ""
	assert.ErrorIs(t, ValidateModel(bad), ErrInvalid)

	assert.True(t, ValidateRole(RolePilot))
	assert.False(t, ValidateRole("enduser"))
}
