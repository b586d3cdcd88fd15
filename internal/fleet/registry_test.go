package fleet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/flight"
)

func testModel() domain.DroneModel {
	return domain.DroneModel{
		Name: "test-quad", MaxSpeed: 10, MaxVerticalSpeed: 1, MaxYawRate: 90,
		MaxAltitude: 40, MaxPayload: 1, FuelCapacity: 100, FuelConsumptionRate: 1,
	}
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	opts := flight.DefaultOptions()
	opts.TimeScale = 0
	r := New(Config{
		Environment:   environment.DefaultConfig(),
		Flight:        opts,
		ClockInterval: 5 * time.Millisecond,
	}, zerolog.Nop())
	r.Start()
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	return r
}

func TestCreateDroneValidatesFirst(t *testing.T) {
	r := newRegistry(t)
	var built atomic.Int32
	r.RegisterBackend("counting", func(d domain.Drone, env *environment.Environment, opts flight.Options, l zerolog.Logger) (flight.Controller, error) {
		built.Add(1)
		return SimulatedFactory(d, env, opts, l)
	})

	_, err := r.CreateDrone(context.Background(), CreateRequest{
		Model: testModel(), Location: domain.Location{X: 500}, Backend: "counting",
	})
	require.ErrorIs(t, err, domain.ErrOutOfBounds)

	_, err = r.CreateDrone(context.Background(), CreateRequest{
		Model: testModel(), Location: domain.Location{X: 50, Y: 50, Z: 5}, Backend: "counting",
	})
	require.ErrorIs(t, err, domain.ErrObstacleCollision)

	bad := testModel()
	bad.MaxSpeed = 0
	_, err = r.CreateDrone(context.Background(), CreateRequest{Model: bad, Backend: "counting"})
	require.ErrorIs(t, err, domain.ErrInvalid)

	assert.Equal(t, int32(0), built.Load())
	assert.Empty(t, r.List())

	_, err = r.CreateDrone(context.Background(), CreateRequest{Model: testModel(), Backend: "warp"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestCreateGetListRemove(t *testing.T) {
	r := newRegistry(t)

	a, err := r.CreateDrone(context.Background(), CreateRequest{Model: testModel(), Location: domain.Location{X: 1, Y: 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID())

	b, err := r.CreateDrone(context.Background(), CreateRequest{ID: "alpha", Model: testModel()})
	require.NoError(t, err)
	assert.Equal(t, "alpha", b.ID())

	_, err = r.CreateDrone(context.Background(), CreateRequest{ID: "alpha", Model: testModel()})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Len(t, r.List(), 2)

	require.NoError(t, r.Remove("alpha"))
	assert.ErrorIs(t, r.Remove("alpha"), domain.ErrNotFound)
	_, err = r.Get("alpha")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, r.List(), 1)
}

func TestResetClearsFleetAndEnvironment(t *testing.T) {
	r := newRegistry(t)
	ctrl, err := r.CreateDrone(context.Background(), CreateRequest{ID: "d-1", Model: testModel(), Location: domain.Location{X: 1, Y: 1}})
	require.NoError(t, err)
	require.NoError(t, ctrl.TakeOff(context.Background(), 0))
	_, err = r.InitAutopilot("d-1")
	require.NoError(t, err)
	r.AddObstacle(domain.Obstacle{Position: domain.Location{X: 5, Y: 5}, Size: domain.Dimensions{Length: 1, Width: 1, Height: 1}})
	require.Eventually(t, func() bool { return r.Environment().Elapsed() > 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Reset(context.Background()))

	assert.Empty(t, r.List())
	assert.Empty(t, r.AutopilotIDs())
	assert.Len(t, r.Environment().Obstacles(), 1)
	assert.Less(t, r.Environment().Elapsed(), 500*time.Millisecond)
	require.Eventually(t, func() bool { return r.Environment().Elapsed() > 0 }, time.Second, 5*time.Millisecond)

	_, err = r.CreateDrone(context.Background(), CreateRequest{ID: "d-1", Model: testModel()})
	assert.NoError(t, err)
}

func TestAutopilotLifecycle(t *testing.T) {
	r := newRegistry(t)
	_, err := r.InitAutopilot("ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.CreateDrone(context.Background(), CreateRequest{ID: "d-1", Model: testModel(), Location: domain.Location{X: 1, Y: 1}})
	require.NoError(t, err)

	_, err = r.Autopilot("d-1")
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = r.Autopilot("ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	p1, err := r.InitAutopilot("d-1")
	require.NoError(t, err)
	p2, err := r.InitAutopilot("d-1")
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	got, err := r.Autopilot("d-1")
	require.NoError(t, err)
	assert.Same(t, p1, got)
	assert.Equal(t, []string{"d-1"}, r.AutopilotIDs())

	_, err = p1.Handle(context.Background(), "take off then move to 5 5 1")
	require.NoError(t, err)

	require.NoError(t, r.Remove("d-1"))
	_, err = r.Autopilot("d-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFactoryStartFailureIsNotRegistered(t *testing.T) {
	r := newRegistry(t)
	r.RegisterBackend("broken", func(d domain.Drone, env *environment.Environment, opts flight.Options, l zerolog.Logger) (flight.Controller, error) {
		return nil, errors.New("no radio")
	})
	_, err := r.CreateDrone(context.Background(), CreateRequest{ID: "x", Model: testModel(), Backend: "broken"})
	require.Error(t, err)
	_, err = r.Get("x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
