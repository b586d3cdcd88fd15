package autopilot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/flight"
)

func newPilot(t *testing.T) (*Autopilot, *flight.Engine) {
	t.Helper()
	env := environment.New(environment.DefaultConfig())
	model := domain.DroneModel{
		Name: "test-quad", MaxSpeed: 10, MaxVerticalSpeed: 1, MaxYawRate: 90,
		MaxAltitude: 40, MaxPayload: 1, FuelCapacity: 100, FuelConsumptionRate: 1,
	}
	opts := flight.DefaultOptions()
	opts.TimeScale = 0
	engine := flight.NewEngine(flight.NewDrone("d-1", model, domain.Location{X: 10, Y: 10}, time.Now()), env, opts, zerolog.Nop())
	return New(engine, env, nil, zerolog.Nop()), engine
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"telemetry", Command{Action: ActionTelemetry}},
		{"take off", Command{Action: ActionTakeOff}},
		{"take_off 2.5", Command{Action: ActionTakeOff, Altitude: 2.5}},
		{"Land", Command{Action: ActionLand}},
		{"move to 10, 20, 1.5", Command{Action: ActionMoveTo, Target: domain.Location{X: 10, Y: 20, Z: 1.5}}},
		{"move_by 1 -2 0", Command{Action: ActionMoveBy, Target: domain.Location{X: 1, Y: -2}}},
		{"turn to 270", Command{Action: ActionTurnTo, Heading: 270}},
		{"turn right 45", Command{Action: ActionTurnBy, Heading: -45}},
		{"turn left 45", Command{Action: ActionTurnBy, Heading: 45}},
		{"fly forward 3", Command{Action: ActionMoveBy, Target: domain.Location{X: 3}}},
		{"go up 2", Command{Action: ActionMoveBy, Target: domain.Location{Z: 2}}},
		{"show me the buildings", Command{Action: ActionObstacles}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, in := range []string{"dance", "move to 1 2", "turn to", "take off 1 2"} {
		_, err := ParseCommand(in)
		assert.ErrorIs(t, err, domain.ErrInvalidCommand, in)
	}
}

func TestKeywordInterpreterSplitsPhrases(t *testing.T) {
	cmds, err := KeywordInterpreter{}.Interpret(context.Background(), "take off; move to 20 20 2 and then turn to 90 then land", nil)
	require.NoError(t, err)
	require.Len(t, cmds, 4)
	assert.Equal(t, ActionTakeOff, cmds[0].Action)
	assert.Equal(t, ActionMoveTo, cmds[1].Action)
	assert.Equal(t, ActionTurnTo, cmds[2].Action)
	assert.Equal(t, ActionLand, cmds[3].Action)

	_, err = KeywordInterpreter{}.Interpret(context.Background(), " ; ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
}

func TestHandleRunsSequence(t *testing.T) {
	pilot, engine := newPilot(t)

	reply, err := pilot.Handle(context.Background(), "take off then move to 20 20 2; turn to 90; telemetry")
	require.NoError(t, err)
	require.Len(t, reply.Results, 4)
	assert.Contains(t, reply.Text, "FLYING at (20.00, 20.00, 2.00)")

	snap := engine.Telemetry()
	assert.Equal(t, domain.Location{X: 20, Y: 20, Z: 2}, snap.Position)
	assert.Equal(t, 90.0, snap.Heading)

	history := pilot.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleAutopilot, history[1].Role)
}

func TestHandleSurfacesTypedErrors(t *testing.T) {
	pilot, engine := newPilot(t)

	_, err := pilot.Handle(context.Background(), "land")
	require.ErrorIs(t, err, domain.ErrNotOperational)

	reply, err := pilot.Handle(context.Background(), "take off; move to 200 0 1; land")
	require.ErrorIs(t, err, domain.ErrOutOfBounds)
	assert.Len(t, reply.Results, 2)
	assert.Equal(t, domain.StateFlying, engine.Telemetry().State)

	_, err = pilot.Handle(context.Background(), "do a barrel roll")
	assert.True(t, errors.Is(err, domain.ErrInvalidCommand))

	history := pilot.History()
	require.Len(t, history, 6)
	assert.Contains(t, history[3].Content, "failed")
}

func TestExecuteObstacles(t *testing.T) {
	pilot, _ := newPilot(t)

	res, err := pilot.Execute(context.Background(), Command{Action: ActionObstacles})
	require.NoError(t, err)
	require.Len(t, res.Obstacles, 1)
	assert.Equal(t, "Building 1", res.Obstacles[0].Name)

	_, err = pilot.Execute(context.Background(), Command{Action: "hover"})
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
}

func TestHistoryLimit(t *testing.T) {
	pilot, _ := newPilot(t)
	pilot.limit = 4
	for i := 0; i < 5; i++ {
		_, err := pilot.Handle(context.Background(), "telemetry")
		require.NoError(t, err)
	}
	assert.Len(t, pilot.History(), 4)
	pilot.ClearHistory()
	assert.Empty(t, pilot.History())
}
