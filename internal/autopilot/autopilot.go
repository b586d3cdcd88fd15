package autopilot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/flight"
)

const (
	RoleUser      = "user"
	RoleAutopilot = "autopilot"
)

const defaultHistoryLimit = 200

type Turn struct {
	Role    string
	Content string
	At      time.Time
}

type ObstacleSource interface {
	Obstacles() []domain.Obstacle
}

type Result struct {
	Command   Command
	Telemetry flight.Snapshot
	Obstacles []domain.Obstacle
}

type Reply struct {
	Text    string
	Results []Result
}

// Autopilot maps vocabulary commands onto one flight controller and keeps the conversation.
type Autopilot struct {
	ctrl      flight.Controller
	obstacles ObstacleSource
	interp    Interpreter
	logger    zerolog.Logger
	now       func() time.Time
	limit     int

	conv    sync.Mutex
	mu      sync.Mutex
	history []Turn
}

func New(ctrl flight.Controller, obstacles ObstacleSource, interp Interpreter, logger zerolog.Logger) *Autopilot {
	if interp == nil {
		interp = KeywordInterpreter{}
	}
	return &Autopilot{
		ctrl:      ctrl,
		obstacles: obstacles,
		interp:    interp,
		logger:    logger.With().Str("component", "autopilot").Str("drone_id", ctrl.ID()).Logger(),
		now:       time.Now,
		limit:     defaultHistoryLimit,
	}
}

func (a *Autopilot) DroneID() string {
	return a.ctrl.ID()
}

// Execute runs a single command and returns the telemetry afterwards. Engine errors are
// returned unchanged.
func (a *Autopilot) Execute(ctx context.Context, cmd Command) (Result, error) {
	var err error
	res := Result{Command: cmd}
	switch cmd.Action {
	case ActionTelemetry:
	case ActionObstacles:
		if a.obstacles != nil {
			res.Obstacles = a.obstacles.Obstacles()
		}
	case ActionTakeOff:
		err = a.ctrl.TakeOff(ctx, cmd.Altitude)
	case ActionLand:
		err = a.ctrl.Land(ctx)
	case ActionMoveTo:
		err = a.ctrl.MoveTo(ctx, cmd.Target)
	case ActionMoveBy:
		err = a.ctrl.MoveBy(ctx, cmd.Target)
	case ActionTurnTo:
		err = a.ctrl.TurnTo(ctx, cmd.Heading)
	case ActionTurnBy:
		err = a.ctrl.TurnBy(ctx, cmd.Heading)
	default:
		return res, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidCommand, cmd.Action)
	}
	res.Telemetry = a.ctrl.Telemetry()
	if err != nil {
		a.logger.Warn().Err(err).Str("command", cmd.String()).Msg("command failed")
		return res, err
	}
	a.logger.Debug().Str("command", cmd.String()).Msg("command executed")
	return res, nil
}

// Handle interprets text, runs the resulting commands in order and stops at the first
// failure. Both sides of the exchange are appended to the history, failures included.
func (a *Autopilot) Handle(ctx context.Context, text string) (Reply, error) {
	a.conv.Lock()
	defer a.conv.Unlock()

	a.appendTurn(RoleUser, text)
	cmds, err := a.interp.Interpret(ctx, text, a.History())
	if err != nil {
		a.appendTurn(RoleAutopilot, "I could not understand that: "+err.Error())
		return Reply{}, err
	}

	var reply Reply
	var lines []string
	for _, cmd := range cmds {
		res, err := a.Execute(ctx, cmd)
		reply.Results = append(reply.Results, res)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s failed: %v", cmd, err))
			reply.Text = strings.Join(lines, "\n")
			a.appendTurn(RoleAutopilot, reply.Text)
			return reply, err
		}
		lines = append(lines, describe(res))
	}
	reply.Text = strings.Join(lines, "\n")
	a.appendTurn(RoleAutopilot, reply.Text)
	return reply, nil
}

func (a *Autopilot) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.history...)
}

func (a *Autopilot) ClearHistory() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

func (a *Autopilot) appendTurn(role, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, Turn{Role: role, Content: content, At: a.now()})
	if len(a.history) > a.limit {
		a.history = append([]Turn(nil), a.history[len(a.history)-a.limit:]...)
	}
}

func describe(res Result) string {
	t := res.Telemetry
	switch res.Command.Action {
	case ActionObstacles:
		if len(res.Obstacles) == 0 {
			return "No obstacles registered."
		}
		names := make([]string, 0, len(res.Obstacles))
		for _, o := range res.Obstacles {
			names = append(names, fmt.Sprintf("%s at (%.1f, %.1f, %.1f) %.1fx%.1fx%.1f",
				o.Name, o.Position.X, o.Position.Y, o.Position.Z, o.Size.Length, o.Size.Width, o.Size.Height))
		}
		return "Obstacles: " + strings.Join(names, "; ")
	case ActionTelemetry:
		return fmt.Sprintf("%s at (%.2f, %.2f, %.2f), heading %.1f, fuel %.1f%% (%s)",
			t.State, t.Position.X, t.Position.Y, t.Position.Z, t.Heading, t.FuelPercentage, t.FuelStatus)
	default:
		return fmt.Sprintf("%s done: %s at (%.2f, %.2f, %.2f), heading %.1f",
			res.Command, t.State, t.Position.X, t.Position.Y, t.Position.Z, t.Heading)
	}
}
