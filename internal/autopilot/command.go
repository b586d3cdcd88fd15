package autopilot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"thetalkingdrone/internal/domain"
)

type Action string

const (
	ActionTelemetry Action = "telemetry"
	ActionTakeOff   Action = "take_off"
	ActionLand      Action = "land"
	ActionMoveTo    Action = "move_to"
	ActionMoveBy    Action = "move_by"
	ActionTurnTo    Action = "turn_to"
	ActionTurnBy    Action = "turn_by"
	ActionObstacles Action = "obstacles"
)

// Command is one entry of the fixed vocabulary. Target holds an absolute position for
// move_to and a body-frame offset for move_by; Heading holds degrees for turns.
type Command struct {
	Action   Action
	Altitude float64
	Target   domain.Location
	Heading  float64
}

func (c Command) String() string {
	switch c.Action {
	case ActionTakeOff:
		if c.Altitude > 0 {
			return fmt.Sprintf("take_off %.2f", c.Altitude)
		}
	case ActionMoveTo, ActionMoveBy:
		return fmt.Sprintf("%s %.2f %.2f %.2f", c.Action, c.Target.X, c.Target.Y, c.Target.Z)
	case ActionTurnTo, ActionTurnBy:
		return fmt.Sprintf("%s %.1f", c.Action, c.Heading)
	}
	return string(c.Action)
}

// Interpreter turns a free-form instruction into vocabulary commands.
type Interpreter interface {
	Interpret(ctx context.Context, text string, history []Turn) ([]Command, error)
}

// KeywordInterpreter understands short imperative phrases joined by ";", newlines or "then".
type KeywordInterpreter struct{}

var (
	separators = regexp.MustCompile(`\s*(?:;|\n|\band then\b|\bthen\b)\s*`)
	numberRe   = regexp.MustCompile(`[-+]?\d*\.?\d+`)
)

func (KeywordInterpreter) Interpret(ctx context.Context, text string, history []Turn) ([]Command, error) {
	var cmds []Command
	for _, phrase := range separators.Split(strings.ToLower(text), -1) {
		phrase = strings.Trim(phrase, " .!,")
		if phrase == "" {
			continue
		}
		cmd, err := ParseCommand(phrase)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("%w: no instruction in %q", domain.ErrInvalidCommand, text)
	}
	return cmds, nil
}

// ParseCommand parses a single phrase such as "move to 10 10 1" or "turn left 30".
func ParseCommand(phrase string) (Command, error) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	p = strings.ReplaceAll(p, "_", " ")
	nums, err := numbers(p)
	if err != nil {
		return Command{}, err
	}
	bad := func(want string) (Command, error) {
		return Command{}, fmt.Errorf("%w: %q expects %s", domain.ErrInvalidCommand, phrase, want)
	}

	switch {
	case hasAny(p, "telemetry", "status", "where are you"):
		return Command{Action: ActionTelemetry}, nil
	case hasAny(p, "obstacle", "building"):
		return Command{Action: ActionObstacles}, nil
	case hasAny(p, "take off", "takeoff", "lift off"):
		cmd := Command{Action: ActionTakeOff}
		if len(nums) > 1 {
			return bad("at most one altitude")
		}
		if len(nums) == 1 {
			cmd.Altitude = nums[0]
		}
		return cmd, nil
	case hasAny(p, "land"):
		return Command{Action: ActionLand}, nil
	case hasAny(p, "move to", "go to", "fly to"):
		if len(nums) != 3 {
			return bad("x y z")
		}
		return Command{Action: ActionMoveTo, Target: domain.Location{X: nums[0], Y: nums[1], Z: nums[2]}}, nil
	case hasAny(p, "move by"):
		if len(nums) != 3 {
			return bad("dx dy dz")
		}
		return Command{Action: ActionMoveBy, Target: domain.Location{X: nums[0], Y: nums[1], Z: nums[2]}}, nil
	case hasAny(p, "turn to", "face", "heading"):
		if len(nums) != 1 {
			return bad("a heading in degrees")
		}
		return Command{Action: ActionTurnTo, Heading: nums[0]}, nil
	case hasAny(p, "turn"):
		if len(nums) != 1 {
			return bad("an angle in degrees")
		}
		deg := nums[0]
		if hasAny(p, "right") {
			deg = -deg
		}
		return Command{Action: ActionTurnBy, Heading: deg}, nil
	}

	if len(nums) == 1 {
		d := nums[0]
		switch {
		case hasAny(p, "forward"):
			return Command{Action: ActionMoveBy, Target: domain.Location{X: d}}, nil
		case hasAny(p, "back"):
			return Command{Action: ActionMoveBy, Target: domain.Location{X: -d}}, nil
		case hasAny(p, "left"):
			return Command{Action: ActionMoveBy, Target: domain.Location{Y: d}}, nil
		case hasAny(p, "right"):
			return Command{Action: ActionMoveBy, Target: domain.Location{Y: -d}}, nil
		case hasAny(p, "up", "climb"):
			return Command{Action: ActionMoveBy, Target: domain.Location{Z: d}}, nil
		case hasAny(p, "down", "descend"):
			return Command{Action: ActionMoveBy, Target: domain.Location{Z: -d}}, nil
		}
	}
	return Command{}, fmt.Errorf("%w: unrecognized instruction %q", domain.ErrInvalidCommand, phrase)
}

func hasAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func numbers(s string) ([]float64, error) {
	raw := numberRe.FindAllString(s, -1)
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", domain.ErrInvalidCommand, r)
		}
		out = append(out, f)
	}
	return out, nil
}
