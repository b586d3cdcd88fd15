package environment

import (
	"fmt"
	"math"
	"sync"
	"time"

	"thetalkingdrone/internal/domain"
)

// WindCellSize is the edge length of a wind grid cell, meters.
const WindCellSize = 10.0

type Config struct {
	Boundaries     domain.Boundaries
	Obstacles      []domain.Obstacle
	CheckObstacles bool
}

func DefaultConfig() Config {
	return Config{
		Boundaries: domain.Boundaries{MaxX: 100, MaxY: 100, MaxZ: 50},
		Obstacles: []domain.Obstacle{{
			Name:     "Building 1",
			Position: domain.Location{X: 50, Y: 50, Z: 0},
			Size:     domain.Dimensions{Length: 10, Width: 10, Height: 20},
		}},
		CheckObstacles: true,
	}
}

type windCell struct{ x, y int }

// Environment is shared by every engine in a fleet. Reads are safe from any goroutine;
// Tick is driven by a single Clock.
type Environment struct {
	mu        sync.RWMutex
	defaults  Config
	bounds    domain.Boundaries
	obstacles []domain.Obstacle
	wind      map[windCell]domain.Wind
	check     bool
	elapsed   time.Duration
}

func New(cfg Config) *Environment {
	e := &Environment{defaults: cfg}
	e.defaults.Obstacles = cloneObstacles(cfg.Obstacles)
	e.resetLocked()
	return e
}

type Snapshot struct {
	Boundaries     domain.Boundaries
	Obstacles      []domain.Obstacle
	CheckObstacles bool
	Elapsed        time.Duration
}

func (e *Environment) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		Boundaries:     e.bounds,
		Obstacles:      cloneObstacles(e.obstacles),
		CheckObstacles: e.check,
		Elapsed:        e.elapsed,
	}
}

func (e *Environment) Boundaries() domain.Boundaries {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bounds
}

func (e *Environment) Obstacles() []domain.Obstacle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneObstacles(e.obstacles)
}

// ValidateLocation checks a point against the boundaries and, when enabled, the obstacles.
func (e *Environment) ValidateLocation(p domain.Location) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return fmt.Errorf("%w: (%v, %v, %v) is not a number", domain.ErrOutOfBounds, p.X, p.Y, p.Z)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.bounds.Contains(p) {
		return fmt.Errorf("%w: (%.2f, %.2f, %.2f) outside [0,%.2f]x[0,%.2f]x[0,%.2f]",
			domain.ErrOutOfBounds, p.X, p.Y, p.Z, e.bounds.MaxX, e.bounds.MaxY, e.bounds.MaxZ)
	}
	if !e.check {
		return nil
	}
	for _, o := range e.obstacles {
		if o.Contains(p) {
			return fmt.Errorf("%w: (%.2f, %.2f, %.2f) inside %q",
				domain.ErrObstacleCollision, p.X, p.Y, p.Z, o.Name)
		}
	}
	return nil
}

// AddObstacle appends o as given, naming it when unnamed. Duplicates and degenerate boxes are
// accepted.
func (e *Environment) AddObstacle(o domain.Obstacle) domain.Obstacle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o.Name == "" {
		o.Name = fmt.Sprintf("Obstacle-%d", len(e.obstacles)+1)
	}
	next := make([]domain.Obstacle, len(e.obstacles), len(e.obstacles)+1)
	copy(next, e.obstacles)
	e.obstacles = append(next, o)
	return o
}

func (e *Environment) SetObstacleChecking(on bool) {
	e.mu.Lock()
	e.check = on
	e.mu.Unlock()
}

func (e *Environment) SetWind(p domain.Location, w domain.Wind) {
	e.mu.Lock()
	e.wind[cellOf(p)] = w
	e.mu.Unlock()
}

// WindAt returns the wind for the grid cell containing p, or calm air.
func (e *Environment) WindAt(p domain.Location) domain.Wind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wind[cellOf(p)]
}

// Tick advances the environment clock.
func (e *Environment) Tick(dt time.Duration) {
	e.mu.Lock()
	e.elapsed += dt
	e.mu.Unlock()
}

func (e *Environment) Elapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.elapsed
}

// Reset restores boundaries, obstacles and policy to their construction values and zeroes the clock.
func (e *Environment) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
}

func (e *Environment) resetLocked() {
	e.bounds = e.defaults.Boundaries
	e.obstacles = cloneObstacles(e.defaults.Obstacles)
	for i := range e.obstacles {
		if e.obstacles[i].Name == "" {
			e.obstacles[i].Name = fmt.Sprintf("Obstacle-%d", i+1)
		}
	}
	e.check = e.defaults.CheckObstacles
	e.wind = make(map[windCell]domain.Wind)
	e.elapsed = 0
}

func cellOf(p domain.Location) windCell {
	return windCell{x: int(math.Floor(p.X / WindCellSize)), y: int(math.Floor(p.Y / WindCellSize))}
}

func cloneObstacles(in []domain.Obstacle) []domain.Obstacle {
	if in == nil {
		return nil
	}
	out := make([]domain.Obstacle, len(in))
	copy(out, in)
	return out
}
