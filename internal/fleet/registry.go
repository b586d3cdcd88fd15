package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"thetalkingdrone/internal/autopilot"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/flight"
)

const (
	BackendSimulated = "simulated"
	BackendLink      = "link"
)

// Factory builds a controller for a freshly created drone.
type Factory func(drone domain.Drone, env *environment.Environment, opts flight.Options, logger zerolog.Logger) (flight.Controller, error)

func SimulatedFactory(drone domain.Drone, env *environment.Environment, opts flight.Options, logger zerolog.Logger) (flight.Controller, error) {
	return flight.NewEngine(drone, env, opts, logger), nil
}

type Config struct {
	Environment   environment.Config
	Flight        flight.Options
	ClockInterval time.Duration
	Interpreter   autopilot.Interpreter
}

type CreateRequest struct {
	ID       string
	Model    domain.DroneModel
	Location domain.Location
	Backend  string
}

// Registry owns the environment, its clock and every live engine and autopilot.
type Registry struct {
	cfg       Config
	env       *environment.Environment
	clock     *environment.Clock
	logger    zerolog.Logger
	now       func() time.Time
	factories map[string]Factory

	mu      sync.RWMutex
	engines map[string]flight.Controller
	pilots  map[string]*autopilot.Autopilot
}

func New(cfg Config, logger zerolog.Logger) *Registry {
	env := environment.New(cfg.Environment)
	r := &Registry{
		cfg:       cfg,
		env:       env,
		clock:     environment.NewClock(env, cfg.ClockInterval, cfg.Flight.StopTimeout, logger),
		logger:    logger.With().Str("component", "fleet").Logger(),
		now:       time.Now,
		factories: map[string]Factory{BackendSimulated: SimulatedFactory},
		engines:   make(map[string]flight.Controller),
		pilots:    make(map[string]*autopilot.Autopilot),
	}
	return r
}

// RegisterBackend makes a flight backend available to CreateDrone.
func (r *Registry) RegisterBackend(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Start runs the environment clock.
func (r *Registry) Start() {
	r.clock.Start()
	r.logger.Info().Msg("simulation started")
}

func (r *Registry) Environment() *environment.Environment {
	return r.env
}

// CreateDrone validates the model and start location before any engine exists, then starts
// the engine and registers it.
func (r *Registry) CreateDrone(ctx context.Context, req CreateRequest) (flight.Controller, error) {
	if err := domain.ValidateModel(req.Model); err != nil {
		return nil, err
	}
	if err := r.env.ValidateLocation(req.Location); err != nil {
		return nil, err
	}
	backend := req.Backend
	if backend == "" {
		backend = BackendSimulated
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	factory, ok := r.factories[backend]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalid, backend)
	}
	if _, exists := r.engines[id]; exists {
		return nil, fmt.Errorf("%w: drone %s already exists", domain.ErrConflict, id)
	}
	drone := flight.NewDrone(id, req.Model, req.Location, r.now())
	ctrl, err := factory(drone, r.env, r.cfg.Flight, r.logger)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Start(); err != nil {
		return nil, err
	}
	r.engines[id] = ctrl
	r.logger.Info().Str("drone_id", id).Str("backend", backend).Str("model", req.Model.Name).Msg("drone created")
	return ctrl, nil
}

func (r *Registry) Get(id string) (flight.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("drone %s: %w", id, domain.ErrNotFound)
	}
	return ctrl, nil
}

// List returns controllers ordered by id.
func (r *Registry) List() []flight.Controller {
	r.mu.RLock()
	out := make([]flight.Controller, 0, len(r.engines))
	for _, c := range r.engines {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove stops the drone's engine and forgets it along with its autopilot.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	ctrl, ok := r.engines[id]
	if ok {
		delete(r.engines, id)
		delete(r.pilots, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("drone %s: %w", id, domain.ErrNotFound)
	}
	if err := ctrl.Stop(); err != nil {
		r.logger.Warn().Err(err).Str("drone_id", id).Msg("stop engine")
	}
	r.logger.Info().Str("drone_id", id).Msg("drone removed")
	return nil
}

// Reset stops every engine, clears the fleet, restores the environment and restarts the
// clock.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]flight.Controller)
	r.pilots = make(map[string]*autopilot.Autopilot)
	r.mu.Unlock()

	r.stopAll(ctx, engines)
	r.clock.Stop()
	r.env.Reset()
	r.clock.Start()
	r.logger.Info().Int("drones", len(engines)).Msg("simulation reset")
	return nil
}

// Shutdown stops every engine and the clock.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]flight.Controller)
	r.pilots = make(map[string]*autopilot.Autopilot)
	r.mu.Unlock()
	r.stopAll(ctx, engines)
	r.clock.Stop()
}

func (r *Registry) stopAll(ctx context.Context, engines map[string]flight.Controller) {
	g, _ := errgroup.WithContext(ctx)
	for id, ctrl := range engines {
		g.Go(func() error {
			if err := ctrl.Stop(); err != nil {
				r.logger.Warn().Err(err).Str("drone_id", id).Msg("stop engine")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) AddObstacle(o domain.Obstacle) domain.Obstacle {
	return r.env.AddObstacle(o)
}

// InitAutopilot returns the drone's autopilot, creating it on first use.
func (r *Registry) InitAutopilot(id string) (*autopilot.Autopilot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("drone %s: %w", id, domain.ErrNotFound)
	}
	if p, ok := r.pilots[id]; ok {
		return p, nil
	}
	p := autopilot.New(ctrl, r.env, r.cfg.Interpreter, r.logger)
	r.pilots[id] = p
	return p, nil
}

// Autopilot returns the drone's autopilot. A known drone without one yields
// ErrNotInitialized.
func (r *Registry) Autopilot(id string) (*autopilot.Autopilot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.engines[id]; !ok {
		return nil, fmt.Errorf("drone %s: %w", id, domain.ErrNotFound)
	}
	p, ok := r.pilots[id]
	if !ok {
		return nil, fmt.Errorf("autopilot for drone %s: %w, initialize it first", id, domain.ErrNotInitialized)
	}
	return p, nil
}

// AutopilotIDs lists drones with an initialized autopilot.
func (r *Registry) AutopilotIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pilots))
	for id := range r.pilots {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
