package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/service"
	"thetalkingdrone/internal/transport"
)

type Server struct {
	svc          *service.Service
	auth         *auth.Authenticator
	defaultModel domain.DroneModel
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, defaultModel domain.DroneModel) http.Handler {
	s := &Server{svc: svc, auth: authenticator, defaultModel: defaultModel}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/drones", func(r chi.Router) {
		r.With(s.requireRole(auth.Anyone...)).Get("/", s.handleListDrones)
		r.With(s.requireRole(auth.Operators...)).Post("/", s.handleCreateDrone)

		r.Route("/{id}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.Anyone...))
				r.Get("/telemetry", s.handleTelemetry)
				r.Get("/details", s.handleDetails)
				r.Get("/events", s.handleFlightLog)
				r.Get("/estimate", s.handleEstimate)
				r.Get("/autopilot/history", s.handleAutopilotHistory)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.Operators...))
				r.Post("/takeoff", s.handleTakeOff)
				r.Post("/land", s.handleLand)
				r.Post("/move", s.handleMove)
				r.Post("/turn", s.handleTurn)
				r.Put("/payload", s.handlePayload)
				r.Post("/autopilot", s.handleInitAutopilot)
				r.Post("/autopilot/command", s.handleAutopilotCommand)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.Admins...))
				r.Delete("/", s.handleRemoveDrone)
				r.Put("/maintenance", s.handleMaintenance)
			})
		})
	})

	r.With(s.requireRole(auth.Anyone...)).Get("/autopilots", s.handleListAutopilots)

	r.Route("/environment", func(r chi.Router) {
		r.With(s.requireRole(auth.Anyone...)).Get("/", s.handleEnvironment)
		r.With(s.requireRole(auth.Admins...)).Post("/obstacles", s.handleAddObstacle)
	})

	r.With(s.requireRole(auth.Admins...)).Post("/simulation/reset", s.handleReset)

	return r
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.auth.Authorize(r.Header.Get("Authorization"), roles...)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	return nil
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

func (s *Server) handleCreateDrone(w http.ResponseWriter, r *http.Request) {
	var req transport.CreateDroneRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.svc.CreateDrone(r.Context(), req.ToCreateRequest(s.defaultModel))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromSnapshot(snap))
}

func (s *Server) handleListDrones(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.svc.ListDrones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshots(snaps))
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Telemetry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.DroneDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDroneView(view))
}

func (s *Server) handleRemoveDrone(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveDrone(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTakeOff(w http.ResponseWriter, r *http.Request) {
	var req transport.TakeOffRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.svc.TakeOff(r.Context(), chi.URLParam(r, "id"), req.Altitude)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleLand(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Land(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req transport.MoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target := domain.Location{X: req.X, Y: req.Y, Z: req.Z}
	snap, err := s.svc.Move(r.Context(), chi.URLParam(r, "id"), target, req.Relative)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req transport.TurnRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.svc.Turn(r.Context(), chi.URLParam(r, "id"), req.Heading, req.Relative)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var loc [3]float64
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: query parameter %s", domain.ErrInvalid, key))
			return
		}
		loc[i] = v
	}
	relative, _ := strconv.ParseBool(q.Get("relative"))
	est, err := s.svc.EstimateMove(r.Context(), chi.URLParam(r, "id"), domain.Location{X: loc[0], Y: loc[1], Z: loc[2]}, relative)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromEstimate(est))
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kilograms float64 `json:"kg"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.svc.SetPayload(r.Context(), chi.URLParam(r, "id"), req.Kilograms)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.svc.SetMaintenance(r.Context(), chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromSnapshot(snap))
}

func (s *Server) handleFlightLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	evts, err := s.svc.FlightLog(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromEvents(evts))
}

func (s *Server) handleInitAutopilot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.InitAutopilot(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drone_id": id, "autopilot": "ready"})
}

func (s *Server) handleAutopilotCommand(w http.ResponseWriter, r *http.Request) {
	var req transport.AutopilotCommandRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	reply, err := s.svc.AutopilotCommand(r.Context(), chi.URLParam(r, "id"), req.Command)
	resp := transport.FromReply(reply, err)
	if err != nil {
		respondJSON(w, statusFor(resp.Error.Code), resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutopilotHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.AutopilotHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromHistory(history))
}

func (s *Server) handleListAutopilots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.ListAutopilots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drone_ids": ids})
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := s.svc.EnvironmentState(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromEnvironment(env))
}

func (s *Server) handleAddObstacle(w http.ResponseWriter, r *http.Request) {
	var req transport.ObstacleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := s.svc.AddObstacle(r.Context(), req.Domain())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromObstacle(o))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetSimulation(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}
