package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/events"
	"thetalkingdrone/internal/fleet"
	"thetalkingdrone/internal/flight"
	"thetalkingdrone/internal/service"
	"thetalkingdrone/internal/transport"
)

func testModel() domain.DroneModel {
	return domain.DroneModel{
		Name: "test-quad", MaxSpeed: 10, MaxVerticalSpeed: 1, MaxYawRate: 90,
		MaxAltitude: 40, MaxPayload: 1, FuelCapacity: 100, FuelConsumptionRate: 1,
	}
}

type fixture struct {
	handler http.Handler
	auth    *auth.Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	opts := flight.DefaultOptions()
	opts.TimeScale = 0
	reg := fleet.New(fleet.Config{Environment: environment.DefaultConfig(), Flight: opts}, zerolog.Nop())
	reg.Start()
	t.Cleanup(func() { reg.Shutdown(context.Background()) })
	box := events.NewMemoryOutbox(0)
	svc := service.New(reg, box, box, zerolog.Nop())
	authenticator := auth.New("secret", time.Hour)
	return &fixture{handler: NewServer(svc, authenticator, testModel()), auth: authenticator}
}

func (f *fixture) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := f.auth.IssueToken("alice", role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestIssueToken(t *testing.T) {
	handler := NewServer(nil, auth.New("secret", time.Hour), testModel())

	payload := map[string]string{"name": "alice", "role": domain.RolePilot}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[map[string]any](t, rec)
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatalf("expected token")
	}
}

func TestIssueTokenInvalidRole(t *testing.T) {
	handler := NewServer(nil, auth.New("secret", time.Hour), testModel())

	body, _ := json.Marshal(map[string]string{"name": "alice", "role": "invalid"})
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/drones", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	observer := f.token(t, domain.RoleObserver)
	if rec := f.do(t, http.MethodGet, "/drones", observer, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected observer to list drones, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/drones", observer, transport.CreateDroneRequest{Location: transport.Location{X: 5, Y: 5}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for observer create, got %d", rec.Code)
	}
	pilot := f.token(t, domain.RolePilot)
	if rec := f.do(t, http.MethodPost, "/simulation/reset", pilot, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pilot reset, got %d", rec.Code)
	}
}

func TestFlightLifecycle(t *testing.T) {
	f := newFixture(t)
	pilot := f.token(t, domain.RolePilot)

	rec := f.do(t, http.MethodPost, "/drones", pilot, transport.CreateDroneRequest{ID: "d1", Location: transport.Location{X: 10, Y: 10}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transport.TelemetryResponse](t, rec)
	if created.DroneID != "d1" || created.State != string(domain.StateIdle) {
		t.Fatalf("unexpected drone: %+v", created)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/move", pilot, transport.MoveRequest{X: 20, Y: 20, Z: 2})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 moving a grounded drone, got %d", rec.Code)
	}
	if body := decodeBody[transport.ErrorBody](t, rec); body.Code != transport.CodeNotOperational {
		t.Fatalf("expected not_operational, got %q", body.Code)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/takeoff", pilot, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("takeoff: %d %s", rec.Code, rec.Body.String())
	}
	if snap := decodeBody[transport.TelemetryResponse](t, rec); snap.State != string(domain.StateFlying) {
		t.Fatalf("expected FLYING, got %s", snap.State)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/move", pilot, transport.MoveRequest{X: 20, Y: 20, Z: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: %d %s", rec.Code, rec.Body.String())
	}
	if snap := decodeBody[transport.TelemetryResponse](t, rec); snap.Position != (transport.Location{X: 20, Y: 20, Z: 2}) {
		t.Fatalf("unexpected position: %+v", snap.Position)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/move", pilot, transport.MoveRequest{X: 500, Y: 20, Z: 2})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 out of bounds, got %d", rec.Code)
	}
	if body := decodeBody[transport.ErrorBody](t, rec); body.Code != transport.CodeOutOfBounds {
		t.Fatalf("expected out_of_bounds, got %q", body.Code)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/turn", pilot, transport.TurnRequest{Heading: 90})
	if rec.Code != http.StatusOK {
		t.Fatalf("turn: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/land", pilot, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("land: %d", rec.Code)
	}
	if snap := decodeBody[transport.TelemetryResponse](t, rec); snap.State != string(domain.StateIdle) {
		t.Fatalf("expected IDLE, got %s", snap.State)
	}

	rec = f.do(t, http.MethodGet, "/drones/d1/events", pilot, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events: %d", rec.Code)
	}
	if evts := decodeBody[[]transport.EventResponse](t, rec); len(evts) == 0 {
		t.Fatalf("expected flight log entries")
	}
}

func TestUnknownDrone(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/drones/missing/telemetry", f.token(t, domain.RoleObserver), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEstimate(t *testing.T) {
	f := newFixture(t)
	pilot := f.token(t, domain.RolePilot)
	f.do(t, http.MethodPost, "/drones", pilot, transport.CreateDroneRequest{ID: "d1", Location: transport.Location{X: 10, Y: 10}})

	rec := f.do(t, http.MethodGet, "/drones/d1/estimate?x=13&y=14&z=0", pilot, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("estimate: %d %s", rec.Code, rec.Body.String())
	}
	est := decodeBody[transport.EstimateResponse](t, rec)
	if est.Distance != 5 {
		t.Fatalf("expected distance 5, got %v", est.Distance)
	}

	rec = f.do(t, http.MethodGet, "/drones/d1/estimate?x=abc&y=0&z=0", pilot, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad query, got %d", rec.Code)
	}
}

func TestAutopilotEndpoints(t *testing.T) {
	f := newFixture(t)
	pilot := f.token(t, domain.RolePilot)
	f.do(t, http.MethodPost, "/drones", pilot, transport.CreateDroneRequest{ID: "d1", Location: transport.Location{X: 10, Y: 10}})

	rec := f.do(t, http.MethodPost, "/drones/d1/autopilot/command", pilot, transport.AutopilotCommandRequest{Command: "take off"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before init, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/drones/ghost/autopilot/history", pilot, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown drone, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodPost, "/drones/d1/autopilot", pilot, nil); rec.Code != http.StatusOK {
		t.Fatalf("init autopilot: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/drones/d1/autopilot/command", pilot, transport.AutopilotCommandRequest{Command: "take off then move to 20 20 2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("command: %d %s", rec.Code, rec.Body.String())
	}
	reply := decodeBody[transport.AutopilotReplyResponse](t, rec)
	if len(reply.Commands) != 2 || reply.Telemetry == nil || reply.Telemetry.Position.X != 20 {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rec = f.do(t, http.MethodPost, "/drones/d1/autopilot/command", pilot, transport.AutopilotCommandRequest{Command: "do a barrel roll"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown instruction, got %d", rec.Code)
	}
	if reply := decodeBody[transport.AutopilotReplyResponse](t, rec); reply.Error == nil || reply.Error.Code != transport.CodeInvalidCommand {
		t.Fatalf("expected invalid_command error, got %+v", reply.Error)
	}

	rec = f.do(t, http.MethodGet, "/drones/d1/autopilot/history", pilot, nil)
	if history := decodeBody[[]transport.TurnEntry](t, rec); len(history) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(history))
	}
}

func TestEnvironmentAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.token(t, domain.RoleAdmin)

	rec := f.do(t, http.MethodPost, "/environment/obstacles", admin, transport.ObstacleRequest{
		Position: transport.Location{X: 20, Y: 20},
		Size:     transport.Dimensions{Length: 2, Width: 2, Height: 5},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add obstacle: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/environment", admin, nil)
	env := decodeBody[transport.EnvironmentResponse](t, rec)
	if len(env.Obstacles) != 2 {
		t.Fatalf("expected 2 obstacles, got %d", len(env.Obstacles))
	}

	if rec := f.do(t, http.MethodPost, "/simulation/reset", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("reset: %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/environment", admin, nil)
	if env := decodeBody[transport.EnvironmentResponse](t, rec); len(env.Obstacles) != 1 {
		t.Fatalf("expected reset to restore defaults, got %d obstacles", len(env.Obstacles))
	}
}
