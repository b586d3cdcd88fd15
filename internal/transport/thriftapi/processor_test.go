package thriftapi

import (
	"context"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
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

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	opts := flight.DefaultOptions()
	opts.TimeScale = 0
	reg := fleet.New(fleet.Config{Environment: environment.DefaultConfig(), Flight: opts}, zerolog.Nop())
	reg.Start()
	t.Cleanup(func() { reg.Shutdown(context.Background()) })
	box := events.NewMemoryOutbox(0)
	svc := service.New(reg, box, box, zerolog.Nop())
	return NewProcessor(svc, auth.New("secret", time.Hour), testModel())
}

// roundTrip encodes a call, runs it through the processor and decodes the reply.
func roundTrip(t *testing.T, p *Processor, method string, req, resp thrift.TStruct) error {
	t.Helper()
	ctx := context.Background()
	reqProto := thrift.NewTBinaryProtocolConf(thrift.NewTMemoryBuffer(), nil)
	respProto := thrift.NewTBinaryProtocolConf(thrift.NewTMemoryBuffer(), nil)
	client := thrift.NewTStandardClient(respProto, reqProto)

	if err := client.Send(ctx, reqProto, 1, method, &callArgs{method: method, request: req}); err != nil {
		t.Fatalf("send %s: %v", method, err)
	}
	p.Process(ctx, reqProto, respProto)
	return client.Recv(ctx, respProto, 1, method, &callResult{method: method, success: resp})
}

func issue(t *testing.T, p *Processor, role string) string {
	t.Helper()
	var tok TokenResponse
	if err := roundTrip(t, p, "IssueToken", &TokenRequest{Name: "alice", Role: role}, &tok); err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if tok.Token == "" || tok.ExpiresAt == 0 {
		t.Fatalf("unexpected token response: %+v", tok)
	}
	return tok.Token
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	p := newProcessor(t)
	err := roundTrip(t, p, "IssueToken", &TokenRequest{Name: "alice", Role: "pirate"}, &TokenResponse{})
	if got := ErrorCode(err); got != transport.CodeInvalid {
		t.Fatalf("expected invalid, got %q (%v)", got, err)
	}
}

func TestUnknownMethod(t *testing.T) {
	p := newProcessor(t)
	err := roundTrip(t, p, "Hover", &DroneRequest{}, &Telemetry{})
	if err == nil {
		t.Fatalf("expected unknown method error")
	}
}

func TestFlightOverThrift(t *testing.T) {
	p := newProcessor(t)
	token := issue(t, p, domain.RolePilot)

	var snap Telemetry
	if err := roundTrip(t, p, "CreateDrone", &DroneRequest{AuthToken: token, DroneID: "d1", Location: &Location{X: 10, Y: 10}}, &snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.DroneID != "d1" || snap.State != string(domain.StateIdle) || snap.Name != "test-quad" {
		t.Fatalf("unexpected drone: %+v", snap)
	}

	if err := roundTrip(t, p, "TakeOff", &DroneRequest{AuthToken: token, DroneID: "d1", Altitude: 2}, &snap); err != nil {
		t.Fatalf("takeoff: %v", err)
	}
	if err := roundTrip(t, p, "Move", &DroneRequest{AuthToken: token, DroneID: "d1", Location: &Location{X: 20, Y: 20, Z: 2}}, &snap); err != nil {
		t.Fatalf("move: %v", err)
	}
	if snap.Position != (Location{X: 20, Y: 20, Z: 2}) {
		t.Fatalf("unexpected position: %+v", snap.Position)
	}
	if err := roundTrip(t, p, "Turn", &DroneRequest{AuthToken: token, DroneID: "d1", Heading: 45, Relative: true}, &snap); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if snap.Heading != 45 {
		t.Fatalf("expected heading 45, got %v", snap.Heading)
	}

	err := roundTrip(t, p, "Move", &DroneRequest{AuthToken: token, DroneID: "d1"}, &snap)
	if got := ErrorCode(err); got != transport.CodeInvalid {
		t.Fatalf("expected invalid without location, got %q", got)
	}

	var list TelemetryList
	if err := roundTrip(t, p, "ListDrones", &DroneRequest{AuthToken: token}, &list); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Drones) != 1 || list.Drones[0].State != string(domain.StateFlying) {
		t.Fatalf("unexpected list: %+v", list.Drones)
	}

	if err := roundTrip(t, p, "Land", &DroneRequest{AuthToken: token, DroneID: "d1"}, &snap); err != nil {
		t.Fatalf("land: %v", err)
	}
	if snap.State != string(domain.StateIdle) || snap.Position.Z != 0 {
		t.Fatalf("unexpected telemetry after landing: %+v", snap)
	}
}

func TestThriftAuthorization(t *testing.T) {
	p := newProcessor(t)

	err := roundTrip(t, p, "GetTelemetry", &DroneRequest{AuthToken: "garbage", DroneID: "d1"}, &Telemetry{})
	if got := ErrorCode(err); got != transport.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %q", got)
	}

	pilot := issue(t, p, domain.RolePilot)
	err = roundTrip(t, p, "ResetSimulation", &DroneRequest{AuthToken: pilot}, &Void{})
	if got := ErrorCode(err); got != transport.CodeForbidden {
		t.Fatalf("expected forbidden, got %q", got)
	}

	admin := issue(t, p, domain.RoleAdmin)
	if err := roundTrip(t, p, "ResetSimulation", &DroneRequest{AuthToken: admin}, &Void{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	err = roundTrip(t, p, "GetTelemetry", &DroneRequest{AuthToken: admin, DroneID: "missing"}, &Telemetry{})
	if got := ErrorCode(err); got != transport.CodeNotFound {
		t.Fatalf("expected not_found, got %q", got)
	}
}
