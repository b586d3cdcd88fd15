package thriftapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/fleet"
	"thetalkingdrone/internal/flight"
	"thetalkingdrone/internal/service"
	"thetalkingdrone/internal/transport"
)

type Processor struct {
	svc          *service.Service
	auth         *auth.Authenticator
	defaultModel domain.DroneModel
	processorMap map[string]thrift.TProcessorFunction
}

type handlerFunc func(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException)

type processorFunc struct {
	fn handlerFunc
}

func (p processorFunc) Process(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	return p.fn(ctx, seqID, in, out)
}

type callFunc func(ctx context.Context, req *DroneRequest) (thrift.TStruct, error)

func NewProcessor(svc *service.Service, authenticator *auth.Authenticator, defaultModel domain.DroneModel) *Processor {
	p := &Processor{svc: svc, auth: authenticator, defaultModel: defaultModel}
	p.processorMap = map[string]thrift.TProcessorFunction{
		"IssueToken":      processorFunc{fn: p.handleIssueToken},
		"CreateDrone":     p.droneCall("CreateDrone", auth.Operators, p.createDrone),
		"ListDrones":      p.droneCall("ListDrones", auth.Anyone, p.listDrones),
		"GetTelemetry":    p.droneCall("GetTelemetry", auth.Anyone, p.getTelemetry),
		"TakeOff":         p.droneCall("TakeOff", auth.Operators, p.takeOff),
		"Land":            p.droneCall("Land", auth.Operators, p.land),
		"Move":            p.droneCall("Move", auth.Operators, p.move),
		"Turn":            p.droneCall("Turn", auth.Operators, p.turn),
		"ResetSimulation": p.droneCall("ResetSimulation", auth.Admins, p.reset),
	}
	return p
}

func (p *Processor) ProcessorMap() map[string]thrift.TProcessorFunction {
	return p.processorMap
}

func (p *Processor) AddToProcessorMap(name string, processor thrift.TProcessorFunction) {
	p.processorMap[name] = processor
}

func (p *Processor) Process(ctx context.Context, in, out thrift.TProtocol) (bool, thrift.TException) {
	name, messageType, seqID, err := in.ReadMessageBegin(ctx)
	if err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if messageType != thrift.CALL && messageType != thrift.ONEWAY {
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "invalid message type"))
	}
	processor, ok := p.processorMap[name]
	if !ok {
		_ = in.Skip(ctx, thrift.STRUCT)
		_ = in.ReadMessageEnd(ctx)
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.UNKNOWN_METHOD, "unknown method "+name))
	}
	return processor.Process(ctx, seqID, in, out)
}

func (p *Processor) handleIssueToken(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	req := &TokenRequest{}
	if err := readArgs(ctx, in, "IssueToken", req); err != nil {
		return p.writeException(ctx, out, "IssueToken", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	token, exp, err := p.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return p.writeException(ctx, out, "IssueToken", seqID, mapError(err))
	}
	return p.writeReply(ctx, out, "IssueToken", seqID, &TokenResponse{Token: token, ExpiresAt: exp.Unix()})
}

// droneCall decodes a DroneRequest, checks its token against roles and runs call.
func (p *Processor) droneCall(method string, roles []string, call callFunc) processorFunc {
	return processorFunc{fn: func(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
		req := &DroneRequest{}
		if err := readArgs(ctx, in, method, req); err != nil {
			return p.writeException(ctx, out, method, seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
		}
		if err := p.authorize(req.AuthToken, roles...); err != nil {
			return p.writeException(ctx, out, method, seqID, mapError(err))
		}
		resp, err := call(ctx, req)
		if err != nil {
			return p.writeException(ctx, out, method, seqID, mapError(err))
		}
		return p.writeReply(ctx, out, method, seqID, resp)
	}}
}

func (p *Processor) createDrone(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	create := fleet.CreateRequest{ID: req.DroneID, Model: p.defaultModel}
	if req.Location != nil {
		create.Location = toDomainLocation(*req.Location)
	}
	return toTelemetry(p.svc.CreateDrone(ctx, create))
}

func (p *Processor) listDrones(ctx context.Context, _ *DroneRequest) (thrift.TStruct, error) {
	snaps, err := p.svc.ListDrones(ctx)
	if err != nil {
		return nil, err
	}
	list := &TelemetryList{Drones: make([]*Telemetry, 0, len(snaps))}
	for _, s := range snaps {
		list.Drones = append(list.Drones, fromSnapshot(s))
	}
	return list, nil
}

func (p *Processor) getTelemetry(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	return toTelemetry(p.svc.Telemetry(ctx, req.DroneID))
}

func (p *Processor) takeOff(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	return toTelemetry(p.svc.TakeOff(ctx, req.DroneID, req.Altitude))
}

func (p *Processor) land(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	return toTelemetry(p.svc.Land(ctx, req.DroneID))
}

func (p *Processor) move(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	if req.Location == nil {
		return nil, fmt.Errorf("%w: location is required", domain.ErrInvalid)
	}
	return toTelemetry(p.svc.Move(ctx, req.DroneID, toDomainLocation(*req.Location), req.Relative))
}

func (p *Processor) turn(ctx context.Context, req *DroneRequest) (thrift.TStruct, error) {
	return toTelemetry(p.svc.Turn(ctx, req.DroneID, req.Heading, req.Relative))
}

func (p *Processor) reset(ctx context.Context, _ *DroneRequest) (thrift.TStruct, error) {
	if err := p.svc.ResetSimulation(ctx); err != nil {
		return nil, err
	}
	return &Void{}, nil
}

func (p *Processor) authorize(token string, roles ...string) error {
	claims, err := p.auth.ParseToken(token)
	if err != nil {
		return err
	}
	if !auth.HasRole(claims, roles...) {
		return fmt.Errorf("%w: role %s", domain.ErrForbidden, claims.Role)
	}
	return nil
}

func readArgs(ctx context.Context, in thrift.TProtocol, method string, req thrift.TStruct) error {
	if err := (&callArgs{method: method, request: req}).Read(ctx, in); err != nil {
		return err
	}
	return in.ReadMessageEnd(ctx)
}

func (p *Processor) writeReply(ctx context.Context, out thrift.TProtocol, method string, seqID int32, success thrift.TStruct) (bool, thrift.TException) {
	if err := out.WriteMessageBegin(ctx, method, thrift.REPLY, seqID); err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if err := (&callResult{method: method, success: success}).Write(ctx, out); err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if err := out.WriteMessageEnd(ctx); err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if err := out.Flush(ctx); err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	return true, nil
}

// writeException replies with appErr. The connection stays usable so the
// returned success flag is true.
func (p *Processor) writeException(ctx context.Context, out thrift.TProtocol, method string, seqID int32, appErr thrift.TApplicationException) (bool, thrift.TException) {
	_ = out.WriteMessageBegin(ctx, method, thrift.EXCEPTION, seqID)
	_ = appErr.Write(ctx, out)
	_ = out.WriteMessageEnd(ctx)
	_ = out.Flush(ctx)
	return true, appErr
}

// mapError carries the shared error code as a message prefix, e.g. "not_found: drone d1".
func mapError(err error) thrift.TApplicationException {
	body := transport.NewErrorBody(err)
	kind := int32(thrift.PROTOCOL_ERROR)
	if body.Code == transport.CodeInternal {
		kind = thrift.INTERNAL_ERROR
	}
	return thrift.NewTApplicationException(kind, body.Code+": "+body.Message)
}

// ErrorCode extracts the shared error code from an exception returned by the server.
func ErrorCode(err error) string {
	var appErr thrift.TApplicationException
	if !errors.As(err, &appErr) {
		return ""
	}
	code, _, ok := strings.Cut(appErr.Error(), ":")
	if !ok {
		return ""
	}
	return code
}

func toDomainLocation(l Location) domain.Location {
	return domain.Location{X: l.X, Y: l.Y, Z: l.Z}
}

func fromSnapshot(s flight.Snapshot) *Telemetry {
	return &Telemetry{
		DroneID:         s.DroneID,
		Name:            s.Name,
		State:           string(s.State),
		Position:        Location{X: s.Position.X, Y: s.Position.Y, Z: s.Position.Z},
		Heading:         s.Heading,
		Speed:           s.Speed,
		FuelLevel:       s.FuelLevel,
		FuelPercentage:  s.FuelPercentage,
		FuelStatus:      s.FuelStatus,
		UpdatedAtMillis: s.UpdatedAt.UnixMilli(),
	}
}

func toTelemetry(s flight.Snapshot, err error) (thrift.TStruct, error) {
	if err != nil {
		return nil, err
	}
	return fromSnapshot(s), nil
}
