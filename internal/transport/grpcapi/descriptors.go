package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

const metadataFile = "thetalkingdrone.proto"

// unary builds a method descriptor around a typed Server method. The request is
// decoded by whatever codec the caller negotiated.
func unary[Req, Resp any](service, method string, call func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(*Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(*Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

const (
	authService      = "drone.AuthService"
	fleetService     = "drone.FleetService"
	flightService    = "drone.FlightService"
	autopilotService = "drone.AutopilotService"
)

// publicMethods skip token checks.
var publicMethods = map[string]bool{
	"/" + authService + "/IssueToken": true,
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authService,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(authService, "IssueToken", (*Server).IssueToken),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: metadataFile,
}

var fleetServiceDesc = grpc.ServiceDesc{
	ServiceName: fleetService,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(fleetService, "CreateDrone", (*Server).CreateDrone),
		unary(fleetService, "ListDrones", (*Server).ListDrones),
		unary(fleetService, "GetTelemetry", (*Server).GetTelemetry),
		unary(fleetService, "GetDetails", (*Server).GetDetails),
		unary(fleetService, "RemoveDrone", (*Server).RemoveDrone),
		unary(fleetService, "FlightLog", (*Server).FlightLog),
		unary(fleetService, "GetEnvironment", (*Server).GetEnvironment),
		unary(fleetService, "AddObstacle", (*Server).AddObstacle),
		unary(fleetService, "ResetSimulation", (*Server).ResetSimulation),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: metadataFile,
}

var flightServiceDesc = grpc.ServiceDesc{
	ServiceName: flightService,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(flightService, "TakeOff", (*Server).TakeOff),
		unary(flightService, "Land", (*Server).Land),
		unary(flightService, "Move", (*Server).Move),
		unary(flightService, "Turn", (*Server).Turn),
		unary(flightService, "Estimate", (*Server).Estimate),
		unary(flightService, "SetPayload", (*Server).SetPayload),
		unary(flightService, "SetMaintenance", (*Server).SetMaintenance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: metadataFile,
}

var autopilotServiceDesc = grpc.ServiceDesc{
	ServiceName: autopilotService,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(autopilotService, "Init", (*Server).InitAutopilot),
		unary(autopilotService, "Command", (*Server).AutopilotCommand),
		unary(autopilotService, "History", (*Server).AutopilotHistory),
		unary(autopilotService, "List", (*Server).ListAutopilots),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: metadataFile,
}
