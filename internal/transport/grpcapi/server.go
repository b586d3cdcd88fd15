package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/flight"
	"thetalkingdrone/internal/service"
	"thetalkingdrone/internal/transport"
)

type Server struct {
	svc          *service.Service
	auth         *auth.Authenticator
	defaultModel domain.DroneModel
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, defaultModel domain.DroneModel) *grpc.Server {
	server := &Server{svc: svc, auth: authenticator, defaultModel: defaultModel}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.authInterceptor()))

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&fleetServiceDesc, server)
	grpcServer.RegisterService(&flightServiceDesc, server)
	grpcServer.RegisterService(&autopilotServiceDesc, server)

	return grpcServer
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authHeader := ""
		if values := md.Get("authorization"); len(values) > 0 {
			authHeader = values[0]
		}
		claims, err := s.auth.Authorize(authHeader, auth.Anyone...)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return handler(auth.ContextWithClaims(ctx, claims), req)
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) CreateDrone(ctx context.Context, req *transport.CreateDroneRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	snap, err := s.svc.CreateDrone(ctx, req.ToCreateRequest(s.defaultModel))
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromSnapshot(snap)
	return &resp, nil
}

func (s *Server) ListDrones(ctx context.Context, _ *Empty) (*ListDronesResponse, error) {
	snaps, err := s.svc.ListDrones(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &ListDronesResponse{Drones: transport.FromSnapshots(snaps)}, nil
}

func (s *Server) GetTelemetry(ctx context.Context, req *DroneIDRequest) (*transport.TelemetryResponse, error) {
	snap, err := s.svc.Telemetry(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromSnapshot(snap)
	return &resp, nil
}

func (s *Server) GetDetails(ctx context.Context, req *DroneIDRequest) (*transport.DroneDetailsResponse, error) {
	view, err := s.svc.DroneDetails(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDroneView(view)
	return &resp, nil
}

func (s *Server) RemoveDrone(ctx context.Context, req *DroneIDRequest) (*Empty, error) {
	if _, err := requireRole(ctx, auth.Admins...); err != nil {
		return nil, err
	}
	if err := s.svc.RemoveDrone(ctx, req.DroneID); err != nil {
		return nil, mapServiceError(err)
	}
	return &Empty{}, nil
}

func (s *Server) FlightLog(ctx context.Context, req *FlightLogRequest) (*FlightLogResponse, error) {
	evts, err := s.svc.FlightLog(ctx, req.DroneID, req.Limit)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &FlightLogResponse{Events: transport.FromEvents(evts)}, nil
}

func (s *Server) GetEnvironment(ctx context.Context, _ *Empty) (*transport.EnvironmentResponse, error) {
	env, err := s.svc.EnvironmentState(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromEnvironment(env)
	return &resp, nil
}

func (s *Server) AddObstacle(ctx context.Context, req *transport.ObstacleRequest) (*transport.ObstacleResponse, error) {
	if _, err := requireRole(ctx, auth.Admins...); err != nil {
		return nil, err
	}
	o, err := s.svc.AddObstacle(ctx, req.Domain())
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromObstacle(o)
	return &resp, nil
}

func (s *Server) ResetSimulation(ctx context.Context, _ *Empty) (*Empty, error) {
	if _, err := requireRole(ctx, auth.Admins...); err != nil {
		return nil, err
	}
	if err := s.svc.ResetSimulation(ctx); err != nil {
		return nil, mapServiceError(err)
	}
	return &Empty{}, nil
}

func (s *Server) TakeOff(ctx context.Context, req *TakeOffRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	return s.telemetry(s.svc.TakeOff(ctx, req.DroneID, req.Altitude))
}

func (s *Server) Land(ctx context.Context, req *DroneIDRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	return s.telemetry(s.svc.Land(ctx, req.DroneID))
}

func (s *Server) Move(ctx context.Context, req *MoveRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	target := domain.Location{X: req.X, Y: req.Y, Z: req.Z}
	return s.telemetry(s.svc.Move(ctx, req.DroneID, target, req.Relative))
}

func (s *Server) Turn(ctx context.Context, req *TurnRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	return s.telemetry(s.svc.Turn(ctx, req.DroneID, req.Heading, req.Relative))
}

func (s *Server) Estimate(ctx context.Context, req *MoveRequest) (*transport.EstimateResponse, error) {
	target := domain.Location{X: req.X, Y: req.Y, Z: req.Z}
	est, err := s.svc.EstimateMove(ctx, req.DroneID, target, req.Relative)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromEstimate(est)
	return &resp, nil
}

func (s *Server) SetPayload(ctx context.Context, req *PayloadRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	return s.telemetry(s.svc.SetPayload(ctx, req.DroneID, req.Kilograms))
}

func (s *Server) SetMaintenance(ctx context.Context, req *MaintenanceRequest) (*transport.TelemetryResponse, error) {
	if _, err := requireRole(ctx, auth.Admins...); err != nil {
		return nil, err
	}
	return s.telemetry(s.svc.SetMaintenance(ctx, req.DroneID, req.Enabled))
}

func (s *Server) InitAutopilot(ctx context.Context, req *DroneIDRequest) (*Empty, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	if err := s.svc.InitAutopilot(ctx, req.DroneID); err != nil {
		return nil, mapServiceError(err)
	}
	return &Empty{}, nil
}

func (s *Server) AutopilotCommand(ctx context.Context, req *CommandRequest) (*transport.AutopilotReplyResponse, error) {
	if _, err := requireRole(ctx, auth.Operators...); err != nil {
		return nil, err
	}
	reply, err := s.svc.AutopilotCommand(ctx, req.DroneID, req.Command)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromReply(reply, nil)
	return &resp, nil
}

func (s *Server) AutopilotHistory(ctx context.Context, req *DroneIDRequest) (*HistoryResponse, error) {
	history, err := s.svc.AutopilotHistory(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &HistoryResponse{Turns: transport.FromHistory(history)}, nil
}

func (s *Server) ListAutopilots(ctx context.Context, _ *Empty) (*AutopilotsResponse, error) {
	ids, err := s.svc.ListAutopilots(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &AutopilotsResponse{DroneIDs: ids}, nil
}

func (s *Server) telemetry(snap flight.Snapshot, err error) (*transport.TelemetryResponse, error) {
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromSnapshot(snap)
	return &resp, nil
}
