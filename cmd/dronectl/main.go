// Command dronectl drives a running server over gRPC (JSON codec) or thrift.
//
//	dronectl -role pilot create d1 10 10
//	dronectl takeoff d1 3
//	dronectl move d1 20 20 3
//	dronectl -proto thrift telemetry d1
//	dronectl ask d1 "take off then move forward 5"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"thetalkingdrone/internal/transport"
	"thetalkingdrone/internal/transport/grpcapi"
	"thetalkingdrone/internal/transport/thriftapi"
)

var errUsage = errors.New("usage: dronectl [flags] create|takeoff|land|move|turn|telemetry|list|reset|ask ...")

func main() {
	proto := flag.String("proto", "grpc", "grpc or thrift")
	grpcAddr := flag.String("grpc", "127.0.0.1:9090", "gRPC address")
	thriftAddr := flag.String("thrift", "127.0.0.1:9091", "thrift address")
	name := flag.String("name", "dronectl", "token subject")
	role := flag.String("role", "pilot", "token role")
	relative := flag.Bool("rel", false, "move and turn relative to the drone")
	timeout := flag.Duration("timeout", 30*time.Second, "call timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out any
	var err error
	switch *proto {
	case "grpc":
		out, err = runGRPC(ctx, *grpcAddr, *name, *role, *relative, flag.Args())
	case "thrift":
		out, err = runThrift(ctx, *thriftAddr, *name, *role, *relative, flag.Args())
	default:
		err = fmt.Errorf("unknown protocol %q", *proto)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func floats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

// command splits args into a verb, a drone id and numeric operands.
func command(args []string, minNums int) (string, string, []float64, error) {
	if len(args) < 1 {
		return "", "", nil, errUsage
	}
	verb := args[0]
	if verb == "list" || verb == "reset" {
		return verb, "", nil, nil
	}
	if len(args) < 2 {
		return "", "", nil, errUsage
	}
	if verb == "ask" {
		return verb, args[1], nil, nil
	}
	nums, err := floats(args[2:])
	if err != nil {
		return "", "", nil, err
	}
	if len(nums) < minNums {
		return "", "", nil, errUsage
	}
	return verb, args[1], nums, nil
}

func operandsFor(verb string) int {
	switch verb {
	case "create":
		return 2
	case "move":
		return 3
	case "turn":
		return 1
	default:
		return 0
	}
}

func runGRPC(ctx context.Context, addr, name, role string, relative bool, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	verb, id, nums, err := command(args, operandsFor(args[0]))
	if err != nil {
		return nil, err
	}

	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcapi.JSONCodec{})),
	)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var tok grpcapi.TokenResponse
	if err := conn.Invoke(ctx, "/drone.AuthService/IssueToken", &grpcapi.TokenRequest{Name: name, Role: role}, &tok); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok.Token)

	var snap transport.TelemetryResponse
	switch verb {
	case "create":
		req := &transport.CreateDroneRequest{ID: id, Location: transport.Location{X: nums[0], Y: nums[1]}}
		return &snap, conn.Invoke(ctx, "/drone.FleetService/CreateDrone", req, &snap)
	case "takeoff":
		req := &grpcapi.TakeOffRequest{DroneID: id}
		if len(nums) > 0 {
			req.Altitude = nums[0]
		}
		return &snap, conn.Invoke(ctx, "/drone.FlightService/TakeOff", req, &snap)
	case "land":
		return &snap, conn.Invoke(ctx, "/drone.FlightService/Land", &grpcapi.DroneIDRequest{DroneID: id}, &snap)
	case "move":
		req := &grpcapi.MoveRequest{DroneID: id, MoveRequest: transport.MoveRequest{X: nums[0], Y: nums[1], Z: nums[2], Relative: relative}}
		return &snap, conn.Invoke(ctx, "/drone.FlightService/Move", req, &snap)
	case "turn":
		req := &grpcapi.TurnRequest{DroneID: id, TurnRequest: transport.TurnRequest{Heading: nums[0], Relative: relative}}
		return &snap, conn.Invoke(ctx, "/drone.FlightService/Turn", req, &snap)
	case "telemetry":
		return &snap, conn.Invoke(ctx, "/drone.FleetService/GetTelemetry", &grpcapi.DroneIDRequest{DroneID: id}, &snap)
	case "list":
		var resp grpcapi.ListDronesResponse
		return &resp, conn.Invoke(ctx, "/drone.FleetService/ListDrones", &grpcapi.Empty{}, &resp)
	case "reset":
		return &grpcapi.Empty{}, conn.Invoke(ctx, "/drone.FleetService/ResetSimulation", &grpcapi.Empty{}, &grpcapi.Empty{})
	case "ask":
		if len(args) < 3 {
			return nil, errUsage
		}
		if err := conn.Invoke(ctx, "/drone.AutopilotService/Init", &grpcapi.DroneIDRequest{DroneID: id}, &grpcapi.Empty{}); err != nil {
			return nil, err
		}
		var reply transport.AutopilotReplyResponse
		return &reply, conn.Invoke(ctx, "/drone.AutopilotService/Command", &grpcapi.CommandRequest{DroneID: id, Command: args[2]}, &reply)
	default:
		return nil, errUsage
	}
}

func runThrift(ctx context.Context, addr, name, role string, relative bool, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	verb, id, nums, err := command(args, operandsFor(args[0]))
	if err != nil {
		return nil, err
	}

	client, err := thriftapi.Dial(addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	tok, err := client.IssueToken(ctx, name, role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	client.SetToken(tok.Token)

	switch verb {
	case "create":
		return client.CreateDrone(ctx, id, thriftapi.Location{X: nums[0], Y: nums[1]})
	case "takeoff":
		alt := 0.0
		if len(nums) > 0 {
			alt = nums[0]
		}
		return client.TakeOff(ctx, id, alt)
	case "land":
		return client.Land(ctx, id)
	case "move":
		return client.Move(ctx, id, thriftapi.Location{X: nums[0], Y: nums[1], Z: nums[2]}, relative)
	case "turn":
		return client.Turn(ctx, id, nums[0], relative)
	case "telemetry":
		return client.GetTelemetry(ctx, id)
	case "list":
		return client.ListDrones(ctx)
	case "reset":
		return struct{}{}, client.ResetSimulation(ctx)
	default:
		return nil, fmt.Errorf("%s is not available over thrift", verb)
	}
}
