package thriftapi

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// Client calls the drone service over framed binary thrift.
type Client struct {
	trans  thrift.TTransport
	client *thrift.TStandardClient
	token  string
}

func Dial(addr string) (*Client, error) {
	cfg := &thrift.TConfiguration{}
	trans := thrift.NewTFramedTransportConf(thrift.NewTSocketConf(addr, cfg), cfg)
	if err := trans.Open(); err != nil {
		return nil, err
	}
	protoFactory := thrift.NewTBinaryProtocolFactoryConf(cfg)
	return &Client{
		trans:  trans,
		client: thrift.NewTStandardClient(protoFactory.GetProtocol(trans), protoFactory.GetProtocol(trans)),
	}, nil
}

func (c *Client) Close() error {
	return c.trans.Close()
}

// SetToken sets the bearer token sent with every drone call.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) call(ctx context.Context, method string, req, resp thrift.TStruct) error {
	_, err := c.client.Call(ctx, method, &callArgs{method: method, request: req}, &callResult{method: method, success: resp})
	return err
}

func (c *Client) IssueToken(ctx context.Context, name, role string) (*TokenResponse, error) {
	resp := &TokenResponse{}
	if err := c.call(ctx, "IssueToken", &TokenRequest{Name: name, Role: role}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) drone(ctx context.Context, method string, req *DroneRequest) (*Telemetry, error) {
	req.AuthToken = c.token
	resp := &Telemetry{}
	if err := c.call(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateDrone(ctx context.Context, id string, at Location) (*Telemetry, error) {
	return c.drone(ctx, "CreateDrone", &DroneRequest{DroneID: id, Location: &at})
}

func (c *Client) GetTelemetry(ctx context.Context, id string) (*Telemetry, error) {
	return c.drone(ctx, "GetTelemetry", &DroneRequest{DroneID: id})
}

func (c *Client) TakeOff(ctx context.Context, id string, altitude float64) (*Telemetry, error) {
	return c.drone(ctx, "TakeOff", &DroneRequest{DroneID: id, Altitude: altitude})
}

func (c *Client) Land(ctx context.Context, id string) (*Telemetry, error) {
	return c.drone(ctx, "Land", &DroneRequest{DroneID: id})
}

func (c *Client) Move(ctx context.Context, id string, target Location, relative bool) (*Telemetry, error) {
	return c.drone(ctx, "Move", &DroneRequest{DroneID: id, Location: &target, Relative: relative})
}

func (c *Client) Turn(ctx context.Context, id string, heading float64, relative bool) (*Telemetry, error) {
	return c.drone(ctx, "Turn", &DroneRequest{DroneID: id, Heading: heading, Relative: relative})
}

func (c *Client) ListDrones(ctx context.Context) ([]*Telemetry, error) {
	resp := &TelemetryList{}
	if err := c.call(ctx, "ListDrones", &DroneRequest{AuthToken: c.token}, resp); err != nil {
		return nil, err
	}
	return resp.Drones, nil
}

func (c *Client) ResetSimulation(ctx context.Context) error {
	return c.call(ctx, "ResetSimulation", &DroneRequest{AuthToken: c.token}, &Void{})
}
