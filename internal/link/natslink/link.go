// Package natslink forwards flight commands to a hardware bridge over NATS request/reply.
//
// Requests go to <prefix>.link.<drone_id>.<command> with a JSON body; the bridge answers
// {"ok":true} or {"ok":false,"error":"..."}.
package natslink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/flight"
)

const (
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdTakeOff    = "takeoff"
	CmdLand       = "land"
	CmdGoTo       = "goto"
)

var ErrRejected = errors.New("bridge rejected command")

type Request struct {
	DroneID    string  `json:"drone_id"`
	Altitude   float64 `json:"altitude"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Yaw        float64 `json:"yaw"`
	DurationMS int64   `json:"duration_ms,omitempty"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Link struct {
	nc      *nats.Conn
	prefix  string
	droneID string
	timeout time.Duration
}

func New(nc *nats.Conn, prefix, droneID string, timeout time.Duration) *Link {
	if prefix == "" {
		prefix = "drone"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Link{nc: nc, prefix: prefix, droneID: droneID, timeout: timeout}
}

func Subject(prefix, droneID, command string) string {
	return fmt.Sprintf("%s.link.%s.%s", prefix, droneID, command)
}

func (l *Link) Connect(ctx context.Context) error {
	return l.send(ctx, CmdConnect, Request{})
}

// Close tells the bridge to release the airframe. The shared connection stays open.
func (l *Link) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.send(ctx, CmdDisconnect, Request{})
}

func (l *Link) TakeOff(ctx context.Context, altitude float64, d time.Duration) error {
	return l.send(ctx, CmdTakeOff, Request{Altitude: altitude, DurationMS: d.Milliseconds()})
}

func (l *Link) Land(ctx context.Context, altitude float64, d time.Duration) error {
	return l.send(ctx, CmdLand, Request{Altitude: altitude, DurationMS: d.Milliseconds()})
}

func (l *Link) GoTo(ctx context.Context, target domain.Location, yaw float64, d time.Duration) error {
	return l.send(ctx, CmdGoTo, Request{X: target.X, Y: target.Y, Z: target.Z, Yaw: yaw, DurationMS: d.Milliseconds()})
}

func (l *Link) send(ctx context.Context, command string, req Request) error {
	req.DroneID = l.droneID
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	msg, err := l.nc.RequestWithContext(ctx, Subject(l.prefix, l.droneID, command), data)
	if err != nil {
		return fmt.Errorf("%s %s: %w", command, l.droneID, err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("%s %s: decode reply: %w", command, l.droneID, err)
	}
	if !reply.OK {
		return fmt.Errorf("%w: %s %s: %s", ErrRejected, command, l.droneID, reply.Error)
	}
	return nil
}

var _ flight.Link = (*Link)(nil)
