package natslink

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetalkingdrone/internal/broker"
	"thetalkingdrone/internal/domain"
)

func startBridge(t *testing.T, reject string) (*nats.Conn, *[]Request, *sync.Mutex) {
	t.Helper()
	srv, err := broker.StartEmbedded("127.0.0.1", -1, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	var mu sync.Mutex
	var got []Request
	_, err = nc.Subscribe("drone.link.cf-1.*", func(msg *nats.Msg) {
		var req Request
		_ = json.Unmarshal(msg.Data, &req)
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		reply := Reply{OK: true}
		if msg.Subject == Subject("drone", "cf-1", reject) {
			reply = Reply{OK: false, Error: "motors locked"}
		}
		data, _ := json.Marshal(reply)
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	return nc, &got, &mu
}

func TestLinkRoundTrip(t *testing.T) {
	nc, got, mu := startBridge(t, "")
	link := New(nc, "", "cf-1", time.Second)
	ctx := context.Background()

	require.NoError(t, link.Connect(ctx))
	require.NoError(t, link.TakeOff(ctx, 0.3, 2*time.Second))
	require.NoError(t, link.GoTo(ctx, domain.Location{X: 1, Y: 2, Z: 0.5}, 90, time.Second))
	require.NoError(t, link.Land(ctx, 0, time.Second))
	require.NoError(t, link.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *got, 5)
	assert.Equal(t, 0.3, (*got)[1].Altitude)
	assert.Equal(t, int64(2000), (*got)[1].DurationMS)
	assert.Equal(t, 2.0, (*got)[2].Y)
	assert.Equal(t, 90.0, (*got)[2].Yaw)
	assert.Equal(t, "cf-1", (*got)[3].DroneID)
}

func TestLinkRejected(t *testing.T) {
	nc, _, _ := startBridge(t, CmdTakeOff)
	link := New(nc, "drone", "cf-1", time.Second)

	err := link.TakeOff(context.Background(), 1, time.Second)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "motors locked")
}

func TestLinkNoBridge(t *testing.T) {
	srv, err := broker.StartEmbedded("127.0.0.1", -1, zerolog.Nop())
	require.NoError(t, err)
	defer srv.Shutdown()
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	link := New(nc, "drone", "cf-9", 200*time.Millisecond)
	assert.Error(t, link.Connect(context.Background()))
}

func TestRequestKeepsZeroCoordinates(t *testing.T) {
	data, err := json.Marshal(Request{DroneID: "cf-1"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"altitude", "x", "y", "z", "yaw"} {
		assert.Contains(t, fields, key)
		assert.Equal(t, 0.0, fields[key], key)
	}
}
