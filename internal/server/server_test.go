package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/anim"
	"github.com/zeusync/kartking/internal/core/camera"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/protocol"
	"github.com/zeusync/kartking/internal/core/sim"
	"github.com/zeusync/kartking/internal/core/vehicle"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	sim   *sim.Context
	sched *sim.Scheduler
	url   string
}

func newFixture(t *testing.T, maxClients int) *fixture {
	t.Helper()
	c := sim.NewContext(sim.Params{
		Tuning:      vehicle.DefaultTuning(),
		Start:       vehicle.DefaultStart(),
		Rig:         camera.DefaultRig(),
		InitialMode: camera.FirstPerson,
	})
	c.InstallVehicle(sim.VehicleAsset{Name: "kart", Scale: 1, Wheels: []anim.Clip{{Name: "wheel", Duration: time.Second}}})

	stats := sim.NewFrameStats()
	srv := NewServer(config.ServerConfig{
		ListenAddr:   "127.0.0.1:0",
		MaxClients:   maxClients,
		WriteTimeout: time.Second,
		FrameBuffer:  64,
	}, c, stats, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })

	return &fixture{
		srv:   srv,
		sim:   c,
		sched: sim.NewScheduler(c, srv, sim.WithStats(stats)),
		url:   "ws://" + srv.Addr() + "/ws",
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	hello := readType(t, conn, protocol.MessageTypeHello)
	require.NotEmpty(t, hello.ClientID)
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, typ protocol.MessageType) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestKeysDriveTheKart(t *testing.T) {
	f := newFixture(t, 0)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(protocol.NewKey("KeyW", true)))
	require.Eventually(t, func() bool { return f.sim.Input().Snapshot().Forward }, time.Second, time.Millisecond)

	f.sched.Step(epoch)
	msg := readType(t, conn, protocol.MessageTypeFrame)
	require.NotNil(t, msg.Frame)
	require.NotNil(t, msg.Frame.Vehicle)
	assert.Equal(t, uint64(1), msg.Frame.Seq)
	assert.Equal(t, "forward", msg.Frame.Vehicle.Throttle)
	assert.InDelta(t, 0.04, msg.Frame.Vehicle.Speed, 1e-12)
	assert.Equal(t, uint64(1), f.srv.GetStats().FramesSent)
}

func TestEventsAreForwarded(t *testing.T) {
	f := newFixture(t, 0)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(protocol.NewKey("KeyG", true)))
	msg := readType(t, conn, protocol.MessageTypeEvent)
	require.NotNil(t, msg.Event)
	assert.Equal(t, bus.TypeCameraToggled, msg.Event.Type)
	assert.Equal(t, "third_person", msg.Event.Data["mode"])
	assert.Equal(t, camera.ThirdPerson, f.sim.CameraMode())
}

func TestDisconnectReleasesHeldKeys(t *testing.T) {
	f := newFixture(t, 0)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(protocol.NewKey("KeyA", true)))
	require.NoError(t, conn.WriteJSON(protocol.NewKey("KeyW", true)))
	require.Eventually(t, func() bool { return f.sim.Input().Snapshot().Forward }, time.Second, time.Millisecond)
	assert.Equal(t, 1, int(f.srv.GetStats().ClientCount))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.srv.GetStats().ClientCount == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0.0, f.sim.Input().Snapshot().Steering())
	assert.False(t, f.sim.Input().Snapshot().Forward)
}

func TestInvalidMessageGetsErrorReply(t *testing.T) {
	f := newFixture(t, 0)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"key"}`)))
	msg := readType(t, conn, protocol.MessageTypeError)
	assert.Contains(t, msg.Error, "invalid message")

	// Unknown types and unbound keys are ignored.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "chat", "message": "hi"}))
	require.NoError(t, conn.WriteJSON(protocol.NewKey("KeyQ", true)))
	require.NoError(t, conn.WriteJSON(protocol.NewKey("Space", true)))
	require.Eventually(t, func() bool { return f.sim.Input().Snapshot().Brake }, time.Second, time.Millisecond)
}

func TestMaxClients(t *testing.T) {
	f := newFixture(t, 1)
	f.dial(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t, 0)
	f.sched.Step(epoch)
	f.sched.Step(epoch.Add(16 * time.Millisecond))

	resp, err := http.Get("http://" + f.srv.Addr() + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint64(2), body.Scheduler.Ticks)
	assert.True(t, body.Server.Running)
	assert.True(t, body.VehicleLoaded)
	assert.False(t, body.TerrainLoaded)
	assert.Equal(t, "first_person", body.CameraMode)

	health, err := http.Get("http://" + f.srv.Addr() + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	assert.ErrorIs(t, f.srv.Start(context.Background()), ErrServerAlreadyRunning)
	require.NoError(t, f.srv.Stop(context.Background()))
	assert.ErrorIs(t, f.srv.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, f.srv.Close())
	assert.ErrorIs(t, f.srv.Start(context.Background()), ErrServerClosed)

	// Rendering without clients is a no-op.
	assert.NoError(t, f.srv.Render(sim.Frame{}))
}

func TestFullQueueDropsFrames(t *testing.T) {
	s := newSession(nil, 1)
	assert.True(t, s.enqueue([]byte("a")))
	assert.False(t, s.enqueue([]byte("b")))
	assert.Equal(t, uint64(1), s.Dropped())
}
