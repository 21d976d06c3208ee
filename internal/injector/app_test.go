package injector

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/server"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Server.ListenAddr = "127.0.0.1:0"
	return cfg
}

func TestAppRunsUntilCancelled(t *testing.T) {
	app, err := InitializeApp(testConfig(), fstest.MapFS{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Sim.VehicleLoaded() && app.Sim.TerrainLoaded() && app.Scheduler.Stats().Ticks > 2
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + app.Server.Addr() + "/stats")
	require.NoError(t, err)
	var body server.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.True(t, body.VehicleLoaded)
	assert.True(t, body.Server.Running)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.False(t, app.Scheduler.Running())
	assert.False(t, app.Server.GetStats().Running)
}

func TestAppSurvivesMissingAssets(t *testing.T) {
	cfg := testConfig()
	cfg.Terrain.Kind = config.TerrainMesh
	cfg.Terrain.File = "track.yaml"

	app, err := InitializeApp(cfg, fstest.MapFS{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Sim.VehicleLoaded() && app.Scheduler.Stats().Ticks > 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, app.Sim.TerrainLoaded())

	cancel()
	assert.NoError(t, <-done)
}

func TestInitializeAppRejectsBadBindings(t *testing.T) {
	cfg := testConfig()
	cfg.Keys = map[string]string{"KeyX": "jump"}
	_, err := InitializeApp(cfg, fstest.MapFS{})
	assert.Error(t, err)
}
