package assets

import (
	"context"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/sim"
	"github.com/zeusync/kartking/internal/core/terrain"
)

const kartYAML = `
name: go-kart
scale: 2
wheels:
  - {name: wheel_fl, duration: 1s}
  - {name: wheel_fr, duration: 1s}
  - {name: wheel_rl, duration: 1s}
  - {name: wheel_rr, duration: 1s}
`

const rampYAML = `
name: ramp
heightfield:
  width: 2
  depth: 2
  heights: [0, 0, 4, 4]
  scale: [10, 1, 10]
clips:
  - {name: windmill, duration: 4s}
`

const meshYAML = `
name: slab
mesh:
  triangles:
    - [[-5, 2, -5], [5, 2, -5], [5, 2, 5]]
    - [[-5, 2, -5], [5, 2, 5], [-5, 2, 5]]
`

func newContext() *sim.Context {
	return sim.NewContext(sim.Params{Tuning: config.Default().Vehicle.Tuning, AmbientRate: 0.2})
}

func record(t *testing.T, eb bus.EventBus) func() []bus.Event {
	t.Helper()
	var mu sync.Mutex
	var seen []bus.Event
	_, err := eb.Subscribe(bus.Wildcard, func(e bus.Event) error {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return func() []bus.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]bus.Event(nil), seen...)
	}
}

func TestLoadBuiltInAssets(t *testing.T) {
	cfg := config.Default()
	c := newContext()
	events := record(t, c.Bus())

	require.NoError(t, NewLoader(nil, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background()))
	assert.True(t, c.VehicleLoaded())
	assert.True(t, c.TerrainLoaded())

	types := map[string]bool{}
	for _, e := range events() {
		types[e.Type] = true
	}
	assert.True(t, types[bus.TypeVehicleLoaded])
	assert.True(t, types[bus.TypeTerrainLoaded])

	s := sim.NewScheduler(c, nil)
	f := s.Step(time.Now())
	assert.Len(t, f.Animations, 4)
}

func TestLoadDescriptorsFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"kart.yaml": {Data: []byte(kartYAML)},
		"ramp.yaml": {Data: []byte(rampYAML)},
	}
	cfg := config.Default()
	cfg.Vehicle.File = "kart.yaml"
	cfg.Terrain.Kind = config.TerrainHeightfield
	cfg.Terrain.File = "ramp.yaml"

	c := newContext()
	require.NoError(t, NewLoader(fsys, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background()))

	f := sim.NewScheduler(c, nil).Step(time.Now())
	require.Len(t, f.Meshes, 2)
	assert.Equal(t, "ramp", f.Meshes[0].Name)
	assert.Equal(t, "go-kart", f.Meshes[1].Name)
	assert.Equal(t, 2.0, f.Meshes[1].Scale)
	require.Len(t, f.Animations, 5)
	assert.Equal(t, "windmill", f.Animations[4].Name)
	assert.Equal(t, 0.2, f.Animations[4].TimeScale)
}

func TestMissingVehicleLeavesItInactive(t *testing.T) {
	cfg := config.Default()
	cfg.Vehicle.File = "nope.yaml"
	c := newContext()
	events := record(t, c.Bus())

	err := NewLoader(fstest.MapFS{}, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background())
	require.ErrorIs(t, err, ErrAssetNotFound)
	assert.False(t, c.VehicleLoaded())
	assert.True(t, c.TerrainLoaded())

	var failed []bus.Event
	for _, e := range events() {
		if e.Type == bus.TypeAssetFailed {
			failed = append(failed, e)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "vehicle", failed[0].Data["kind"])

	f := sim.NewScheduler(c, nil).Step(time.Now())
	assert.Nil(t, f.Vehicle)
}

func TestMalformedTerrain(t *testing.T) {
	fsys := fstest.MapFS{"bad.yaml": {Data: []byte("name: bad\n")}}
	cfg := config.Default()
	cfg.Terrain.Kind = config.TerrainMesh
	cfg.Terrain.File = "bad.yaml"
	c := newContext()

	err := NewLoader(fsys, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background())
	require.ErrorIs(t, err, ErrMalformedAsset)
	assert.False(t, c.TerrainLoaded())
	assert.True(t, c.VehicleLoaded())
}

func TestCancelledLoadInstallsNothing(t *testing.T) {
	cfg := config.Default()
	c := newContext()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLoader(nil, cfg.Vehicle, cfg.Terrain, c, nil).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.VehicleLoaded())
	assert.False(t, c.TerrainLoaded())
}

func TestDescriptorQueries(t *testing.T) {
	d, err := DecodeTerrain(strings.NewReader(meshYAML))
	require.NoError(t, err)
	q, err := d.Query(terrain.DefaultRayOriginHeight)
	require.NoError(t, err)

	h, ok := q.HeightAt(1, -2)
	require.True(t, ok)
	assert.InDelta(t, 2.0, h, 1e-9)
	_, ok = q.HeightAt(50, 50)
	assert.False(t, ok)

	d, err = DecodeTerrain(strings.NewReader(rampYAML))
	require.NoError(t, err)
	q, err = d.Query(0)
	require.NoError(t, err)
	h, ok = q.HeightAt(0, 0)
	require.True(t, ok)
	assert.InDelta(t, 2.0, h, 1e-9)

	_, err = DecodeVehicle(strings.NewReader("scale: 2\n"))
	assert.ErrorIs(t, err, ErrMalformedAsset)
	_, err = DecodeVehicle(strings.NewReader("name: x\nhorsepower: 9\n"))
	assert.ErrorIs(t, err, ErrMalformedAsset)
}

func TestTerrainKindMustMatchDescriptor(t *testing.T) {
	fsys := fstest.MapFS{
		"ramp.yaml": {Data: []byte(rampYAML)},
		"slab.yaml": {Data: []byte(meshYAML)},
	}
	cases := map[string]struct {
		kind string
		file string
	}{
		"heightfield configured as mesh": {kind: config.TerrainMesh, file: "ramp.yaml"},
		"mesh configured as heightfield": {kind: config.TerrainHeightfield, file: "slab.yaml"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Terrain.Kind = tc.kind
			cfg.Terrain.File = tc.file
			c := newContext()

			err := NewLoader(fsys, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background())
			require.ErrorIs(t, err, ErrMalformedAsset)
			assert.False(t, c.TerrainLoaded())
		})
	}
}

func TestNonFiniteHeightfieldIsMalformed(t *testing.T) {
	const nanOrigin = `
name: broken
heightfield:
  width: 2
  depth: 2
  heights: [0, 0, 4, 4]
  origin: [.nan, 0, 0]
`
	fsys := fstest.MapFS{"broken.yaml": {Data: []byte(nanOrigin)}}
	cfg := config.Default()
	cfg.Terrain.Kind = config.TerrainHeightfield
	cfg.Terrain.File = "broken.yaml"
	c := newContext()

	err := NewLoader(fsys, cfg.Vehicle, cfg.Terrain, c, nil).Load(context.Background())
	require.ErrorIs(t, err, ErrMalformedAsset)
	assert.False(t, c.TerrainLoaded())

	// The kart keeps running on the default elevation.
	assert.NotPanics(t, func() { sim.NewScheduler(c, nil).Step(time.Unix(0, 0)) })
}
