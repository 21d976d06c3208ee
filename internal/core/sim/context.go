// Package sim ties the per-tick pieces together: it owns the input tracker,
// the kart, the camera and the boost pads for one session and turns each tick
// into a Frame for the renderer.
package sim

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/kartking/internal/core/anim"
	"github.com/zeusync/kartking/internal/core/boost"
	"github.com/zeusync/kartking/internal/core/camera"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/input"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/terrain"
	"github.com/zeusync/kartking/internal/core/vehicle"
)

const eventSource = "sim"

// VehicleAsset is a loaded kart model.
type VehicleAsset struct {
	Name  string
	Scale float64
	// Wheels are the looping clips whose rate follows the travel direction.
	Wheels []anim.Clip
}

// TerrainAsset is a loaded track.
type TerrainAsset struct {
	Name  string
	Scale float64
	Query terrain.Query
	// Clips play continuously at the ambient rate once the track is loaded.
	Clips []anim.Clip
}

// Params configures a Context.
type Params struct {
	Tuning      vehicle.Tuning
	Start       vehicle.Pose
	Rig         camera.Rig
	InitialMode camera.Mode
	Bindings    input.Bindings
	Pads        []boost.Zone
	AmbientRate float64
	Bus         bus.EventBus
	Logger      log.Log
}

// Context is the state of one session. Input and camera toggles arrive from
// other goroutines; everything else is mutated only by Advance.
type Context struct {
	mu sync.Mutex

	input    *input.Tracker
	selector *camera.Selector
	follow   *camera.Controller
	boosts   *boost.Registry
	tuning   vehicle.Tuning
	start    vehicle.Pose

	kart         *vehicle.Model
	vehicleAsset *VehicleAsset
	ground       terrain.Query
	terrainAsset *TerrainAsset

	wheels      *anim.Mixer
	wheelSet    []*anim.Channel
	ambient     *anim.Mixer
	ambientRate float64

	cameraPose camera.Pose

	bus    bus.EventBus
	logger log.Log
}

func NewContext(p Params) *Context {
	logger := p.Logger
	if logger == nil {
		logger = log.Nop()
	}
	eb := p.Bus
	if eb == nil {
		eb = bus.New()
	}
	c := &Context{
		selector:    camera.NewSelector(p.InitialMode),
		follow:      camera.NewController(p.Rig),
		boosts:      boost.NewRegistry(p.Pads...),
		tuning:      p.Tuning,
		start:       p.Start,
		wheels:      anim.NewMixer(),
		ambient:     anim.NewMixer(),
		ambientRate: p.AmbientRate,
		cameraPose:  camera.DefaultPose(),
		bus:         eb,
		logger:      logger.With(log.String("component", "sim")),
	}
	c.input = input.NewTracker(p.Bindings, p.Tuning.TurnRate,
		input.WithToggleHook(func() { c.ToggleCamera() }),
		input.WithLogger(logger.With(log.String("component", "input"))),
	)
	return c
}

func (c *Context) Input() *input.Tracker { return c.input }

func (c *Context) Boosts() *boost.Registry { return c.boosts }

func (c *Context) Bus() bus.EventBus { return c.bus }

func (c *Context) CameraMode() camera.Mode { return c.selector.Mode() }

// ToggleCamera flips the follow mode right away, outside of any tick.
func (c *Context) ToggleCamera() camera.Mode {
	mode := c.selector.Toggle()
	c.logger.Info("Camera mode toggled", log.String("mode", mode.String()))
	c.publish(bus.Event{
		Type:      bus.TypeCameraToggled,
		Source:    eventSource,
		Timestamp: time.Now(),
		Data:      map[string]any{"mode": mode.String()},
	})
	return mode
}

// Vehicle returns the kart, or nil while its asset is not loaded.
func (c *Context) Vehicle() *vehicle.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kart
}

func (c *Context) VehicleLoaded() bool { return c.Vehicle() != nil }

func (c *Context) TerrainLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terrainAsset != nil
}

func (c *Context) CameraPose() camera.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraPose
}

// InstallVehicle spawns the kart at the start pose and places the camera
// behind it once. A second install replaces the kart and its wheel clips.
func (c *Context) InstallVehicle(asset VehicleAsset) {
	c.mu.Lock()
	c.kart = vehicle.New(c.tuning, c.start, c.ground, c.boosts,
		vehicle.WithLogger(c.logger))
	c.vehicleAsset = &asset
	c.wheels = anim.NewMixer()
	c.wheelSet = c.wheelSet[:0]
	for _, clip := range asset.Wheels {
		c.wheelSet = append(c.wheelSet, c.wheels.ClipAction(clip, 0))
	}
	if mode := c.selector.Mode(); mode.Follows() {
		c.cameraPose = c.follow.Follow(c.kart.Pose(), mode)
	}
	c.mu.Unlock()

	c.logger.Info("Vehicle installed", log.String("asset", asset.Name), log.Int("wheels", len(asset.Wheels)))
	c.publish(bus.NewEvent(bus.TypeVehicleLoaded, eventSource, map[string]any{"name": asset.Name}))
}

// InstallTerrain sets the ground the kart is sampled against and starts the
// track's ambient clips.
func (c *Context) InstallTerrain(asset TerrainAsset) {
	c.mu.Lock()
	c.ground = asset.Query
	c.terrainAsset = &asset
	if c.kart != nil {
		c.kart.SetGround(asset.Query)
	}
	for _, clip := range asset.Clips {
		c.ambient.ClipAction(clip, c.ambientRate)
	}
	c.mu.Unlock()

	c.logger.Info("Terrain installed", log.String("asset", asset.Name), log.Int("clips", len(asset.Clips)))
	c.publish(bus.NewEvent(bus.TypeTerrainLoaded, eventSource, map[string]any{"name": asset.Name}))
}

// Advance runs the simulation part of one tick and returns the frame to
// render. Without a kart only the ambient clips advance.
func (c *Context) Advance(now time.Time, dt time.Duration) Frame {
	var pending []bus.Event

	c.mu.Lock()
	mode := c.selector.Mode()
	frame := Frame{Timestamp: now, CameraMode: mode.String()}

	if c.kart != nil {
		pending = c.applyInput(now)

		res := c.kart.Update(now, dt)
		if res.BoostExpired {
			pending = append(pending, c.event(bus.TypeBoostExpired, now, nil))
		}
		if res.BoostActivated {
			pos := c.kart.Pose().Position
			pending = append(pending, c.event(bus.TypeBoostActivated, now, map[string]any{
				"x": pos.X(), "z": pos.Z(),
			}))
		}

		for _, ch := range c.wheelSet {
			ch.SetEffectiveTimeScale(res.WheelRate)
		}
		c.wheels.Update(dt)

		if mode.Follows() {
			c.cameraPose = c.follow.Follow(c.kart.Pose(), mode)
		}

		snap := c.kart.State().Snapshot()
		frame.Vehicle = &snap
	}
	if c.terrainAsset != nil {
		c.ambient.Update(dt)
	}

	frame.Camera = c.cameraPose
	frame.Meshes = c.meshes()
	frame.Animations = append(c.wheels.Snapshot(), c.ambient.Snapshot()...)
	c.mu.Unlock()

	c.publish(pending...)
	return frame
}

// applyInput turns the tracker snapshot into vehicle commands.
func (c *Context) applyInput(now time.Time) []bus.Event {
	in := c.input.Snapshot()

	throttle := vehicle.Idle
	switch {
	case in.Forward:
		throttle = vehicle.Forward
	case in.Backward:
		throttle = vehicle.Backward
	}
	c.kart.Apply(vehicle.Drive{Throttle: throttle})
	c.kart.Apply(vehicle.Steer{Rate: in.Steering()})

	if in.Brake {
		if c.kart.Apply(vehicle.Brake{}) {
			return []bus.Event{c.event(bus.TypeBrakeEngaged, now, nil)}
		}
	} else if c.kart.Apply(vehicle.ReleaseBrake{}) {
		return []bus.Event{c.event(bus.TypeBrakeReleased, now, nil)}
	}
	return nil
}

func (c *Context) meshes() []PosedMesh {
	var out []PosedMesh
	if c.terrainAsset != nil {
		out = append(out, PosedMesh{Name: c.terrainAsset.Name, Kind: MeshTerrain, Scale: c.terrainAsset.Scale})
	}
	if c.kart != nil && c.vehicleAsset != nil {
		pose := c.kart.Pose()
		out = append(out, PosedMesh{
			Name:     c.vehicleAsset.Name,
			Kind:     MeshVehicle,
			Position: pose.Position,
			Heading:  pose.Heading,
			Scale:    c.vehicleAsset.Scale,
		})
	}
	for _, z := range c.boosts.Zones() {
		x, zz := z.Center()
		out = append(out, PosedMesh{
			Kind:     MeshBoostPad,
			Position: mgl64.Vec3{x, 0, zz},
			Size:     mgl64.Vec3{z.MaxX - z.MinX, 0, z.MaxZ - z.MinZ},
			Scale:    1,
		})
	}
	return out
}

func (c *Context) event(typ string, now time.Time, data map[string]any) bus.Event {
	return bus.Event{Type: typ, Source: eventSource, Timestamp: now, Data: data}
}

func (c *Context) publish(events ...bus.Event) {
	if len(events) == 0 {
		return
	}
	if err := c.bus.PublishBatch(events...); err != nil {
		c.logger.Debug("Event handler failed", log.Error(err))
	}
}
