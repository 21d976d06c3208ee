// Package config loads the server configuration from YAML on top of built-in
// defaults that reproduce the demo track.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/kartking/internal/core/anim"
	"github.com/zeusync/kartking/internal/core/boost"
	"github.com/zeusync/kartking/internal/core/camera"
	"github.com/zeusync/kartking/internal/core/input"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/terrain"
	"github.com/zeusync/kartking/internal/core/vehicle"
)

type Config struct {
	Log                  LogConfig         `yaml:"log"`
	Server               ServerConfig      `yaml:"server"`
	Scheduler            SchedulerConfig   `yaml:"scheduler"`
	Vehicle              VehicleConfig     `yaml:"vehicle"`
	Camera               CameraConfig      `yaml:"camera"`
	BoostPads            []boost.PadConfig `yaml:"boost_pads"`
	Terrain              TerrainConfig     `yaml:"terrain"`
	Keys                 map[string]string `yaml:"keys"`
	AmbientAnimationRate float64           `yaml:"ambient_animation_rate"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	MaxClients   int           `yaml:"max_clients"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// FrameBuffer is the per-client queue length; frames beyond it are dropped.
	FrameBuffer int `yaml:"frame_buffer"`
}

type SchedulerConfig struct {
	RefreshHz float64       `yaml:"refresh_hz"`
	SlowTick  time.Duration `yaml:"slow_tick"`
}

type VehicleConfig struct {
	vehicle.Tuning `yaml:",inline"`

	Name          string        `yaml:"name"`
	StartPosition mgl64.Vec3    `yaml:"start_position"`
	StartHeading  float64       `yaml:"start_heading"`
	Scale         float64       `yaml:"scale"`
	WheelChannels []string      `yaml:"wheel_channels"`
	WheelClip     time.Duration `yaml:"wheel_clip"`

	// File, when set, is a vehicle descriptor that replaces Name, Scale and
	// the wheel clips.
	File string `yaml:"file"`
}

func (v VehicleConfig) StartPose() vehicle.Pose {
	return vehicle.Pose{Position: v.StartPosition, Heading: v.StartHeading}
}

// WheelClips builds the wheel clips named in WheelChannels.
func (v VehicleConfig) WheelClips() []anim.Clip {
	clips := make([]anim.Clip, 0, len(v.WheelChannels))
	for _, name := range v.WheelChannels {
		clips = append(clips, anim.Clip{Name: name, Duration: v.WheelClip})
	}
	return clips
}

type CameraConfig struct {
	InitialMode camera.Mode `yaml:"initial_mode"`

	camera.Rig `yaml:",inline"`
}

// Terrain kinds.
const (
	TerrainFlat        = "flat"
	TerrainProcedural  = "procedural"
	TerrainHeightfield = "heightfield"
	TerrainMesh        = "mesh"
)

type TerrainConfig struct {
	Kind            string                 `yaml:"kind"`
	Name            string                 `yaml:"name"`
	RayOriginHeight float64                `yaml:"ray_origin_height"`
	Scale           float64                `yaml:"scale"`
	File            string                 `yaml:"file"`
	Procedural      terrain.GenerateParams `yaml:"procedural"`
	Clips           []anim.Clip            `yaml:"clips"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			MaxClients:   32,
			WriteTimeout: 5 * time.Second,
			FrameBuffer:  8,
		},
		Scheduler: SchedulerConfig{
			RefreshHz: 60,
			SlowTick:  8 * time.Millisecond,
		},
		Vehicle: VehicleConfig{
			Tuning:        vehicle.DefaultTuning(),
			Name:          "kart",
			StartPosition: vehicle.DefaultStart().Position,
			StartHeading:  vehicle.DefaultStart().Heading,
			Scale:         2,
			WheelChannels: []string{"wheel_front_left", "wheel_front_right", "wheel_rear_left", "wheel_rear_right"},
			WheelClip:     time.Second,
		},
		Camera: CameraConfig{
			InitialMode: camera.FirstPerson,
			Rig:         camera.DefaultRig(),
		},
		BoostPads: []boost.PadConfig{{X: -10, Z: 0, Width: 5, Depth: 40}},
		Terrain: TerrainConfig{
			Kind:            TerrainFlat,
			Name:            "track",
			RayOriginHeight: terrain.DefaultRayOriginHeight,
			Scale:           1,
			Procedural:      terrain.DefaultGenerateParams(),
		},
		Keys: map[string]string{
			"KeyW":  input.ActionForward.String(),
			"KeyS":  input.ActionBackward.String(),
			"KeyA":  input.ActionTurnLeft.String(),
			"KeyD":  input.ActionTurnRight.String(),
			"Space": input.ActionBrake.String(),
			"KeyG":  input.ActionCameraToggle.String(),
		},
		AmbientAnimationRate: 0.2,
	}
}

// Load decodes a YAML document over the defaults. Keys listed in the
// document are merged into the default bindings.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.FrameBuffer <= 0 {
		errs = append(errs, fmt.Errorf("server.frame_buffer must be positive, got %d", c.Server.FrameBuffer))
	}
	if c.Server.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("server.max_clients must not be negative, got %d", c.Server.MaxClients))
	}
	if !(c.Scheduler.RefreshHz > 0) {
		errs = append(errs, fmt.Errorf("scheduler.refresh_hz must be positive, got %v", c.Scheduler.RefreshHz))
	}
	if err := c.Vehicle.Tuning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vehicle: %w", err))
	}
	for i, p := range c.BoostPads {
		if !(p.Width > 0) || !(p.Depth > 0) {
			errs = append(errs, fmt.Errorf("boost_pads[%d]: width and depth must be positive", i))
		}
	}
	switch c.Terrain.Kind {
	case TerrainFlat, TerrainProcedural:
	case TerrainHeightfield, TerrainMesh:
		if c.Terrain.File == "" {
			errs = append(errs, fmt.Errorf("terrain.file is required for %s terrain", c.Terrain.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown terrain.kind %q", c.Terrain.Kind))
	}
	if _, err := c.Bindings(); err != nil {
		errs = append(errs, err)
	}
	if math.IsNaN(c.AmbientAnimationRate) || math.IsInf(c.AmbientAnimationRate, 0) {
		errs = append(errs, errors.New("ambient_animation_rate must be finite"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (c Config) Bindings() (input.Bindings, error) {
	return input.ParseBindings(c.Keys)
}

func (c Config) Pads() []boost.Zone {
	zones := make([]boost.Zone, 0, len(c.BoostPads))
	for _, p := range c.BoostPads {
		zones = append(zones, p.Zone())
	}
	return zones
}

func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return lvl
}
