// Package assets resolves the kart and track assets in the background and
// installs them into a simulation context as they become ready.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/sim"
	"github.com/zeusync/kartking/internal/core/terrain"
)

const eventSource = "assets"

// Loader reads descriptors from fsys. Vehicle and terrain load concurrently
// and each is installed as soon as it is ready; a failure in one leaves the
// other unaffected.
type Loader struct {
	fsys    fs.FS
	vehicle config.VehicleConfig
	terrain config.TerrainConfig
	target  *sim.Context
	logger  log.Log
}

func NewLoader(fsys fs.FS, vcfg config.VehicleConfig, tcfg config.TerrainConfig, target *sim.Context, logger log.Log) *Loader {
	if logger == nil {
		logger = log.Nop()
	}
	return &Loader{
		fsys:    fsys,
		vehicle: vcfg,
		terrain: tcfg,
		target:  target,
		logger:  logger.With(log.String("component", "assets")),
	}
}

// Load resolves both assets. It returns the joined load failures after every
// asset that could be loaded has been installed.
func (l *Loader) Load(ctx context.Context) error {
	var vehicleErr, terrainErr error

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vehicleErr = l.run(ctx, "vehicle", l.loadVehicle)
		return nil
	})
	g.Go(func() error {
		terrainErr = l.run(ctx, "terrain", l.loadTerrain)
		return nil
	})
	_ = g.Wait()

	return errors.Join(vehicleErr, terrainErr)
}

func (l *Loader) run(ctx context.Context, kind string, load func(context.Context) error) error {
	l.logger.Debug("Loading asset", log.String("kind", kind))
	err := load(ctx)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("load %s: %w", kind, err)
	l.logger.Error("Asset load failed", log.String("kind", kind), log.Error(err))
	if pubErr := l.target.Bus().Publish(bus.NewEvent(bus.TypeAssetFailed, eventSource, map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})); pubErr != nil {
		l.logger.Debug("Event handler failed", log.Error(pubErr))
	}
	return err
}

func (l *Loader) loadVehicle(ctx context.Context) error {
	asset := sim.VehicleAsset{
		Name:   l.vehicle.Name,
		Scale:  l.vehicle.Scale,
		Wheels: l.vehicle.WheelClips(),
	}
	if l.vehicle.File != "" {
		f, err := l.open(l.vehicle.File)
		if err != nil {
			return err
		}
		defer f.Close()
		d, err := DecodeVehicle(f)
		if err != nil {
			return err
		}
		asset = sim.VehicleAsset{Name: d.Name, Scale: d.Scale, Wheels: d.Wheels}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.target.InstallVehicle(asset)
	return nil
}

func (l *Loader) loadTerrain(ctx context.Context) error {
	asset := sim.TerrainAsset{
		Name:  l.terrain.Name,
		Scale: l.terrain.Scale,
		Clips: l.terrain.Clips,
	}

	switch l.terrain.Kind {
	case config.TerrainFlat:
		asset.Query = terrain.None{}
	case config.TerrainProcedural:
		q, err := terrain.NewProcedural(l.terrain.Procedural, mgl64.Vec3{})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedAsset, err)
		}
		asset.Query = q
	case config.TerrainHeightfield, config.TerrainMesh:
		f, err := l.open(l.terrain.File)
		if err != nil {
			return err
		}
		defer f.Close()
		d, err := DecodeTerrain(f)
		if err != nil {
			return err
		}
		if got := d.Kind(); got != l.terrain.Kind {
			return fmt.Errorf("%w: %s is a %s terrain, configured as %s", ErrMalformedAsset, l.terrain.File, got, l.terrain.Kind)
		}
		q, err := d.Query(l.terrain.RayOriginHeight)
		if err != nil {
			return err
		}
		asset = sim.TerrainAsset{Name: d.Name, Scale: d.Scale, Query: q, Clips: d.Clips}
	default:
		return fmt.Errorf("%w: unknown terrain kind %q", ErrMalformedAsset, l.terrain.Kind)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	l.target.InstallTerrain(asset)
	return nil
}

func (l *Loader) open(name string) (fs.File, error) {
	if l.fsys == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	f, err := l.fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	return f, err
}
