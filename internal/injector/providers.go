package injector

import (
	"io/fs"

	"github.com/google/wire"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/assets"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/sim"
	"github.com/zeusync/kartking/internal/server"
)

// ProviderSet builds an App from a validated Config and an asset filesystem.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideSimContext,
	ProvideFrameStats,
	ProvideServer,
	ProvideScheduler,
	ProvideLoader,
	NewApp,
)

// ProvideLogger builds the process logger at the configured level.
func ProvideLogger(cfg config.Config) log.Log {
	return log.New(cfg.LogLevel())
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideSimContext(cfg config.Config, eb bus.EventBus, logger log.Log) (*sim.Context, error) {
	bindings, err := cfg.Bindings()
	if err != nil {
		return nil, err
	}
	return sim.NewContext(sim.Params{
		Tuning:      cfg.Vehicle.Tuning,
		Start:       cfg.Vehicle.StartPose(),
		Rig:         cfg.Camera.Rig,
		InitialMode: cfg.Camera.InitialMode,
		Bindings:    bindings,
		Pads:        cfg.Pads(),
		AmbientRate: cfg.AmbientAnimationRate,
		Bus:         eb,
		Logger:      logger,
	}), nil
}

func ProvideFrameStats() *sim.FrameStats {
	return sim.NewFrameStats()
}

func ProvideServer(cfg config.Config, simCtx *sim.Context, stats *sim.FrameStats, logger log.Log) *server.Server {
	return server.NewServer(cfg.Server, simCtx, stats, logger)
}

// ProvideScheduler renders every tick through the server.
func ProvideScheduler(cfg config.Config, simCtx *sim.Context, srv *server.Server, stats *sim.FrameStats, logger log.Log) *sim.Scheduler {
	return sim.NewScheduler(simCtx, srv,
		sim.WithRefreshRate(cfg.Scheduler.RefreshHz),
		sim.WithSlowTick(cfg.Scheduler.SlowTick),
		sim.WithStats(stats),
		sim.WithSchedulerLogger(logger),
	)
}

func ProvideLoader(cfg config.Config, fsys fs.FS, simCtx *sim.Context, logger log.Log) *assets.Loader {
	return assets.NewLoader(fsys, cfg.Vehicle, cfg.Terrain, simCtx, logger)
}
