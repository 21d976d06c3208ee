package injector

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/assets"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/sim"
	"github.com/zeusync/kartking/internal/server"
)

const shutdownTimeout = 5 * time.Second

// App is the assembled process: the frame loop renders into the server while
// assets load in the background.
type App struct {
	Config    config.Config
	Sim       *sim.Context
	Scheduler *sim.Scheduler
	Server    *server.Server
	Loader    *assets.Loader
	Logger    log.Log
}

func NewApp(cfg config.Config, simCtx *sim.Context, scheduler *sim.Scheduler, srv *server.Server, loader *assets.Loader, logger log.Log) *App {
	return &App{
		Config:    cfg,
		Sim:       simCtx,
		Scheduler: scheduler,
		Server:    srv,
		Loader:    loader,
		Logger:    logger.With(log.String("component", "app")),
	}
}

// Run serves until ctx is done. Asset failures are logged and leave the
// simulation running without the missing asset.
func (a *App) Run(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.Loader.Load(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("Asset loading incomplete", log.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Scheduler.Stop()

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Server.Stop(stopCtx); err != nil && !errors.Is(err, server.ErrServerNotRunning) {
			return err
		}
		return nil
	})

	err := g.Wait()
	a.Logger.Info("Application stopped", log.Uint64("ticks", a.Scheduler.Stats().Ticks))
	return err
}
