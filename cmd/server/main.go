package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; built-in defaults when empty")
	assetDir := flag.String("assets", ".", "directory that asset file paths are resolved against")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Provide().Fatal("Failed to load config",
				log.String("path", *configPath),
				log.Error(err))
		}
		cfg = loaded
	}

	app, err := injector.InitializeApp(cfg, os.DirFS(*assetDir))
	if err != nil {
		log.Provide().Fatal("Failed to initialize application", log.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("Starting kart server",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.String("assets", *assetDir))

	if err := app.Run(ctx); err != nil {
		app.Logger.Error("Server exited with error", log.Error(err))
		os.Exit(1)
	}
}
