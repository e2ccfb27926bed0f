package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"council-game-demo/client/bridge"
	"council-game-demo/client/game/archive"
	"council-game-demo/client/game/session"
	"council-game-demo/client/game/store"
	"council-game-demo/client/pkg/config"
	"council-game-demo/client/pkg/logger"
	"council-game-demo/client/shared/observability"
	"council-game-demo/client/voice"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := config.Get()

	// Set up logging
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format == "json"
	appLogger := logger.New(logConfig)
	logger.SetGlobal(appLogger)

	// Observability pipeline
	shutdownTracing := observability.SetupTracing("council-client")
	defer shutdownTracing()
	mp := observability.SetupPrometheusMetrics()
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			appLogger.Warn("failed to shut down meter provider", "error", err.Error())
		}
	}()

	// Session-id persistence
	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		st = store.NewRedisStore(cfg.Store.RedisAddr, cfg.Store.RedisDB)
	default:
		st = store.NewFileStore(cfg.Store.FilePath)
	}

	// Optional transcript archive
	var archiver session.Archiver
	if cfg.Archive.Enabled {
		repo, err := archive.Open(cfg.Archive.DSN, appLogger)
		if err != nil {
			appLogger.Warn("archive unavailable, continuing without it", "error", err.Error())
		} else {
			archiver = repo
			appLogger.Info("transcript archive enabled")
		}
	}

	controller := session.New(cfg, st, archiver, appLogger)

	// Optional TTS collaborator
	if cfg.Voice.Enabled {
		speaker := voice.NewSpeaker(cfg, voice.NullPlayer{}, appLogger)
		speaker.Attach(controller)
		appLogger.Info("voice collaborator enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reattach to a previous session if one survives
	if recovered, err := controller.RecoverSession(ctx); err != nil {
		appLogger.Warn("session recovery failed", "error", err.Error())
	} else if recovered {
		appLogger.Info("resumed previous session")
	}

	if !cfg.Bridge.Enabled {
		appLogger.Info("bridge disabled, controller running headless")
		<-ctx.Done()
		return
	}

	server := bridge.New(cfg, controller, appLogger)
	if err := server.Run(ctx); err != nil {
		appLogger.Error("bridge server failed", "error", err.Error())
		os.Exit(1)
	}
	appLogger.Info("shutdown complete")
}
