// Package main is the entry point for the whalewatch analysis service.
// It imports whale-fund NAVs on a schedule, serves return and risk
// statistics over HTTP and publishes reports to object storage.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/di"
	analysishandlers "github.com/aristath/whalewatch/internal/modules/analysis/handlers"
	"github.com/aristath/whalewatch/internal/server"
	"github.com/aristath/whalewatch/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("version", version).Msg("Starting whalewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Seed the store on first start so the API has data before the first scheduled import
	if latest, err := container.NavsRepo.LatestImport(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to check import history")
	} else if latest == nil {
		if _, err := container.Importer.Import(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial NAV import failed")
		}
	}

	analysisHandler := analysishandlers.NewHandler(
		container.AnalysisService,
		container.NavsRepo,
		container.Importer,
		log,
	)

	srv := server.New(server.Config{
		Log:       log,
		NavsDB:    container.NavsDB,
		CacheDB:   container.CacheDB,
		Config:    cfg,
		EventBus:  container.EventBus,
		Analysis:  analysisHandler,
		Imports:   container.NavsRepo,
		Scheduler: container.Scheduler,
		Version:   version,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs before the databases close
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
