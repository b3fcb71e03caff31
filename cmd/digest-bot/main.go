package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lueurxax/channel-digest/internal/app"
	"github.com/lueurxax/channel-digest/internal/platform/config"
	"github.com/lueurxax/channel-digest/internal/platform/logging"
	db "github.com/lueurxax/channel-digest/internal/storage"
)

const (
	modeScheduler = "scheduler"
	modeHTTP      = "http"
)

func main() {
	mode := flag.String("mode", modeScheduler, "Service mode (scheduler, http, ingest, filter, digest, deliver, cleanup, sweep)")
	once := flag.Bool("once", false, "Run the whole pipeline once and exit (scheduler mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application, err := app.New(ctx, cfg, database, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Close()

	if *mode == modeScheduler || *mode == modeHTTP {
		go func() {
			if err := application.StartHealthServer(ctx); err != nil {
				logger.Error().Err(err).Msg("health check server error")
			}
		}()
	}

	if err := runMode(ctx, application, *mode, *once); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func runMode(ctx context.Context, application *app.App, mode string, once bool) error {
	switch mode {
	case modeScheduler:
		if once {
			return application.RunOnce(ctx)
		}

		return application.RunScheduler(ctx)
	case modeHTTP:
		<-ctx.Done()
		return ctx.Err()
	case app.StageIngest, app.StageFilter, app.StageDigest, app.StageDeliver, app.StageCleanup, app.StageSweep:
		_, err := application.RunStage(ctx, mode)
		return err
	default:
		return fmt.Errorf("usage: %s --mode=[scheduler|http|ingest|filter|digest|deliver|cleanup|sweep]", os.Args[0])
	}
}
