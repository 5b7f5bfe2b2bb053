package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/bootstrap"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
	"genstudio/internal/infra/geoip"
	appmw "genstudio/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("service", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to initialize")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error().Err(err).Msg("api: failed to release resources")
		}
	}()

	var countryLookup appmw.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(components.Service, components.Bus, logger)
	app.Heartbeat = cfg.StreamHeartbeat

	router := httpapi.NewRouter(httpapi.Options{
		App:                app,
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		CountryLookup:      countryLookup,
		StaticDir:          components.StaticDir,
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		w := components.NewWorker()
		g.Go(func() error {
			defer close(workerDone)
			return w.Run(gctx)
		})
	} else {
		close(workerDone)
		logger.Info().Msg("api: in-process worker disabled")
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		return server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		// Let the worker finish claimed jobs, then close the bus so open event
		// streams end before the server waits for idle connections.
		<-workerDone
		if err := components.Bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("api: failed to close event bus")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api: stopped with error")
		return
	}
	logger.Info().Msg("api: server stopped")
}
