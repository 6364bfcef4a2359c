package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/snipsync/internal/archive"
	"github.com/example/snipsync/internal/broadcast"
	"github.com/example/snipsync/internal/config"
	"github.com/example/snipsync/internal/httpapi"
	"github.com/example/snipsync/internal/observability"
	"github.com/example/snipsync/internal/storage"
	"github.com/example/snipsync/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := log.With().Str("app", cfg.AppName).Logger()
	observability.RegisterRuntimeCollectors()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := observability.Start(ctx, observability.Config{
		ServiceName:  cfg.AppName,
		MetricsAddr:  cfg.MetricsAddr,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer telemetryShutdown(context.Background())

	resources, err := config.NewResources(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize resources")
	}
	defer resources.Close()

	store := storage.NewSnippetStore(resources.Postgres)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare database schema")
	}

	registry := ws.NewConnectionRegistry()
	gateway, err := ws.NewGateway(registry, logger, ws.GatewayConfig{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize websocket gateway")
	}

	broadcaster := broadcast.NewRedisBroadcaster(resources.Redis, registry, logger)
	broadcaster.Start(ctx)

	archiveWorker := archive.NewWorker(store, resources.Object, cfg.ObjectBucket, cfg.ArchiveInterval, logger)
	archiveWorker.Start(ctx)

	apiHandler := httpapi.NewHandler(store, broadcaster, logger)

	mux := http.NewServeMux()
	mux.Handle("/snippets", apiHandler)
	mux.Handle("/snippets/", apiHandler)
	mux.Handle("/ws", gateway)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := resources.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("http server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	go healthcheckLoop(ctx, resources, logger, cfg.HealthcheckProbe)

	logger.Info().Msg("server dependencies initialized")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	registry.CloseAll()

	done := make(chan struct{})
	go func() {
		resources.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Error().Err(shutdownCtx.Err()).Msg("forced shutdown")
	}
}

func healthcheckLoop(ctx context.Context, resources *config.Resources, logger zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := resources.HealthCheck(context.Background()); err != nil {
				logger.Error().Err(err).Msg("dependency healthcheck failed")
			} else {
				logger.Debug().Msg("dependency healthcheck ok")
			}
		case <-ctx.Done():
			return
		}
	}
}
