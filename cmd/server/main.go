package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"siav-svr/internal/api"
	"siav-svr/internal/cache"
	"siav-svr/internal/config"
	"siav-svr/internal/ingest"
	"siav-svr/internal/observability"
	"siav-svr/internal/report"
	"siav-svr/internal/stats"
	"siav-svr/internal/store"
	"siav-svr/internal/transport"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger()
	logger.Info("Starting siav-svr...", "http", cfg.HTTPPort, "broker", cfg.MQTTBroker)

	// Inicializar Redis antes de todo lo demás
	st, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("Redis init failed", "error", err)
		return
	}

	ch := cache.New(cfg.StatsTTL, cfg.RecentTTL)
	handler := ingest.NewHandler(st, ch, logger)

	consumer := transport.NewMQTTConsumer(cfg, handler.HandleMessage, logger)
	if err := consumer.Start(); err != nil {
		logger.Error("MQTT connect failed", "error", err)
		return
	}

	statsSvc := stats.NewService(st, ch, logger)
	reporter := report.NewGenerator(st, logger)
	apiSrv := api.NewServer(statsSvc, reporter, consumer, st, logger)

	go observability.StartMetricsServer(cfg.MetricsPort)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: apiSrv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down gracefully...")
		consumer.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", "error", err)
	}
}
