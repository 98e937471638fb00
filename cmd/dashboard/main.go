package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/resq-grid/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/resq-grid/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/resq-grid/internal/adapter/kafka"
	"github.com/couchcryptid/resq-grid/internal/config"
	"github.com/couchcryptid/resq-grid/internal/dashboard"
	"github.com/couchcryptid/resq-grid/internal/livesync"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := backend.NewClient(cfg.BackendURL, cfg.MediaBaseURL, cfg.BackendTimeout, logger)

	// Snapshot fan-out is feature-flagged via KAFKA_ENABLED.
	var sink livesync.SnapshotSink
	var writer *kafkaadapter.SnapshotWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewSnapshotWriter(cfg, logger)
		sink = writer
		logger.Info("snapshot fan-out enabled", "topic", cfg.KafkaSnapshotTopic, "brokers", cfg.KafkaBrokers)
	}

	repo := livesync.NewRepository(client, sink, clock, logger, metrics)
	loop := livesync.NewLoop(repo, cfg.SyncInterval, clock, logger, metrics)
	verifier := dashboard.NewVerifier(client, notify.NewLogNotifier(logger), cfg.SyncInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, repo, repo, client, verifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Log connectivity transitions as they are applied.
	updates, unsubscribe := repo.Subscribe()
	go watchStatus(updates, logger)

	// Start sync loop.
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil {
			logger.Error("sync loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-loopDone
	unsubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	verifier.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func watchStatus(updates <-chan livesync.Snapshot, logger *slog.Logger) {
	var seen, online bool
	for snap := range updates {
		if !seen || snap.Online != online {
			if snap.Online {
				logger.Info("backend online", "active_alerts", len(snap.Incidents))
			} else {
				logger.Warn("backend offline, showing last known incidents", "active_alerts", len(snap.Incidents))
			}
		}
		seen, online = true, snap.Online
	}
}
