// Command verify marks one incident verified.
//
// Usage:
//
//	go run ./cmd/verify -id 42
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/resq-grid/internal/adapter/backend"
	"github.com/couchcryptid/resq-grid/internal/config"
	"github.com/couchcryptid/resq-grid/internal/dashboard"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("verify failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	id := flag.String("id", "", "incident id to verify")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -id")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := backend.NewClient(cfg.BackendURL, cfg.MediaBaseURL, cfg.BackendTimeout, logger)
	verifier := dashboard.NewVerifier(client, notify.NewLogNotifier(logger), cfg.SyncInterval, logger, metrics)

	verifier.Verify(context.Background(), domain.IncidentID(*id))
	verifier.Wait()

	logger.Info("verification requested", "incident_id", *id, "visible_within", verifier.VisibleWithin())
	return nil
}
