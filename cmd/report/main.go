// Command report files a new incident through the report wizard without a UI.
// The pin can come from explicit coordinates, an address search, or the
// device locator; when several are given the later source wins, in that
// order.
//
// Usage:
//
//	go run ./cmd/report -type Medical -pin 19.07,72.87
//	go run ./cmd/report -type Fire -address "Hill Road, Bandra" -search -image smoke.jpg
//	go run ./cmd/report -type Accident -gps -description "two cars"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/couchcryptid/resq-grid/internal/adapter/backend"
	"github.com/couchcryptid/resq-grid/internal/adapter/device"
	"github.com/couchcryptid/resq-grid/internal/adapter/geocache"
	"github.com/couchcryptid/resq-grid/internal/adapter/google"
	"github.com/couchcryptid/resq-grid/internal/adapter/mapbox"
	"github.com/couchcryptid/resq-grid/internal/adapter/nominatim"
	"github.com/couchcryptid/resq-grid/internal/config"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/livesync"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/couchcryptid/resq-grid/internal/wizard"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	reportType := flag.String("type", domain.TypeFire, "incident type: Fire, Medical, Accident, Crime, or a custom label")
	pin := flag.String("pin", "", "pin position as lat,lng")
	address := flag.String("address", "", "address text sent as the incident location")
	search := flag.Bool("search", false, "forward geocode -address and pin the best match")
	gps := flag.Bool("gps", false, "pin the device's current position")
	image := flag.String("image", "", "path to a photo to attach as evidence")
	description := flag.String("description", "", "optional free-text description")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	geocoder, err := newGeocoder(cfg, logger, metrics)
	if err != nil {
		return err
	}
	locator, err := newLocator(cfg, logger)
	if err != nil {
		return err
	}

	client := backend.NewClient(cfg.BackendURL, cfg.MediaBaseURL, cfg.BackendTimeout, logger)
	repo := livesync.NewRepository(client, nil, clock, logger, metrics)

	w := wizard.New(wizard.Deps{
		Geocoder:  geocoder,
		Locator:   locator,
		Submitter: client,
		Refresher: repo,
		Notifier:  notify.NewLogNotifier(logger),
		MapView:   logMap{logger: logger},
		Logger:    logger,
		Metrics:   metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.SelectType(resolveType(*reportType))
	if *address != "" {
		w.SetAddress(*address)
	}
	if *description != "" {
		w.SetDescription(*description)
	}
	if *image != "" {
		ev, err := loadEvidence(*image)
		if err != nil {
			return err
		}
		w.AttachEvidence(ev)
	}

	if *pin != "" {
		pos, err := device.ParsePosition(*pin)
		if err != nil {
			return fmt.Errorf("-pin: %w", err)
		}
		w.PlacePin(ctx, pos)
	}
	// Search and GPS failures are already reported; the submit below refuses
	// to go out without a pin.
	if *search {
		if err := w.SearchAddress(ctx); err != nil {
			logger.Warn("address search failed", "error", err)
		}
	}
	if *gps {
		if err := w.UseDeviceLocation(ctx); err != nil {
			logger.Warn("device location failed", "error", err)
		}
	}

	// Let the address autofill from the final pin before submitting.
	w.Wait()

	pending := w.Report()
	logger.Info("submitting report",
		"type", pending.Type,
		"severity", pending.Severity,
		"location", pending.Address,
	)
	if err := w.Submit(ctx); err != nil {
		return err
	}

	snap := repo.Snapshot()
	logger.Info("dashboard refreshed", "online", snap.Online, "active_alerts", len(snap.Incidents))
	return nil
}

// resolveType accepts either a full label or a bare kind name like "medical".
func resolveType(s string) string {
	for _, t := range domain.ReportTypes {
		if s == t || strings.EqualFold(s, domain.KindName(t)) {
			return t
		}
	}
	return s
}

func loadEvidence(path string) (*domain.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	return &domain.Evidence{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.Geocoder, error) {
	var inner domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.ProviderMapbox:
		inner = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, metrics, logger)
	case config.ProviderGoogle:
		client, err := google.NewClient(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout, metrics, logger)
		if err != nil {
			return nil, err
		}
		inner = client
	default:
		inner = nominatim.NewClient(cfg.NominatimURL, cfg.GeocoderUserAgent, cfg.GeocodeTimeout, metrics, logger)
	}

	logger.Debug("geocoder configured",
		"provider", cfg.GeocoderProvider,
		"cache_size", cfg.GeocodeCacheSize,
		"cache_dir", cfg.GeocodeCacheDir,
		"timeout", cfg.GeocodeTimeout,
	)
	return geocache.NewCachedGeocoder(inner, cfg.GeocodeCacheSize, metrics,
		geocache.WithDiskDir(cfg.GeocodeCacheDir),
		geocache.WithLogger(logger),
	), nil
}

func newLocator(cfg *config.Config, logger *slog.Logger) (wizard.Locator, error) {
	switch cfg.DeviceLocator {
	case config.LocatorIPAPI:
		return device.NewIPAPI(cfg.GeocodeTimeout, logger), nil
	case config.LocatorNone:
		return device.None{}, nil
	default:
		loc, err := device.ParseFixed(cfg.DevicePosition)
		if err != nil {
			return nil, fmt.Errorf("DEVICE_POSITION: %w", err)
		}
		return loc, nil
	}
}

// logMap stands in for the map view.
type logMap struct {
	logger *slog.Logger
}

func (m logMap) Recenter(pos domain.Position, zoom int) {
	m.logger.Info("map recentered", "position", pos.String(), "zoom", zoom)
}
