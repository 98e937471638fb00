package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Geocoding providers.
const (
	ProviderNominatim = "nominatim"
	ProviderMapbox    = "mapbox"
	ProviderGoogle    = "google"
)

// Device locators.
const (
	LocatorFixed = "fixed"
	LocatorIPAPI = "ipapi"
	LocatorNone  = "none"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	BackendURL     string
	MediaBaseURL   string
	BackendTimeout time.Duration
	SyncInterval   time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Geocoding configuration.
	GeocoderProvider  string
	NominatimURL      string
	GeocoderUserAgent string
	MapboxToken       string
	GoogleMapsAPIKey  string
	GeocodeTimeout    time.Duration
	GeocodeCacheSize  int
	GeocodeCacheDir   string

	// Device location configuration.
	DeviceLocator  string
	DevicePosition string

	// Snapshot fan-out configuration.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	syncInterval, err := parsePositiveDuration("SYNC_INTERVAL", "2s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parsePositiveDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	backendURL := strings.TrimRight(sharedcfg.EnvOrDefault("BACKEND_URL", "http://127.0.0.1:5005"), "/")

	cfg := &Config{
		BackendURL:     backendURL,
		MediaBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("MEDIA_BASE_URL", backendURL+"/uploads"), "/"),
		BackendTimeout: backendTimeout,
		SyncInterval:   syncInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GeocoderProvider:  strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", ProviderNominatim)),
		NominatimURL:      strings.TrimRight(sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "resq-grid/1.0"),
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeTimeout:    geocodeTimeout,
		GeocodeCacheSize:  parseGeocodeCacheSize(),
		GeocodeCacheDir:   os.Getenv("GEOCODE_CACHE_DIR"),

		DeviceLocator:  strings.ToLower(sharedcfg.EnvOrDefault("DEVICE_LOCATOR", LocatorFixed)),
		DevicePosition: os.Getenv("DEVICE_POSITION"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "resq-incident-snapshots"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return errors.New("BACKEND_URL must be an http(s) URL")
	}

	switch c.GeocoderProvider {
	case ProviderNominatim:
	case ProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	case ProviderGoogle:
		if c.GoogleMapsAPIKey == "" {
			return errors.New("GEOCODER_PROVIDER is google but GOOGLE_MAPS_API_KEY is not set")
		}
	default:
		return fmt.Errorf("unknown GEOCODER_PROVIDER %q", c.GeocoderProvider)
	}

	switch c.DeviceLocator {
	case LocatorFixed, LocatorIPAPI, LocatorNone:
	default:
		return fmt.Errorf("unknown DEVICE_LOCATOR %q", c.DeviceLocator)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaSnapshotTopic == "" {
			return errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseGeocodeCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
