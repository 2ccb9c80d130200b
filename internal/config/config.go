package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
)

// Geocoder providers.
const (
	ProviderPelias = "pelias"
	ProviderMapbox = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Inbound feed and refresh loop.
	FeedURL         string
	FeedTopic       string
	FeedTimeout     time.Duration
	RefreshInterval time.Duration

	// Autocomplete provider. An empty key disables autocomplete.
	GeocoderProvider string
	GeocodeAPIKey    string
	GeocodeBaseURL   string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int
	RedisAddr        string
	RedisCacheTTL    time.Duration

	SearchDebounce  time.Duration
	SearchMinLength int
	SearchFlyZoom   float64
	SelectionIdle   time.Duration

	ReportAPIURL string

	// Optional LayerSet snapshot sink; disabled without brokers.
	KafkaBrokers    []string
	KafkaLayerTopic string

	InitialView   navigator.ViewState
	DefaultStyle  layers.StyleConfig
	LocationsFile string
}

// GeocodeEnabled reports whether a provider credential is configured.
func (c *Config) GeocodeEnabled() bool { return c.GeocodeAPIKey != "" }

// KafkaEnabled reports whether LayerSet snapshots are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		FeedURL:          strings.TrimRight(sharedcfg.EnvOrDefault("FEED_URL", "http://localhost:3000/api/flattened"), "/"),
		FeedTopic:        os.Getenv("FEED_TOPIC"),
		GeocoderProvider: strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", ProviderPelias)),
		GeocodeAPIKey:    os.Getenv("GEOCODE_API_KEY"),
		GeocodeBaseURL:   os.Getenv("GEOCODE_BASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		ReportAPIURL:     strings.TrimRight(sharedcfg.EnvOrDefault("REPORT_API_URL", "http://localhost:8000/api"), "/"),
		KafkaLayerTopic:  sharedcfg.EnvOrDefault("KAFKA_LAYER_TOPIC", "hotspot-layers"),
		LocationsFile:    os.Getenv("LOCATIONS_FILE"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"FEED_TIMEOUT", "10s", &cfg.FeedTimeout},
		{"REFRESH_INTERVAL", "5s", &cfg.RefreshInterval},
		{"GEOCODE_TIMEOUT", "5s", &cfg.GeocodeTimeout},
		{"REDIS_CACHE_TTL", "10m", &cfg.RedisCacheTTL},
		{"SEARCH_DEBOUNCE", "100ms", &cfg.SearchDebounce},
		{"SELECTION_IDLE", "5s", &cfg.SelectionIdle},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.name, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.GeocodeCacheSize, err = parsePositiveInt("GEOCODE_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.SearchMinLength, err = parsePositiveInt("SEARCH_MIN_LENGTH", 3); err != nil {
		return nil, err
	}
	if cfg.SearchFlyZoom, err = parseFloat("SEARCH_FLY_ZOOM", 6.5); err != nil {
		return nil, err
	}
	if !(cfg.SearchFlyZoom >= navigator.MinZoom && cfg.SearchFlyZoom <= navigator.MaxZoom) {
		return nil, fmt.Errorf("invalid SEARCH_FLY_ZOOM: %v outside [%v,%v]", cfg.SearchFlyZoom, navigator.MinZoom, navigator.MaxZoom)
	}

	if cfg.InitialView, err = loadInitialView(); err != nil {
		return nil, err
	}
	if cfg.DefaultStyle, err = loadStyle(); err != nil {
		return nil, err
	}

	if cfg.GeocoderProvider != ProviderPelias && cfg.GeocoderProvider != ProviderMapbox {
		return nil, fmt.Errorf("invalid GEOCODER_PROVIDER %q: want %s or %s", cfg.GeocoderProvider, ProviderPelias, ProviderMapbox)
	}
	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaLayerTopic == "" {
		return nil, errors.New("KAFKA_LAYER_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func loadInitialView() (navigator.ViewState, error) {
	var (
		v   navigator.ViewState
		err error
	)
	fields := []struct {
		name string
		def  float64
		dst  *float64
	}{
		{"INITIAL_LONGITUDE", -122.4194, &v.Longitude},
		{"INITIAL_LATITUDE", 37.7749, &v.Latitude},
		{"INITIAL_ZOOM", 10, &v.Zoom},
		{"INITIAL_PITCH", 45, &v.Pitch},
	}
	for _, f := range fields {
		if *f.dst, err = parseFloat(f.name, f.def); err != nil {
			return v, err
		}
	}
	if err := v.Validate(); err != nil {
		return v, fmt.Errorf("invalid INITIAL_* camera: %w", err)
	}
	return v, nil
}

func loadStyle() (layers.StyleConfig, error) {
	style := layers.DefaultStyle()
	var err error
	if style.CellRadius, err = parseFloat("CELL_RADIUS", style.CellRadius); err != nil {
		return style, err
	}
	if style.Opacity, err = parseFloat("LAYER_OPACITY", style.Opacity); err != nil {
		return style, err
	}
	if style.Aggregation, err = layers.ParseAggregation(sharedcfg.EnvOrDefault("AGGREGATION", string(style.Aggregation))); err != nil {
		return style, fmt.Errorf("invalid AGGREGATION: %w", err)
	}
	if err := style.Validate(); err != nil {
		return style, fmt.Errorf("invalid CELL_RADIUS or LAYER_OPACITY: %w", err)
	}
	return style, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}
