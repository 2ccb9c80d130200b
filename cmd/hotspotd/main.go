package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/feed"
	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/geocache"
	httpadapter "github.com/couchcryptid/civic-hotspot-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/civic-hotspot-service/internal/adapter/kafka"
	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/mapbox"
	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/pelias"
	redisadapter "github.com/couchcryptid/civic-hotspot-service/internal/adapter/redis"
	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/report"
	"github.com/couchcryptid/civic-hotspot-service/internal/config"
	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/interaction"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/refresh"
	"github.com/couchcryptid/civic-hotspot-service/internal/search"
	"github.com/couchcryptid/civic-hotspot-service/internal/session"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	readiness := []sharedobs.ReadinessChecker{}

	// Autocomplete is feature-flagged on GEOCODE_API_KEY.
	var suggester domain.Suggester
	var redisStore *redisadapter.SuggestionStore
	if cfg.GeocodeEnabled() {
		var provider domain.Suggester
		switch cfg.GeocoderProvider {
		case config.ProviderMapbox:
			provider = mapbox.NewClient(cfg.GeocodeAPIKey, cfg.GeocodeBaseURL, cfg.GeocodeTimeout, metrics, logger)
		default:
			provider = pelias.NewClient(cfg.GeocodeAPIKey, cfg.GeocodeBaseURL, cfg.GeocodeTimeout, metrics, logger)
		}

		var store geocache.Store
		if cfg.RedisAddr != "" {
			redisStore = redisadapter.Open(cfg.RedisAddr, cfg.RedisCacheTTL)
			store = redisStore
			readiness = append(readiness, redisStore)
			logger.Info("shared suggestion cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisCacheTTL)
		}
		suggester = geocache.New(provider, cfg.GeocodeCacheSize, store, metrics, logger)
		logger.Info("autocomplete enabled", "provider", cfg.GeocoderProvider, "cache_size", cfg.GeocodeCacheSize)
	} else {
		logger.Info("autocomplete disabled, coordinate search only")
	}

	// LayerSet snapshots are published only when brokers are configured.
	var publisher layers.SnapshotPublisher
	var layerWriter *kafkaadapter.LayerWriter
	if cfg.KafkaEnabled() {
		layerWriter = kafkaadapter.NewLayerWriter(cfg.KafkaBrokers, cfg.KafkaLayerTopic, logger)
		publisher = layerWriter
		logger.Info("layer snapshot publishing enabled", "topic", cfg.KafkaLayerTopic)
	}

	locations, err := navigator.LoadLocations(cfg.LocationsFile)
	if err != nil {
		logger.Error("failed to load locations", "error", err)
		os.Exit(1)
	}
	nav, err := navigator.New(cfg.InitialView, locations, clock, logger)
	if err != nil {
		logger.Error("invalid initial view", "error", err)
		os.Exit(1)
	}

	loop := refresh.New(feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger), cfg.RefreshInterval, cfg.FeedTopic, clock, logger, metrics)
	composer := layers.NewComposer(layers.NewBuilder(clock), publisher, logger, metrics)
	searchSvc := search.NewService(suggester, nav, search.Options{
		MinLength: cfg.SearchMinLength,
		Debounce:  cfg.SearchDebounce,
		FlyZoom:   cfg.SearchFlyZoom,
	}, clock, logger, metrics)
	broker := interaction.NewBroker(composer, cfg.SelectionIdle, clock, logger, metrics)

	sess, err := session.New(session.Components{
		Refresh:   loop,
		Search:    searchSvc,
		Navigator: nav,
		Composer:  composer,
		Broker:    broker,
	}, cfg.DefaultStyle, logger)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	reports := report.NewClient(cfg.ReportAPIURL, 60*time.Second, logger)
	readiness = append(readiness, loop)
	srv := httpadapter.NewServer(cfg.HTTPAddr, sess, reports, logger, readiness...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil {
			logger.Error("refresh loop error", "error", err)
		}
	}()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := sess.Run(ctx); err != nil {
			logger.Error("composition loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	searchSvc.Stop()
	broker.Clear()

	for _, done := range []chan struct{}{loopDone, sessionDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("background loop did not stop before shutdown timeout")
		}
	}

	if layerWriter != nil {
		if err := layerWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
