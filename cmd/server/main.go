package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urbanworks/backend/internal/cache"
	"github.com/urbanworks/backend/internal/config"
	"github.com/urbanworks/backend/internal/db"
	"github.com/urbanworks/backend/internal/distance"
	"github.com/urbanworks/backend/internal/geocode"
	httpapi "github.com/urbanworks/backend/internal/http"
	"github.com/urbanworks/backend/internal/metrics"
	"github.com/urbanworks/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "crewroute-backend").Logger()

	metrics.RegisterDefault()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var distanceStore cache.DistanceStore
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisDistanceStore(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, distance cache is in-memory per run")
		} else {
			defer redisStore.Close()
			distanceStore = redisStore
			logger.Info().Msg("using redis distance cache")
		}
	}

	var provider distance.Provider = distance.GreatCircle{SpeedKmh: cfg.AvgSpeedKmh}
	if cfg.DistanceAPIURL != "" {
		provider = distance.HTTPProvider{BaseURL: cfg.DistanceAPIURL}
		logger.Info().Str("url", cfg.DistanceAPIURL).Msg("using external distance provider")
	}

	var geocoder geocode.Geocoder = &geocode.NominatimGeocoder{BaseURL: cfg.GeocoderURL}

	engine := &service.Engine{
		Source:        store,
		Provider:      provider,
		DistanceStore: distanceStore,
		AvgSpeedKmh:   cfg.AvgSpeedKmh,
		ClusterEpsKm:  cfg.ClusterEpsKm,
		Logger:        logger,
	}

	router := httpapi.Router(cfg, store, engine, geocoder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
