package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/skylark-dev/weather-alerts/internal/aggregator"
	"github.com/skylark-dev/weather-alerts/internal/api"
	"github.com/skylark-dev/weather-alerts/internal/cache"
	"github.com/skylark-dev/weather-alerts/internal/config"
	"github.com/skylark-dev/weather-alerts/internal/feed"
	"github.com/skylark-dev/weather-alerts/internal/logging"
	"github.com/skylark-dev/weather-alerts/internal/provider"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	httpClient := &http.Client{Timeout: 15 * time.Second}
	feeds := feed.NewClient(httpClient, clock)

	var enricher *provider.Enricher
	if cfg.Providers.FetchCapDetails {
		enricher = provider.NewEnricher(feeds, cfg.Enrich.Workers, cfg.Enrich.BufferSize)
		enricher.Start(ctx)
	}

	var coordProviders []provider.Provider
	if cfg.Providers.OpenWeatherEnabled {
		ow, err := provider.NewOpenWeather(cfg.Providers.OpenWeatherBaseURL, cfg.Providers.OpenWeatherAPIKey, httpClient, clock)
		if err != nil {
			logging.Fatalf("Failed to configure OpenWeather provider: %v", err)
		}
		coordProviders = append(coordProviders, ow)
	}

	svc := aggregator.New(aggregator.Config{
		CoordProviders: coordProviders,
		NWS:            provider.NewNWS(feeds, cfg.Providers.NWSFeedURL),
		EnvCanada:      provider.NewEnvCanada(feeds, cfg.Providers.EnvCanadaFeedURL),
		Meteoalarm:     provider.NewMeteoalarm(feeds, cfg.Providers.MeteoalarmBaseURL, enricher),
		Cache:          cache.NewMemory(cfg.Cache.TTL, cfg.Cache.SweepInterval),
		Clock:          clock,
		TTL:            cfg.Cache.TTL,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(svc)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	if enricher != nil {
		enricher.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
