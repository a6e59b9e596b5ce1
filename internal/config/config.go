package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	Enrich    EnrichConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type ProvidersConfig struct {
	OpenWeatherEnabled bool
	OpenWeatherBaseURL string
	OpenWeatherAPIKey  string
	NWSFeedURL         string
	EnvCanadaFeedURL   string
	MeteoalarmBaseURL  string
	// FetchCapDetails turns on the best-effort CAP enrichment stage for
	// regional feed entries that link a full CAP document.
	FetchCapDetails bool
}

type CacheConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type EnrichConfig struct {
	Workers    int
	BufferSize int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Providers: ProvidersConfig{
			OpenWeatherEnabled: getEnvBool("OPENWEATHER_ENABLED", true),
			OpenWeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/3.0/onecall"),
			OpenWeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
			NWSFeedURL:         getEnv("NWS_FEED_URL", "https://alerts.weather.gov/cap/us.php?x=1"),
			EnvCanadaFeedURL:   getEnv("ENVCANADA_FEED_URL", "https://dd.weather.gc.ca/alerts/cap/Canada-cap.xml"),
			MeteoalarmBaseURL:  getEnv("METEOALARM_BASE_URL", "https://feeds.meteoalarm.org/feeds"),
			FetchCapDetails:    getEnvBool("METEOALARM_FETCH_CAP", false),
		},
		Cache: CacheConfig{
			TTL:           getEnvDuration("CACHE_TTL", 120*time.Second),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 60*time.Second),
		},
		Enrich: EnrichConfig{
			Workers:    getEnvInt("ENRICH_WORKERS", 2),
			BufferSize: getEnvInt("ENRICH_BUFFER_SIZE", 20),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// A missing credential is a configuration error: fail at startup, never
	// silently per-request.
	if c.Providers.OpenWeatherEnabled && c.Providers.OpenWeatherAPIKey == "" {
		return fmt.Errorf("OPENWEATHER_API_KEY is required when the OpenWeather provider is enabled")
	}

	if c.Cache.TTL < time.Second {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}
	if c.Cache.SweepInterval < time.Second {
		return fmt.Errorf("cache sweep interval must be at least 1 second")
	}
	if c.Enrich.Workers < 1 {
		return fmt.Errorf("enrich worker count must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
