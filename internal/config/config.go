// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ModelsConfig locates the trained model artifacts.
type ModelsConfig struct {
	Dir string
}

// LiveWeatherConfig holds the live conditions API settings.
type LiveWeatherConfig struct {
	BaseURL string
	APIKey  string
	City    string
}

// CollectorConfig controls the hourly observation collection job.
type CollectorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ForecastConfig bounds forecast requests.
type ForecastConfig struct {
	DefaultHours int
	MaxHours     int
	HistoryHours int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string
}

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Models      ModelsConfig
	LiveWeather LiveWeatherConfig
	Collector   CollectorConfig
	Forecast    ForecastConfig
	Logging     LoggingConfig
}

// LoadConfig reads configuration from environment with sensible defaults.
func LoadConfig() (*Config, error) {
	// .env is a local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getenvDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getenvInt("SERVER_PORT", 8080),
			ReadTimeout:  getenvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getenvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getenvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getenvDefault("DB_HOST", "localhost"),
			Port:            getenvInt("DB_PORT", 5432),
			User:            getenvDefault("DB_USER", "forecast"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getenvDefault("DB_NAME", "forecast"),
			SSLMode:         getenvDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getenvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Models: ModelsConfig{
			Dir: getenvDefault("MODELS_DIR", "./models"),
		},
		LiveWeather: LiveWeatherConfig{
			BaseURL: getenvDefault("WEATHERAPI_BASE_URL", "https://api.weatherapi.com/v1"),
			APIKey:  os.Getenv("WEATHERAPI_API_KEY"),
			City:    getenvDefault("WEATHER_LOCATION_CITY", "Kolkata"),
		},
		Collector: CollectorConfig{
			Enabled:  getenvBool("COLLECTOR_ENABLED", true),
			Interval: getenvDuration("COLLECTOR_INTERVAL", time.Hour),
		},
		Forecast: ForecastConfig{
			DefaultHours: getenvInt("FORECAST_DEFAULT_HOURS", 5),
			MaxHours:     getenvInt("FORECAST_MAX_HOURS", 48),
			HistoryHours: getenvInt("FORECAST_HISTORY_HOURS", 24),
		},
		Logging: LoggingConfig{
			Level: getenvDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks configuration consistency before startup proceeds.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Models.Dir == "" {
		return fmt.Errorf("models directory is required")
	}
	if c.Forecast.DefaultHours < 1 {
		return fmt.Errorf("forecast default hours must be at least 1")
	}
	if c.Forecast.MaxHours < c.Forecast.DefaultHours {
		return fmt.Errorf("forecast max hours (%d) below default (%d)", c.Forecast.MaxHours, c.Forecast.DefaultHours)
	}
	if c.Forecast.HistoryHours < 1 {
		return fmt.Errorf("forecast history hours must be at least 1")
	}
	if c.Collector.Enabled && c.LiveWeather.APIKey == "" {
		return fmt.Errorf("WEATHERAPI_API_KEY is required when the collector is enabled")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
