package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Voice call gateway configuration
	Voice VoiceConfig

	// Alert threshold / retry policy configuration
	Alert AlertConfig

	// Telegram notification configuration
	Telegram TelegramConfig

	// Geocoding configuration
	Geo GeoConfig

	// Railway live-status configuration
	Rail RailConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	PublicURL   string // Base URL the voice vendor calls back on
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// VoiceConfig holds voice call vendor configuration
type VoiceConfig struct {
	Mode           string // "dev" logs calls instead of dialing, "production" dials
	APIURL         string
	APIKey         string
	WebhookSecret  string // Shared secret the vendor sends back on webhooks
	MaxDuration    time.Duration
	SilenceTimeout time.Duration
}

// AlertConfig holds wake-up alert thresholds and the call retry policy.
// These were hardcoded in early revisions; keep them tunable.
type AlertConfig struct {
	BusAlertKm           float64       // distance that triggers the wake-up call sequence
	BusWarnKm            float64       // soft warning notification zone
	BusInfoKm            float64       // soft informational notification zone
	TrainMinStationsLeft int           // stations-remaining alert threshold
	TrainAlertKm         float64       // residual-distance alert threshold
	TrainAlertOffset     time.Duration // alert this long before scheduled arrival

	MaxCallAttempts  int
	CallRetryDelay   time.Duration
	RecentCallWindow time.Duration // suppress new sequences this soon after a call

	TrackingInterval time.Duration // position/schedule polling cadence
	AlertInterval    time.Duration // due-alert polling cadence
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken string
	APIURL   string
}

// GeoConfig holds geocoding configuration
type GeoConfig struct {
	APIURL string
	APIKey string // Empty key falls back to the built-in city table
	Region string // Bias geocoding results to this region
}

// RailConfig holds railway PNR / live-running API configuration
type RailConfig struct {
	APIURL string
	APIKey string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			PublicURL:   getEnv("SERVER_URL", "http://localhost:8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Voice: VoiceConfig{
			Mode:           getEnv("VOICE_MODE", "dev"), // "dev" or "production"
			APIURL:         getEnv("VAPI_API_URL", "https://api.vapi.ai"),
			APIKey:         getEnv("VAPI_API_KEY", ""),
			WebhookSecret:  getEnv("VOICE_WEBHOOK_SECRET", ""),
			MaxDuration:    time.Duration(getEnvAsInt("VOICE_MAX_DURATION_SECONDS", 180)) * time.Second,
			SilenceTimeout: time.Duration(getEnvAsInt("VOICE_SILENCE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Alert: AlertConfig{
			BusAlertKm:           getEnvAsFloat("BUS_ALERT_DISTANCE_KM", 7),
			BusWarnKm:            getEnvAsFloat("BUS_WARN_DISTANCE_KM", 15),
			BusInfoKm:            getEnvAsFloat("BUS_INFO_DISTANCE_KM", 30),
			TrainMinStationsLeft: getEnvAsInt("TRAIN_ALERT_STATIONS_LEFT", 2),
			TrainAlertKm:         getEnvAsFloat("TRAIN_ALERT_DISTANCE_KM", 50),
			TrainAlertOffset:     time.Duration(getEnvAsInt("TRAIN_ALERT_OFFSET_MINUTES", 30)) * time.Minute,
			MaxCallAttempts:      getEnvAsInt("MAX_CALL_ATTEMPTS", 5),
			CallRetryDelay:       time.Duration(getEnvAsInt("CALL_RETRY_DELAY_SECONDS", 120)) * time.Second,
			RecentCallWindow:     time.Duration(getEnvAsInt("RECENT_CALL_WINDOW_MINUTES", 10)) * time.Minute,
			TrackingInterval:     time.Duration(getEnvAsInt("TRACKING_INTERVAL_SECONDS", 120)) * time.Second,
			AlertInterval:        time.Duration(getEnvAsInt("ALERT_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		},
		Geo: GeoConfig{
			APIURL: getEnv("GEOCODING_API_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
			Region: getEnv("GEOCODING_REGION", "in"),
		},
		Rail: RailConfig{
			APIURL: getEnv("RAILWAY_API_URL", ""),
			APIKey: getEnv("RAILWAY_API_KEY", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Webhook-Token"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Voice vendor credentials are only required when actually dialing
	if c.Voice.Mode == "production" {
		if c.Voice.APIKey == "" {
			return fmt.Errorf("VAPI_API_KEY is required in production voice mode")
		}
		if c.Server.PublicURL == "" {
			return fmt.Errorf("SERVER_URL is required in production voice mode")
		}
	}

	if c.Alert.MaxCallAttempts < 1 {
		return fmt.Errorf("MAX_CALL_ATTEMPTS must be at least 1")
	}

	if c.Alert.BusAlertKm > c.Alert.BusWarnKm || c.Alert.BusWarnKm > c.Alert.BusInfoKm {
		return fmt.Errorf("bus alert zones must be ordered: alert <= warn <= info")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range splitString(valueStr, ",") {
		trimmed := trimString(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// Helper to split strings
func splitString(s, sep string) []string {
	var result []string
	current := ""
	for _, char := range s {
		if string(char) == sep {
			result = append(result, current)
			current = ""
		} else {
			current += string(char)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

// Helper to trim strings
func trimString(s string) string {
	start := 0
	end := len(s)

	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}

	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}

	return s[start:end]
}
