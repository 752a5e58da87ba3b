package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Loyalty engine configuration
	Membership MembershipConfig

	// Redis configuration (leaderboard cache)
	Redis RedisConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string // development, staging, production
	LogLevel        string // debug, info, warn, error
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration.
// Tokens are issued by the identity provider; this service only validates them.
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentConfig holds Chapa checkout configuration
type PaymentConfig struct {
	BaseURL     string
	SecretKey   string // never exposed to clients
	Currency    string
	CallbackURL string
	ReturnURL   string
	Timeout     time.Duration

	// Verify attempts are refused once a user has this many failed
	// verifications inside the window
	VerifyFailureLimit  int
	VerifyFailureWindow time.Duration
}

// MembershipConfig holds loyalty engine settings
type MembershipConfig struct {
	OperationTimeout     time.Duration // default deadline for store calls when the caller set none
	LeaderboardSize      int
	ReconcileSchedule    string // cron spec (with seconds) for tier reconciliation, empty disables it
	ReconcileConcurrency int
}

// RedisConfig holds the optional leaderboard cache settings
type RedisConfig struct {
	URL            string // empty disables the cache
	LeaderboardTTL time.Duration
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "luxestay-auth"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			BaseURL:     getEnv("CHAPA_BASE_URL", "https://api.chapa.co/v1"),
			SecretKey:   getEnv("CHAPA_SECRET_KEY", ""),
			Currency:    getEnv("CHAPA_CURRENCY", "ETB"),
			CallbackURL: getEnv("CHAPA_CALLBACK_URL", ""),
			ReturnURL:   getEnv("CHAPA_RETURN_URL", ""),
			Timeout:     time.Duration(getEnvAsInt("CHAPA_TIMEOUT_SECONDS", 30)) * time.Second,

			VerifyFailureLimit:  getEnvAsInt("PAYMENT_VERIFY_FAILURE_LIMIT", 5),
			VerifyFailureWindow: time.Duration(getEnvAsInt("PAYMENT_VERIFY_FAILURE_WINDOW_MINUTES", 15)) * time.Minute,
		},
		Membership: MembershipConfig{
			OperationTimeout:     time.Duration(getEnvAsInt("MEMBERSHIP_OP_TIMEOUT_MS", 5000)) * time.Millisecond,
			LeaderboardSize:      getEnvAsInt("LEADERBOARD_DEFAULT_SIZE", 3),
			ReconcileSchedule:    getEnv("TIER_RECONCILE_SCHEDULE", "0 30 3 * * *"),
			ReconcileConcurrency: getEnvAsInt("TIER_RECONCILE_CONCURRENCY", 4),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			LeaderboardTTL: time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
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

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Membership.OperationTimeout <= 0 {
		return fmt.Errorf("MEMBERSHIP_OP_TIMEOUT_MS must be positive")
	}

	if c.Membership.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_DEFAULT_SIZE must be positive")
	}

	if c.Membership.ReconcileConcurrency <= 0 {
		return fmt.Errorf("TIER_RECONCILE_CONCURRENCY must be positive")
	}

	// The payment provider must be fully configured outside development
	if c.Server.Environment == "production" && c.Payment.SecretKey == "" {
		return fmt.Errorf("CHAPA_SECRET_KEY is required in production")
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
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
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
