package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Capture  CaptureConfig
	TimeAPI  TimeAPIConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string
	SessionExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port          int
	Env           string
	LogLevel      string
	AllowedOrigin string
}

// CaptureConfig tunes the attendance capture policy.
type CaptureConfig struct {
	AccuracyCeilingMeters  float64
	SpoofMaxSpeedMPS       float64
	SpoofMinAccuracyMeters float64
	DefaultTimezone        string
}

// TimeAPIConfig points at the remote time source used for clock sync.
type TimeAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

func Load() (*Config, error) {
	// A missing .env is fine in containerized deploys; the environment is
	// already populated there.
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance_engine"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:          appPort,
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:            getEnv("JWT_SECRET_KEY", ""),
		SessionExpiration: getEnv("JWT_SESSION_EXPIRATION_TIME", "12h"),
	}

	// Capture policy configuration
	accuracyCeiling, err := getEnvFloat("ACCURACY_CEILING_METERS", 60)
	if err != nil {
		return nil, err
	}
	spoofMaxSpeed, err := getEnvFloat("SPOOF_MAX_SPEED_MPS", 83)
	if err != nil {
		return nil, err
	}
	spoofMinAccuracy, err := getEnvFloat("SPOOF_MIN_ACCURACY_METERS", 1)
	if err != nil {
		return nil, err
	}

	config.Capture = CaptureConfig{
		AccuracyCeilingMeters:  accuracyCeiling,
		SpoofMaxSpeedMPS:       spoofMaxSpeed,
		SpoofMinAccuracyMeters: spoofMinAccuracy,
		DefaultTimezone:        getEnv("DEFAULT_TIMEZONE", "UTC"),
	}

	// Time source configuration
	timeAPITimeout, err := time.ParseDuration(getEnv("TIME_API_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_API_TIMEOUT: %w", err)
	}

	config.TimeAPI = TimeAPIConfig{
		BaseURL: getEnv("TIME_API_URL", "https://worldtimeapi.org/api/timezone"),
		Timeout: timeAPITimeout,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Capture.AccuracyCeilingMeters <= 0 {
		return fmt.Errorf("ACCURACY_CEILING_METERS must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
