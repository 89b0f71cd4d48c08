package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported STORE_BACKEND values.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	StoreBackend string
	SQLitePath   string
	DatabaseURL  string
	RedisURL     string

	JWTSecret         string
	TokenTTL          time.Duration
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	CORSAllowedOrigins    []string
	RateLimitPerMinute    int
	LoginRateLimitPerMin  int
	OTLPEndpoint          string
	TraceSampleRatio      float64
	ResendAPIKey          string
	EmailFrom             string
	NotificationQueueSize int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}

	ttlMinutes, err := getIntEnv("TOKEN_TTL_MINUTES", 60)
	if err != nil {
		return nil, err
	}

	rateLimit, err := getIntEnv("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, err
	}

	loginLimit, err := getIntEnv("LOGIN_RATE_LIMIT_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}

	queueSize, err := getIntEnv("NOTIFICATION_QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
	}

	cfg := &Config{
		Environment:           getEnv("ENVIRONMENT", "development"),
		ServerPort:            port,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		SQLitePath:            getEnv("SQLITE_PATH", "bloodbank.db"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		TokenTTL:              time.Duration(ttlMinutes) * time.Minute,
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:     os.Getenv("ADMIN_PASSWORD_HASH"),
		CORSAllowedOrigins:    parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RateLimitPerMinute:    rateLimit,
		LoginRateLimitPerMin:  loginLimit,
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio:      sampleRatio,
		ResendAPIKey:          os.Getenv("RESEND_API_KEY"),
		EmailFrom:             getEnv("EMAIL_FROM", "Blood Bank <noreply@bloodbank.local>"),
		NotificationQueueSize: queueSize,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL_MINUTES must be positive")
	}
	if c.RateLimitPerMinute <= 0 || c.LoginRateLimitPerMin <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 bytes in production")
		}
		if c.AdminPasswordHash == "" {
			return errors.New("ADMIN_PASSWORD_HASH is required in production")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
