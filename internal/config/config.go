package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinCounterRetention keeps yesterday's and today's order counters out of reach
// of the prune job whatever the timezone offset.
const MinCounterRetention = 48 * time.Hour

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	JWT      JWTConfig
	DB       DatabaseConfig
	Redis    RedisConfig
	Paystack PaystackConfig
	SMTP     SMTPConfig
	S3       S3Config
	Store    StoreConfig
	Worker   WorkerConfig
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// JWTConfig contains token signing parameters.
type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host            string
	Port            string
	Password        string
	DB              int
	ProductCacheTTL time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
}

// PaystackConfig contains credentials for the payment gateway.
type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

// SMTPConfig contains outgoing mail settings. An empty Host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// S3Config contains object storage settings for product images.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
}

// StoreConfig contains storefront URLs, CORS origins and the bootstrap admin.
type StoreConfig struct {
	FrontendURL    string
	AllowedOrigins []string
	AdminEmail     string
	AdminPassword  string
	AdminName      string
}

// WorkerConfig contains interval configuration for background jobs.
type WorkerConfig struct {
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	ReconcileMaxAge     time.Duration
	CounterRetention    time.Duration
	CounterPruneSpec    string
	NotifyPoolSize      int
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Production environments may rely on real environment variables only.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// JWT
	cfg.JWT.Secret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:          getEnv("REDIS_HOST", "redis"),
		Port:          getEnv("REDIS_PORT", "6379"),
		Password:      getEnv("REDIS_PASSWORD", ""),
		DB:            getEnvInt("REDIS_DB", 0),
		AuthRateLimit: getEnvInt("AUTH_RATE_LIMIT", 10),
	}

	// Paystack
	cfg.Paystack = PaystackConfig{
		SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
		BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
	}

	// SMTP
	cfg.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "no-reply@fabricstore.ng"),
	}

	// S3
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "eu-west-1"),
		Bucket:          getEnv("S3_BUCKET", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Store
	cfg.Store = StoreConfig{
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminName:      getEnv("ADMIN_NAME", "Store Admin"),
	}
	if cfg.Paystack.CallbackURL == "" {
		cfg.Paystack.CallbackURL = strings.TrimSuffix(cfg.Store.FrontendURL, "/") + "/checkout/verify"
	}

	cfg.Worker.CounterPruneSpec = getEnv("COUNTER_PRUNE_CRON", "15 3 * * *")
	cfg.Worker.NotifyPoolSize = getEnvInt("NOTIFY_POOL_SIZE", 16)

	// Durations
	var err error
	if cfg.JWT.AccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}
	if cfg.JWT.RefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", "168h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_TTL: %w", err)
	}
	if cfg.Redis.ProductCacheTTL, err = parseDurationEnv("PRODUCT_CACHE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_CACHE_TTL: %w", err)
	}
	if cfg.Redis.AuthRateWindow, err = parseDurationEnv("AUTH_RATE_WINDOW", "1m"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_WINDOW: %w", err)
	}
	if cfg.Paystack.Timeout, err = parseDurationEnv("PAYSTACK_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid PAYSTACK_TIMEOUT: %w", err)
	}
	if cfg.Worker.ReconcileInterval, err = parseDurationEnv("PAYMENT_RECONCILE_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.Worker.ReconcileStaleAfter, err = parseDurationEnv("PAYMENT_RECONCILE_STALE_AFTER", "15m"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_RECONCILE_STALE_AFTER: %w", err)
	}
	if cfg.Worker.ReconcileMaxAge, err = parseDurationEnv("PAYMENT_RECONCILE_MAX_AGE", "24h"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_RECONCILE_MAX_AGE: %w", err)
	}
	if cfg.Worker.CounterRetention, err = parseDurationEnv("COUNTER_RETENTION", "720h"); err != nil {
		return nil, fmt.Errorf("invalid COUNTER_RETENTION: %w", err)
	}

	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}
	if cfg.Worker.ReconcileMaxAge < cfg.Worker.ReconcileStaleAfter {
		return nil, errors.New("PAYMENT_RECONCILE_MAX_AGE must not be shorter than PAYMENT_RECONCILE_STALE_AFTER")
	}
	if cfg.Worker.CounterRetention < MinCounterRetention {
		return nil, fmt.Errorf("COUNTER_RETENTION must be at least %s so the current day's order counter is never pruned", MinCounterRetention)
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as a positive
// time.Duration. If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be > 0, got %s", raw)
	}
	return d, nil
}
