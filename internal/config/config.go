// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreSQL    = "sql"
	SessionStoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	// PublicBaseURL is where checkout back URLs point. Defaults to FrontendURL.
	PublicBaseURL   string
	NotificationURL string

	DBDriver string
	DSN      string

	SessionStore string
	Redis        RedisConfig

	MercadoPago MercadoPagoConfig

	ChatBackendURL     string
	ChatBackendTimeout time.Duration

	CatalogPath string
	ReplayDelay time.Duration
	// RewardsEnabled exposes the free-credit and prize routes to visitors.
	RewardsEnabled bool

	LogLevel string
	LogFile  string

	SweepInterval time.Duration
	SessionTTL    time.Duration
	OrderTTL      time.Duration
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// MercadoPagoConfig configures the checkout provider client.
type MercadoPagoConfig struct {
	AccessToken string
	BaseURL     string
	Sandbox     bool
	Timeout     time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	frontend := getEnv("FRONTEND_URL", "http://localhost:4200")

	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		FrontendURL:     frontend,
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{frontend}),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", frontend),
		NotificationURL: getEnv("MERCADOPAGO_NOTIFICATION_URL", ""),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DSN:      getEnv("DATABASE_URL", "./data/oraculo.db"),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", SessionStoreSQL)),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "oraculo:session"),
			TTL:      getEnvDuration("REDIS_SESSION_TTL", 7*24*time.Hour),
		},

		MercadoPago: MercadoPagoConfig{
			AccessToken: getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
			Sandbox:     getEnvBool("MERCADOPAGO_SANDBOX", false),
			Timeout:     getEnvDuration("MERCADOPAGO_TIMEOUT", 15*time.Second),
		},

		ChatBackendURL:     getEnv("CHAT_BACKEND_URL", ""),
		ChatBackendTimeout: getEnvDuration("CHAT_BACKEND_TIMEOUT", 30*time.Second),

		CatalogPath: getEnv("CATALOG_PATH", ""),
		ReplayDelay: getEnvDuration("REPLAY_DELAY", 2*time.Second),

		RewardsEnabled: getEnvBool("ENABLE_REWARDS", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SessionTTL:    getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		OrderTTL:      getEnvDuration("ORDER_TTL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DSN == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreSQL:
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory, sql or redis, got %q", c.SessionStore)
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL cannot be empty")
	}
	if c.ReplayDelay <= 0 {
		return fmt.Errorf("REPLAY_DELAY must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.SessionTTL <= 0 || c.OrderTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and ORDER_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
