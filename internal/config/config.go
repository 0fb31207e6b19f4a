package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Registration  RegistrationConfig  `json:"registration"`
	Notifications NotificationsConfig `json:"notifications"`
	Security      SecurityConfig      `json:"security"`
	RateLimit     RateLimitConfig     `json:"rate_limit"`
	Tracing       TracingConfig       `json:"tracing"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// StorageConfig holds signing-service and signed-URL cache configuration.
type StorageConfig struct {
	BaseURL         string   `json:"base_url"`
	APIKey          string   `json:"api_key"`
	Buckets         []string `json:"buckets"`
	ValiditySeconds int      `json:"validity_seconds"`
	CacheBackend    string   `json:"cache_backend"` // "memory" or "redis"
	RedisAddr       string   `json:"redis_addr"`
	RedisPassword   string   `json:"redis_password"`
	RedisDB         int      `json:"redis_db"`
	CacheEnabled    bool     `json:"cache_enabled"`
}

// RegistrationConfig holds the atomic registration boundary configuration.
type RegistrationConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// NotificationsConfig holds the notification channel configuration.
type NotificationsConfig struct {
	Enabled               bool   `json:"enabled"`
	EmailEndpoint         string `json:"email_endpoint"`
	EmailAPIKey           string `json:"email_api_key"`
	WhatsAppEndpoint      string `json:"whatsapp_endpoint"`
	WhatsAppAPIKey        string `json:"whatsapp_api_key"`
	ChannelTimeoutSeconds int    `json:"channel_timeout_seconds"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./promo_claims.db"),
		},
		Storage: StorageConfig{
			BaseURL:         getEnv("STORAGE_BASE_URL", ""),
			APIKey:          getEnv("STORAGE_API_KEY", ""),
			Buckets:         splitList(getEnv("STORAGE_BUCKETS", "claim-documents,invoices")),
			ValiditySeconds: getEnvInt("STORAGE_VALIDITY_SECONDS", 3600),
			CacheBackend:    getEnv("STORAGE_CACHE_BACKEND", "memory"),
			RedisAddr:       getEnv("STORAGE_REDIS_ADDR", "localhost:6379"),
			RedisPassword:   getEnv("STORAGE_REDIS_PASSWORD", ""),
			RedisDB:         getEnvInt("STORAGE_REDIS_DB", 0),
			CacheEnabled:    getEnvBool("STORAGE_CACHE_ENABLED", true),
		},
		Registration: RegistrationConfig{
			Endpoint:       getEnv("REGISTRATION_ENDPOINT", ""),
			APIKey:         getEnv("REGISTRATION_API_KEY", ""),
			TimeoutSeconds: getEnvInt("REGISTRATION_TIMEOUT_SECONDS", 15),
		},
		Notifications: NotificationsConfig{
			Enabled:               getEnvBool("NOTIFICATIONS_ENABLED", true),
			EmailEndpoint:         getEnv("NOTIFICATIONS_EMAIL_ENDPOINT", ""),
			EmailAPIKey:           getEnv("NOTIFICATIONS_EMAIL_API_KEY", ""),
			WhatsAppEndpoint:      getEnv("NOTIFICATIONS_WHATSAPP_ENDPOINT", ""),
			WhatsAppAPIKey:        getEnv("NOTIFICATIONS_WHATSAPP_API_KEY", ""),
			ChannelTimeoutSeconds: getEnvInt("NOTIFICATIONS_CHANNEL_TIMEOUT_SECONDS", 5),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 10<<20), // 10MB default
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "promo-claim-api"),
			Environment: getEnv("TRACING_ENVIRONMENT", "development"),
		},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		// Environment variables take precedence over file values
		overrideFromEnv(cfg)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setEnvString(&cfg.Server.Port, "SERVER_PORT")
	setEnvString(&cfg.Server.Host, "SERVER_HOST")
	setEnvString(&cfg.Database.Path, "DATABASE_PATH")
	setEnvString(&cfg.Storage.BaseURL, "STORAGE_BASE_URL")
	setEnvString(&cfg.Storage.APIKey, "STORAGE_API_KEY")
	setEnvString(&cfg.Storage.CacheBackend, "STORAGE_CACHE_BACKEND")
	setEnvString(&cfg.Storage.RedisAddr, "STORAGE_REDIS_ADDR")
	setEnvString(&cfg.Storage.RedisPassword, "STORAGE_REDIS_PASSWORD")
	setEnvString(&cfg.Registration.Endpoint, "REGISTRATION_ENDPOINT")
	setEnvString(&cfg.Registration.APIKey, "REGISTRATION_API_KEY")
	setEnvString(&cfg.Notifications.EmailEndpoint, "NOTIFICATIONS_EMAIL_ENDPOINT")
	setEnvString(&cfg.Notifications.EmailAPIKey, "NOTIFICATIONS_EMAIL_API_KEY")
	setEnvString(&cfg.Notifications.WhatsAppEndpoint, "NOTIFICATIONS_WHATSAPP_ENDPOINT")
	setEnvString(&cfg.Notifications.WhatsAppAPIKey, "NOTIFICATIONS_WHATSAPP_API_KEY")
	setEnvString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")
	setEnvString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setEnvString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setEnvString(&cfg.Tracing.Environment, "TRACING_ENVIRONMENT")

	setEnvInt(&cfg.Storage.ValiditySeconds, "STORAGE_VALIDITY_SECONDS")
	setEnvInt(&cfg.Storage.RedisDB, "STORAGE_REDIS_DB")
	setEnvInt(&cfg.Registration.TimeoutSeconds, "REGISTRATION_TIMEOUT_SECONDS")
	setEnvInt(&cfg.Notifications.ChannelTimeoutSeconds, "NOTIFICATIONS_CHANNEL_TIMEOUT_SECONDS")
	setEnvInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setEnvInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")

	setEnvBool(&cfg.Storage.CacheEnabled, "STORAGE_CACHE_ENABLED")
	setEnvBool(&cfg.Notifications.Enabled, "NOTIFICATIONS_ENABLED")
	setEnvBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setEnvBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")

	if buckets := os.Getenv("STORAGE_BUCKETS"); buckets != "" {
		cfg.Storage.Buckets = splitList(buckets)
	}
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
}

func setEnvString(dest *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func setEnvInt(dest *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dest = i
		}
	}
}

func setEnvBool(dest *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = strings.ToLower(value) == "true" || value == "1"
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if len(c.Storage.Buckets) == 0 {
		return fmt.Errorf("at least one storage bucket must be allow-listed")
	}
	if c.Storage.ValiditySeconds <= 60 {
		return fmt.Errorf("storage validity must exceed the 60s safety margin")
	}
	if c.Storage.CacheBackend != "memory" && c.Storage.CacheBackend != "redis" {
		return fmt.Errorf("storage cache backend must be 'memory' or 'redis'")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	return nil
}
