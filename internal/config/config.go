package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Upstream scheduling API
	APIBaseURL string
	APITimeout time.Duration

	// Tab sessions
	SessionBackend      string
	SessionTTL          time.Duration
	SessionCookieSecure bool
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool

	CORSAllowedOrigins []string

	// Workflow timings
	BookingConfirmDelay  time.Duration
	NoticeDismissDelay   time.Duration
	WorkspaceIdleTimeout time.Duration

	LoginRatePerMinute int
	LoginRateBurst     int

	OTLPEndpoint string
	OTLPInsecure bool

	// MetricsToken guards /metrics when set.
	MetricsToken string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		APITimeout: getEnvAsDuration("API_TIMEOUT", 15*time.Second),

		SessionBackend:      strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		SessionCookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		BookingConfirmDelay:  getEnvAsDuration("BOOKING_CONFIRM_DELAY", 2500*time.Millisecond),
		NoticeDismissDelay:   getEnvAsDuration("NOTICE_DISMISS_DELAY", 3*time.Second),
		WorkspaceIdleTimeout: getEnvAsDuration("WORKSPACE_IDLE_TIMEOUT", 30*time.Minute),

		LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 20),
		LoginRateBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		MetricsToken: strings.TrimSpace(getEnv("METRICS_TOKEN", "")),
	}
}

// UseRedisSessions reports whether tab sessions should be stored in Redis.
func (c *Config) UseRedisSessions() bool {
	return c.SessionBackend == "redis" && strings.TrimSpace(c.RedisAddr) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
