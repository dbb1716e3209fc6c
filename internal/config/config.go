package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the service, loaded from
// environment variables with sensible defaults.
type Config struct {
	Port            string
	LogLevel        string
	GitHubBaseURL   string
	RequestTimeout  time.Duration
	CacheTTL        time.Duration
	CacheMaxSize    int
	IPRateLimit     int
	RateLimitBurst  int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment and validates it.
// Invalid values are rejected here rather than clamped, so a misconfigured
// process fails at startup instead of misbehaving later.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		GitHubBaseURL:   getEnv("GITHUB_API_BASE_URL", "https://api.github.com"),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 600)) * time.Second,
		CacheMaxSize:    getEnvInt("CACHE_MAX_SIZE", 1000),
		IPRateLimit:     getEnvInt("IP_RATE_LIMIT_PER_MIN", 60),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST_MULTIPLIER", 2),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		AllowedOrigins:  splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("cache max size must be positive, got %d", c.CacheMaxSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.IPRateLimit <= 0 {
		return fmt.Errorf("IP rate limit must be positive, got %d", c.IPRateLimit)
	}

	u, err := url.Parse(c.GitHubBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid GitHub API base URL %q", c.GitHubBaseURL)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", c.LogLevel)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
