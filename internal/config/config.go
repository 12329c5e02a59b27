package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessKeyPath  string
	RefreshKeyPath string

	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	AuthCodeTTL            time.Duration
	MaxActiveRefreshTokens int

	OAuthClientIDs  []string
	GoogleClientIDs []string
	TurnstileSecret string

	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// CaptchaEnabled reports whether Turnstile verification is configured.
func (c Config) CaptchaEnabled() bool {
	return c.TurnstileSecret != ""
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "nits-auth"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		AccessKeyPath:  getEnv("ACCESS_TOKEN_KEY_PATH", "keys/access.pem"),
		RefreshKeyPath: getEnv("REFRESH_TOKEN_KEY_PATH", "keys/refresh.pem"),

		AccessTokenTTL:         getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:        getDuration("REFRESH_TOKEN_TTL", 720*time.Hour),
		AuthCodeTTL:            getDuration("AUTH_CODE_TTL", 60*time.Second),
		MaxActiveRefreshTokens: getInt("MAX_ACTIVE_REFRESH_TOKENS", 5),

		OAuthClientIDs:  getList("OAUTH_CLIENT_IDS", nil),
		GoogleClientIDs: getList("GOOGLE_CLIENT_IDS", nil),
		TurnstileSecret: os.Getenv("TURNSTILE_SECRET"),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.OAuthClientIDs) == 0 {
		return Config{}, fmt.Errorf("OAUTH_CLIENT_IDS is required")
	}
	if len(cfg.GoogleClientIDs) == 0 {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_IDS is required")
	}
	if cfg.MaxActiveRefreshTokens < 1 {
		return Config{}, fmt.Errorf("MAX_ACTIVE_REFRESH_TOKENS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
