package config

import (
	"encoding/base64"
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

	ClientID        string
	ClientSecret    string
	RedirectURI     string
	Scopes          []string
	APIBaseURL      string
	MarketplaceURL  string
	APIVersion      string
	UpstreamTimeout time.Duration

	SuccessRedirectURL string
	ErrorRedirectURL   string

	TokenEncryptionKey []byte

	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

var defaultScopes = []string{
	"products.readonly", "products.write",
	"products/prices.readonly", "products/prices.write",
	"medias.readonly", "medias.write",
	"contacts.readonly", "contacts.write",
	"workflows.readonly",
	"locations.readonly",
	"oauth.readonly", "oauth.write",
}

// Load reads configuration from environment variables with sane defaults.
// Client credentials, the redirect URI, the database URL, and the token
// encryption key have no fallback and fail fast when missing.
func Load() (Config, error) {
	_ = godotenv.Load()

	clientID := strings.TrimSpace(os.Getenv("GHL_CLIENT_ID"))
	if clientID == "" {
		return Config{}, fmt.Errorf("GHL_CLIENT_ID is required")
	}
	clientSecret := strings.TrimSpace(os.Getenv("GHL_CLIENT_SECRET"))
	if clientSecret == "" {
		return Config{}, fmt.Errorf("GHL_CLIENT_SECRET is required")
	}
	redirectURI := strings.TrimSpace(os.Getenv("GHL_REDIRECT_URI"))
	if redirectURI == "" {
		return Config{}, fmt.Errorf("GHL_REDIRECT_URI is required")
	}

	keyRaw := strings.TrimSpace(os.Getenv("TOKEN_ENCRYPTION_KEY"))
	if keyRaw == "" {
		return Config{}, fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyRaw)
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return Config{}, fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "ghl-api-backend"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		ClientID:        clientID,
		ClientSecret:    clientSecret,
		RedirectURI:     redirectURI,
		Scopes:          getList("GHL_SCOPES", defaultScopes),
		APIBaseURL:      getEnv("GHL_API_BASE_URL", "https://services.leadconnectorhq.com"),
		MarketplaceURL:  getEnv("GHL_MARKETPLACE_URL", "https://marketplace.gohighlevel.com/oauth/chooselocation"),
		APIVersion:      getEnv("GHL_API_VERSION", "2021-07-28"),
		UpstreamTimeout: getDuration("GHL_UPSTREAM_TIMEOUT", 15*time.Second),

		SuccessRedirectURL: getEnv("OAUTH_SUCCESS_REDIRECT_URL", "/"),
		ErrorRedirectURL:   getEnv("OAUTH_ERROR_REDIRECT_URL", "/oauth-error"),

		TokenEncryptionKey: key,

		RateLimitRPM:      getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Installation-Id"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// ScopeString returns the fixed scope list as the space-delimited form the
// authorization endpoint expects.
func (c Config) ScopeString() string {
	return strings.Join(c.Scopes, " ")
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
