package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                   string
	Port                     string
	BackendBaseURL           string
	GatewayPrefix            string
	SessionCookieName        string
	SessionTTL               time.Duration
	LedgerDBPath             string
	StaticDir                string
	PollTimeout              time.Duration
	PollInterval             time.Duration
	SimulateOnTransportError bool
	MaxUploadBytes           int64
	CORSAllowedOrigins       []string
	HTTPReadTimeout          time.Duration
	HTTPWriteTimeout         time.Duration
	HTTPIdleTimeout          time.Duration
	RateLimitPerMin          int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		Port:                     getEnv("PORT", "8080"),
		BackendBaseURL:           strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/"),
		GatewayPrefix:            getEnv("GATEWAY_PREFIX", "/gateway"),
		SessionCookieName:        getEnv("SESSION_COOKIE_NAME", "studio_session"),
		SessionTTL:               time.Hour * 24 * time.Duration(getEnvInt("SESSION_TTL_DAYS", 7)),
		LedgerDBPath:             getEnv("LEDGER_DB_PATH", "data/ledger.db"),
		StaticDir:                getEnv("STATIC_DIR", "static"),
		PollTimeout:              time.Second * time.Duration(getEnvInt("JOB_POLL_TIMEOUT_SECONDS", 120)),
		PollInterval:             time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 3)),
		SimulateOnTransportError: getEnvBool("SIMULATE_ON_TRANSPORT_ERROR", false),
		MaxUploadBytes:           int64(getEnvInt("MAX_UPLOAD_MB", 100)) << 20,
		CORSAllowedOrigins:       splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:          time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:         time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:          time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:          getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if !strings.HasPrefix(cfg.GatewayPrefix, "/") {
		cfg.GatewayPrefix = "/" + cfg.GatewayPrefix
	}
	cfg.GatewayPrefix = strings.TrimRight(cfg.GatewayPrefix, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
