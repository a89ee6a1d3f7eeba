package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	Env      string
	MongoURI string
	MongoDB  string

	RedisAddr         string
	RabbitURL         string
	RabbitExchange    string
	RabbitQueue       string
	RabbitConcurrency int

	SessionSecret  string
	SessionTTLDays int
	CookieSecure   bool

	PendingAuthTTL    time.Duration
	PendingSweepEvery time.Duration
	TOTPIssuer        string

	LoginMaxFailures   int
	LoginFailureWindow time.Duration
	AuthIPRatePerMin   int
	TrustedProxies     []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	OAuthStateSecret   string

	GeminiAPIKey  string
	GeminiBaseURL string

	DDEnabled bool
}

func Load() Config {
	env := getenv("APP_ENV", "development")
	return Config{
		Port:     getenv("APP_PORT", "8080"),
		Env:      env,
		MongoURI: getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getenv("MONGO_DB", "syncora"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitExchange:    getenv("RABBIT_EXCHANGE", "auth.events"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "syncora.notifications"),
		RabbitConcurrency: geti("RABBIT_CONCURRENCY", 4),

		SessionSecret:  getenv("SESSION_SECRET", "syncora-secret-change-in-production"),
		SessionTTLDays: geti("SESSION_TTL_DAYS", 7),
		CookieSecure:   getb("COOKIE_SECURE", env == "production"),

		PendingAuthTTL:    time.Duration(geti("PENDING_AUTH_TTL_SEC", 300)) * time.Second,
		PendingSweepEvery: time.Duration(geti("PENDING_SWEEP_SEC", 300)) * time.Second,
		TOTPIssuer:        getenv("TOTP_ISSUER", "Syncora"),

		LoginMaxFailures:   geti("LOGIN_MAX_FAILURES", 5),
		LoginFailureWindow: time.Duration(geti("LOGIN_FAILURE_WINDOW_SEC", 900)) * time.Second,
		AuthIPRatePerMin:   geti("AUTH_IP_RATE_PER_MIN", 30),
		TrustedProxies:     getlist("TRUSTED_PROXIES"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  getenv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),
		OAuthStateSecret:   getenv("OAUTH_STATE_SECRET", "syncora-state-change-in-production"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		DDEnabled: getb("DD_ENABLED", false),
	}
}

// Production reports whether the service runs with production defaults.
func (c Config) Production() bool { return c.Env == "production" }

// GoogleEnabled reports whether both OAuth client credentials are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func geti(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getlist splits a comma-separated value, dropping empty items.
func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getb(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
