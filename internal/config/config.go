package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Identity
	JWTSecret string
	JWTExpiry time.Duration

	// Registry
	RegistryPath string

	// Settlement
	TransferProvider  string // "ledger" or "stripe"
	StripeSecretKey   string
	StripeCurrency    string
	SettlementTimeout time.Duration

	// Events
	EventWebhookURL    string
	EventWebhookSecret string

	// HTTP
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Observability (optional)
	SentryDSN string

	// Email (ops alerts)
	EmailFrom     string
	ResendAPIKey  string
	OpsAlertEmail string

	// Storage (S3-compatible receipt archive, optional)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Bullseye"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/bullseye.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"),

		// Identity
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Registry
		RegistryPath: envString("REGISTRY_PATH", "./registry.toml"),

		// Settlement
		TransferProvider:  envString("TRANSFER_PROVIDER", "ledger"),
		StripeSecretKey:   envString("STRIPE_SECRET_KEY", ""),
		StripeCurrency:    envString("STRIPE_CURRENCY", "usd"),
		SettlementTimeout: envDuration("SETTLEMENT_TIMEOUT", 30*time.Second),

		// Events
		EventWebhookURL:    envString("EVENT_WEBHOOK_URL", ""),
		EventWebhookSecret: envString("EVENT_WEBHOOK_SECRET", ""),

		// HTTP
		CORSOrigins:    envList("CORS_ORIGINS", []string{"*"}),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Email (RESEND_API_KEY optional in development)
		EmailFrom:     envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey:  envString("RESEND_API_KEY", ""),
		OpsAlertEmail: envString("OPS_ALERT_EMAIL", ""),

		// Storage
		S3Region:    envString("S3_REGION", ""),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures settlement can actually move value in production deployments.
// Development allows the built-in ledger provider and log-only alerts.
func validateProduction(cfg *Config) {
	if cfg.TransferProvider == "stripe" && cfg.StripeSecretKey == "" {
		slog.Error("production deployment with stripe transfers requires STRIPE_SECRET_KEY")
		os.Exit(1)
	}
	if cfg.EventWebhookURL != "" && cfg.EventWebhookSecret == "" {
		slog.Error("production deployment requires EVENT_WEBHOOK_SECRET when EVENT_WEBHOOK_URL is set")
		os.Exit(1)
	}
	if cfg.OpsAlertEmail != "" && cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY when OPS_ALERT_EMAIL is set",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ArchiveEnabled reports whether settlement receipts should be archived to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}
