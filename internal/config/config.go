// Package config provides environment-aware configuration management.
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

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all application configuration. It is constructed once in
// main and threaded through every service constructor; nothing reads the
// environment directly outside of Load.
type Config struct {
	Env Environment

	// HTTP
	APIPort     int
	MetricsPort int
	CORSOrigins []string

	// Database
	DatabaseURL      string
	DBMaxConnections int
	DBIdleTimeout    time.Duration

	// Auth
	JWTAccessTokenTTL  time.Duration
	JWTRefreshTokenTTL time.Duration
	JWTKeyDir          string
	OAuthClientID      string
	OAuthIssuers       []string

	// Rate limiting
	RateLimitEnabled      bool
	RateLimitGeneralPerMin int
	RateLimitAIPerMin      int
	RateLimitAuthPerMin    int

	// Idempotency
	IdempotencyKeyTTL time.Duration

	// Tier limits (base, before achievement perks)
	FreeTaskMax        int
	ProTaskMax         int
	FreeNoteMax        int
	ProNoteMax         int
	FreeSubtaskMax     int
	ProSubtaskMax      int
	FreeNoteDescMax    int
	ProNoteDescMax     int

	// Credits
	KickstartCreditAmount int
	DailyCreditAmount     int
	SubscriptionCarryoverCap int
	MonthlyPurchaseCap    int

	// AI
	AIVendorBaseURL        string
	AIVendorAPIKey         string
	AIChatTimeout          time.Duration
	AITranscriptionTimeout time.Duration
	AIPerTaskWarnAt        int
	AIPerTaskHardCapAt     int
	CreditsPerAIOperation  int
	CreditsPerTranscriptionMinute int
	TranscriptionMaxSeconds int

	// Job engine
	JobPollInterval    time.Duration
	JobBatchSize       int
	JobStaleLockAfter  time.Duration
	JobMaxAttempts     int
	JobRetryBackoff    []time.Duration

	// Webhooks
	CheckoutWebhookSecret string
	CheckoutBaseURL       string

	// Redis (optional backend for the rate limit counters)
	RedisURL string

	// Activity log retention
	ActivityLogRetention time.Duration

	// Recovery
	TombstoneRetention   time.Duration
	TombstoneMaxPerUser  int

	// Logging
	LogLevel  string
	LogFormat string

	// Features
	TestMode bool
}

// Load loads configuration based on the TASKWARDEN_ENV environment variable,
// optionally overlaying a local .env file.
func Load() (*Config, error) {
	envStr := os.Getenv("TASKWARDEN_ENV")
	if envStr == "" {
		envStr = string(Development)
	}
	env, ok := parseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid TASKWARDEN_ENV: %s (must be development, testing, or production)", envStr)
	}

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: could not load .env: %v\n", err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func parseEnvironment(s string) (Environment, bool) {
	switch Environment(strings.ToLower(s)) {
	case Development, Testing, Production:
		return Environment(strings.ToLower(s)), true
	default:
		return "", false
	}
}

func (c *Config) loadFromEnv() error {
	var err error

	c.APIPort = getIntEnv("API_PORT", 8080)
	c.MetricsPort = getIntEnv("METRICS_PORT", 9090)
	c.CORSOrigins = strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")

	c.DatabaseURL = getEnv("DATABASE_URL", "")
	if c.DatabaseURL == "" && c.Env == Production {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	c.DBMaxConnections = getIntEnv("DB_MAX_CONNECTIONS", 5)
	if c.DBIdleTimeout, err = getDurationEnv("DB_IDLE_TIMEOUT", time.Hour); err != nil {
		return err
	}

	if c.JWTAccessTokenTTL, err = getDurationEnv("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return err
	}
	if c.JWTRefreshTokenTTL, err = getDurationEnv("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return err
	}
	c.JWTKeyDir = getEnv("JWT_KEY_DIR", "keys")
	c.OAuthClientID = getEnv("OAUTH_CLIENT_ID", "")
	c.OAuthIssuers = strings.Split(getEnv("OAUTH_ISSUERS", "https://accounts.google.com"), ",")

	c.RateLimitEnabled = getBoolEnv("RATE_LIMIT_ENABLED", true)
	c.RateLimitGeneralPerMin = getIntEnv("RATE_LIMIT_GENERAL_PER_MIN", 100)
	c.RateLimitAIPerMin = getIntEnv("RATE_LIMIT_AI_PER_MIN", 20)
	c.RateLimitAuthPerMin = getIntEnv("RATE_LIMIT_AUTH_PER_MIN", 10)

	if c.IdempotencyKeyTTL, err = getDurationEnv("IDEMPOTENCY_KEY_TTL", 24*time.Hour); err != nil {
		return err
	}

	c.FreeTaskMax = getIntEnv("FREE_TASK_MAX", 50)
	c.ProTaskMax = getIntEnv("PRO_TASK_MAX", 1000)
	c.FreeNoteMax = getIntEnv("FREE_NOTE_MAX", 10)
	c.ProNoteMax = getIntEnv("PRO_NOTE_MAX", 25)
	c.FreeSubtaskMax = getIntEnv("FREE_SUBTASK_MAX", 4)
	c.ProSubtaskMax = getIntEnv("PRO_SUBTASK_MAX", 10)
	c.FreeNoteDescMax = getIntEnv("FREE_NOTE_DESC_MAX", 1000)
	c.ProNoteDescMax = getIntEnv("PRO_NOTE_DESC_MAX", 2000)

	c.KickstartCreditAmount = getIntEnv("KICKSTART_CREDIT_AMOUNT", 20)
	c.DailyCreditAmount = getIntEnv("DAILY_CREDIT_AMOUNT", 10)
	c.SubscriptionCarryoverCap = getIntEnv("SUBSCRIPTION_CARRYOVER_CAP", 50)
	c.MonthlyPurchaseCap = getIntEnv("MONTHLY_PURCHASE_CAP", 500)

	c.AIVendorBaseURL = getEnv("AI_VENDOR_BASE_URL", "")
	c.AIVendorAPIKey = getEnv("AI_VENDOR_API_KEY", "")
	if c.AIChatTimeout, err = getDurationEnv("AI_CHAT_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	if c.AITranscriptionTimeout, err = getDurationEnv("AI_TRANSCRIPTION_TIMEOUT", 60*time.Second); err != nil {
		return err
	}
	c.AIPerTaskWarnAt = getIntEnv("AI_PER_TASK_WARN_AT", 5)
	c.AIPerTaskHardCapAt = getIntEnv("AI_PER_TASK_HARD_CAP_AT", 10)
	c.CreditsPerAIOperation = getIntEnv("CREDITS_PER_AI_OPERATION", 1)
	c.CreditsPerTranscriptionMinute = getIntEnv("CREDITS_PER_TRANSCRIPTION_MINUTE", 5)
	c.TranscriptionMaxSeconds = getIntEnv("TRANSCRIPTION_MAX_SECONDS", 300)

	if c.JobPollInterval, err = getDurationEnv("JOB_POLL_INTERVAL", 5*time.Second); err != nil {
		return err
	}
	c.JobBatchSize = getIntEnv("JOB_BATCH_SIZE", 10)
	if c.JobStaleLockAfter, err = getDurationEnv("JOB_STALE_LOCK_AFTER", 600*time.Second); err != nil {
		return err
	}
	c.JobMaxAttempts = getIntEnv("JOB_MAX_ATTEMPTS", 3)
	c.JobRetryBackoff = []time.Duration{
		60 * time.Second,
		300 * time.Second,
		900 * time.Second,
		1800 * time.Second,
		3600 * time.Second,
	}

	c.CheckoutWebhookSecret = getEnv("CHECKOUT_WEBHOOK_SECRET", "")
	c.CheckoutBaseURL = getEnv("CHECKOUT_BASE_URL", "https://checkout.example.com/session")
	c.RedisURL = getEnv("REDIS_URL", "")

	if c.ActivityLogRetention, err = getDurationEnv("ACTIVITY_LOG_RETENTION", 30*24*time.Hour); err != nil {
		return err
	}
	if c.TombstoneRetention, err = getDurationEnv("TOMBSTONE_RETENTION", 14*24*time.Hour); err != nil {
		return err
	}
	c.TombstoneMaxPerUser = getIntEnv("TOMBSTONE_MAX_PER_USER", 3)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")
	c.TestMode = getBoolEnv("TEST_MODE", false)

	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate applies production-hardening checks.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set in production")
		}
		if c.CheckoutWebhookSecret == "" {
			return fmt.Errorf("CHECKOUT_WEBHOOK_SECRET must be set in production")
		}
		if c.TestMode {
			return fmt.Errorf("TEST_MODE must be false in production")
		}
		if !c.RateLimitEnabled {
			return fmt.Errorf("RATE_LIMIT_ENABLED must be true in production")
		}
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API_PORT: %d", c.APIPort)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
