// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// IngestConfig provides settings for the ingestion pipeline.
type IngestConfig interface {
	GetConfidenceThreshold() float64
	GetAmbiguousAutoMerge() bool
	GetSubmitSharedSecret() string
	GetWebhookSigningSecret() string
	GetDefaultRegion() string
}

// MailboxConfig provides settings for mailbox polling and token lifecycle.
type MailboxConfig interface {
	GetMailboxAPIBaseURL() string
	GetMailboxOAuthClientID() string
	GetMailboxOAuthClientSecret() string
	GetMailboxPollMaxResults() int
	GetMailboxPollLeaseTTL() time.Duration
}

// ClassifierConfig provides settings for the lead classifier client.
type ClassifierConfig interface {
	GetClassifierBaseURL() string
	GetClassifierAPIKey() string
	GetClassifierModel() string
	IsClassifierEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetMailboxSweepInterval() time.Duration
	GetTokenSweepInterval() time.Duration
}

// EmailConfig provides settings for notification email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	ConfidenceThreshold      float64
	AmbiguousAutoMerge       bool
	SubmitSharedSecret       string
	WebhookSigningSecret     string
	DefaultRegion            string
	MailboxAPIBaseURL        string
	MailboxOAuthClientID     string
	MailboxOAuthClientSecret string
	MailboxPollMaxResults    int
	MailboxPollLeaseTTL      time.Duration
	ClassifierBaseURL        string
	ClassifierAPIKey         string
	ClassifierModel          string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	MailboxSweepInterval     time.Duration
	TokenSweepInterval       time.Duration
	EmailEnabled             bool
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// IngestConfig implementation
func (c *Config) GetConfidenceThreshold() float64 { return c.ConfidenceThreshold }
func (c *Config) GetAmbiguousAutoMerge() bool     { return c.AmbiguousAutoMerge }
func (c *Config) GetSubmitSharedSecret() string   { return c.SubmitSharedSecret }
func (c *Config) GetWebhookSigningSecret() string { return c.WebhookSigningSecret }
func (c *Config) GetDefaultRegion() string        { return c.DefaultRegion }

// MailboxConfig implementation
func (c *Config) GetMailboxAPIBaseURL() string        { return c.MailboxAPIBaseURL }
func (c *Config) GetMailboxOAuthClientID() string     { return c.MailboxOAuthClientID }
func (c *Config) GetMailboxOAuthClientSecret() string { return c.MailboxOAuthClientSecret }
func (c *Config) GetMailboxPollMaxResults() int       { return c.MailboxPollMaxResults }
func (c *Config) GetMailboxPollLeaseTTL() time.Duration {
	return c.MailboxPollLeaseTTL
}

// ClassifierConfig implementation
func (c *Config) GetClassifierBaseURL() string { return c.ClassifierBaseURL }
func (c *Config) GetClassifierAPIKey() string  { return c.ClassifierAPIKey }
func (c *Config) GetClassifierModel() string   { return c.ClassifierModel }
func (c *Config) IsClassifierEnabled() bool    { return c.ClassifierAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetMailboxSweepInterval() time.Duration {
	return c.MailboxSweepInterval
}
func (c *Config) GetTokenSweepInterval() time.Duration {
	return c.TokenSweepInterval
}

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		ConfidenceThreshold:      mustFloat(getEnv("INGEST_CONFIDENCE_THRESHOLD", "0.5")),
		AmbiguousAutoMerge:       strings.EqualFold(getEnv("INGEST_AMBIGUOUS_AUTO_MERGE", "false"), "true"),
		SubmitSharedSecret:       getEnv("INGEST_SUBMIT_SECRET", ""),
		WebhookSigningSecret:     getEnv("WEBHOOK_SIGNING_SECRET", ""),
		DefaultRegion:            getEnv("PHONE_DEFAULT_REGION", "NL"),
		MailboxAPIBaseURL:        getEnv("MAILBOX_API_BASE_URL", "https://gmail.googleapis.com"),
		MailboxOAuthClientID:     getEnv("MAILBOX_OAUTH_CLIENT_ID", ""),
		MailboxOAuthClientSecret: getEnv("MAILBOX_OAUTH_CLIENT_SECRET", ""),
		MailboxPollMaxResults:    int(mustInt64(getEnv("MAILBOX_POLL_MAX_RESULTS", "25"))),
		MailboxPollLeaseTTL:      mustDuration(getEnv("MAILBOX_POLL_LEASE_TTL", "5m")),
		ClassifierBaseURL:        getEnv("CLASSIFIER_BASE_URL", "https://api.moonshot.ai/v1"),
		ClassifierAPIKey:         getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierModel:          getEnv("CLASSIFIER_MODEL", "kimi-k2-turbo-preview"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		MailboxSweepInterval:     mustDuration(getEnv("MAILBOX_SWEEP_INTERVAL", "5m")),
		TokenSweepInterval:       mustDuration(getEnv("TOKEN_SWEEP_INTERVAL", "30m")),
		EmailEnabled:             emailEnabled && smtpHost != "",
		SMTPHost:                 smtpHost,
		SMTPPort:                 int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Leadflow"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("INGEST_CONFIDENCE_THRESHOLD must be between 0 and 1")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
