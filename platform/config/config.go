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
	IsMigrationsEnabled() bool
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
	GetRateLimitPerMinute() int
}

// SchedulerConfig provides settings for the asynq client, worker and scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSyncRetryMax() int
	GetReconcileCron() string
}

// CRMConfig provides settings for the outbound CRM client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAccessToken() string
	GetCRMAPIVersion() string
	GetCRMRequestsPerSecond() float64
	GetCRMTimeout() time.Duration
	IsCRMEnabled() bool
}

// PipelineConfig provides settings for the opportunity/task orchestrator.
type PipelineConfig interface {
	GetSyncTimeout() time.Duration
	IsTaskSeedEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	MigrationsEnabled    bool
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	RateLimitPerMinute   int
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	SyncRetryMax         int
	ReconcileCron        string
	CRMBaseURL           string
	CRMAccessToken       string
	CRMAPIVersion        string
	CRMRequestsPerSecond float64
	CRMTimeout           time.Duration
	SyncTimeout          time.Duration
	TaskSeedEnabled      bool
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string    { return c.DatabaseURL }
func (c *Config) IsMigrationsEnabled() bool { return c.MigrationsEnabled }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSyncRetryMax() int      { return c.SyncRetryMax }
func (c *Config) GetReconcileCron() string  { return c.ReconcileCron }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string             { return c.CRMBaseURL }
func (c *Config) GetCRMAccessToken() string         { return c.CRMAccessToken }
func (c *Config) GetCRMAPIVersion() string          { return c.CRMAPIVersion }
func (c *Config) GetCRMRequestsPerSecond() float64  { return c.CRMRequestsPerSecond }
func (c *Config) GetCRMTimeout() time.Duration      { return c.CRMTimeout }
func (c *Config) IsCRMEnabled() bool                { return c.CRMBaseURL != "" && c.CRMAccessToken != "" }

// PipelineConfig implementation
func (c *Config) GetSyncTimeout() time.Duration { return c.SyncTimeout }
func (c *Config) IsTaskSeedEnabled() bool       { return c.TaskSeedEnabled }

// Load reads configuration from the environment, loading a .env file first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		MigrationsEnabled:    strings.EqualFold(getEnv("DB_MIGRATIONS_ENABLED", "true"), "true"),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerMinute:   mustInt(getEnv("RATE_LIMIT_PER_MINUTE", "120")),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SyncRetryMax:         mustInt(getEnv("CRM_SYNC_RETRY_MAX", "8")),
		ReconcileCron:        getEnv("CRM_RECONCILE_CRON", "@every 1h"),
		CRMBaseURL:           strings.TrimRight(getEnv("CRM_BASE_URL", ""), "/"),
		CRMAccessToken:       getEnv("CRM_ACCESS_TOKEN", ""),
		CRMAPIVersion:        getEnv("CRM_API_VERSION", "v60.0"),
		CRMRequestsPerSecond: mustFloat(getEnv("CRM_REQUESTS_PER_SECOND", "5")),
		CRMTimeout:           mustDuration(getEnv("CRM_TIMEOUT", "10s")),
		SyncTimeout:          mustDuration(getEnv("CRM_SYNC_TIMEOUT", "15s")),
		TaskSeedEnabled:      strings.EqualFold(getEnv("TASK_SEED_ENABLED", "true"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if (cfg.CRMBaseURL == "") != (cfg.CRMAccessToken == "") {
		return nil, fmt.Errorf("CRM_BASE_URL and CRM_ACCESS_TOKEN must be set together")
	}
	if cfg.SyncTimeout <= 0 {
		return nil, fmt.Errorf("CRM_SYNC_TIMEOUT must be a positive duration")
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

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
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
