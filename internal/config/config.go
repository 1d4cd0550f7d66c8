package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WebhookMaxSkewSeconds is the symmetric timestamp freshness window for
// inbound webhooks. Compile-time constant, deliberately not configurable.
const WebhookMaxSkewSeconds = 300

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// WebhookConfig holds the trust-boundary settings for inbound webhooks
type WebhookConfig struct {
	// SecretsJSON is the raw WEBHOOK_SECRETS_JSON document; empty means the
	// built-in default map
	SecretsJSON string

	// SecretSource selects where the secrets document is loaded from:
	// "env" (default), "aws", or "vault"
	SecretSource string

	// AWSSecretID is the Secrets Manager secret id holding the document
	AWSSecretID string
	AWSRegion   string

	// VaultPath is the KV v2 path holding the document under key "secrets_json"
	VaultPath string

	RateLimitPerMinute int
	IPAllowlist        []string

	// RedisAddr switches the rate limiter to the shared Redis store when set
	RedisAddr     string
	RedisPassword string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "webhook_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Webhook: WebhookConfig{
			SecretsJSON:        getEnv("WEBHOOK_SECRETS_JSON", ""),
			SecretSource:       getEnv("WEBHOOK_SECRET_SOURCE", "env"),
			AWSSecretID:        getEnv("WEBHOOK_SECRETS_AWS_SECRET_ID", ""),
			AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
			VaultPath:          getEnv("WEBHOOK_SECRETS_VAULT_PATH", ""),
			RateLimitPerMinute: getEnvAsInt("WEBHOOK_RATE_LIMIT_PER_MINUTE", 120),
			IPAllowlist:        splitCommaList(getEnv("WEBHOOK_IP_ALLOWLIST", "")),
			RedisAddr:          getEnv("WEBHOOK_RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword:      getEnv("WEBHOOK_RATE_LIMIT_REDIS_PASSWORD", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	switch cfg.Webhook.SecretSource {
	case "env", "aws", "vault":
	default:
		return nil, fmt.Errorf("invalid WEBHOOK_SECRET_SOURCE %q", cfg.Webhook.SecretSource)
	}
	if cfg.Webhook.SecretSource == "aws" && cfg.Webhook.AWSSecretID == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRETS_AWS_SECRET_ID is required for the aws secret source")
	}
	if cfg.Webhook.SecretSource == "vault" && cfg.Webhook.VaultPath == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRETS_VAULT_PATH is required for the vault secret source")
	}
	if cfg.Webhook.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("WEBHOOK_RATE_LIMIT_PER_MINUTE must be positive")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
