package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "webhook_service", cfg.Database.Database)
	assert.Equal(t, "env", cfg.Webhook.SecretSource)
	assert.Equal(t, 120, cfg.Webhook.RateLimitPerMinute)
	assert.Empty(t, cfg.Webhook.IPAllowlist)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("WEBHOOK_IP_ALLOWLIST", "10.0.0.1, 10.0.0.2 ,")
	t.Setenv("DB_NAME", "hookpay")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Webhook.RateLimitPerMinute)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Webhook.IPAllowlist)
	assert.Equal(t, "hookpay", cfg.Database.Database)
}

func TestLoadFromEnvValidatesSecretSource(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET_SOURCE", "consul")
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnvAWSRequiresSecretID(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET_SOURCE", "aws")
	_, err := LoadFromEnv()
	assert.Error(t, err)

	t.Setenv("WEBHOOK_SECRETS_AWS_SECRET_ID", "hookpay/webhook-secrets")
	_, err = LoadFromEnv()
	assert.NoError(t, err)
}

func TestLoadFromEnvVaultRequiresPath(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET_SOURCE", "vault")
	_, err := LoadFromEnv()
	assert.Error(t, err)

	t.Setenv("WEBHOOK_SECRETS_VAULT_PATH", "secret/hookpay/webhooks")
	_, err = LoadFromEnv()
	assert.NoError(t, err)
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "svc", Password: "pw",
		Database: "hookpay", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=pw dbname=hookpay sslmode=require",
		cfg.ConnectionString(),
	)
}
