package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// VaultSource loads the secrets document from a HashiCorp Vault KV v2 secret.
// The document is stored under the "secrets_json" key of the secret's data.
type VaultSource struct {
	client    *vault.Client
	mountPath string
	path      string
	logger    *zap.Logger
}

// NewVaultSource creates a Vault source. Address and token come from the
// standard VAULT_ADDR / VAULT_TOKEN environment, honored by the client's
// default config.
func NewVaultSource(mountPath, path string, logger *zap.Logger) (*VaultSource, error) {
	cfg := vault.DefaultConfig()
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if mountPath == "" {
		mountPath = "secret"
	}
	return &VaultSource{
		client:    client,
		mountPath: mountPath,
		path:      path,
		logger:    logger,
	}, nil
}

// Load fetches the secrets document from the KV v2 engine
func (s *VaultSource) Load(ctx context.Context) (string, error) {
	s.logger.Info("Retrieving webhook secrets from Vault",
		zap.String("mount", s.mountPath),
		zap.String("path", s.path),
	)

	secret, err := s.client.KVv2(s.mountPath).Get(ctx, s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found: %s", s.path)
	}

	document, ok := secret.Data["secrets_json"].(string)
	if !ok {
		return "", fmt.Errorf("secret %s has no secrets_json key", s.path)
	}
	return document, nil
}
