// Package secrets provides the sources a webhook secret registry document
// can be loaded from at startup: environment variable (default), AWS Secrets
// Manager, or HashiCorp Vault. Every source yields the same JSON document —
// a map of provider name to either a literal secret or a rotation entry.
package secrets

import "context"

// Source loads the raw WEBHOOK_SECRETS_JSON document
type Source interface {
	// Load returns the JSON document, or an empty string when the source has
	// nothing configured (the registry then falls back to its defaults).
	Load(ctx context.Context) (string, error)
}
