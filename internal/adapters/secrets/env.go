package secrets

import "context"

// EnvSource serves the secrets document captured from the environment at
// configuration time
type EnvSource struct {
	document string
}

// NewEnvSource creates a source backed by the WEBHOOK_SECRETS_JSON value
func NewEnvSource(document string) *EnvSource {
	return &EnvSource{document: document}
}

// Load returns the captured document
func (s *EnvSource) Load(_ context.Context) (string, error) {
	return s.document, nil
}
