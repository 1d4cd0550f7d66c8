package gatekeeper

import (
	"encoding/json"
	"fmt"
)

// defaultSecrets is the built-in registry used when no secrets document is
// configured. Values are placeholders for local development only.
var defaultSecrets = map[string]providerSecrets{
	"stripe":      {Simple: "stripe_secret_here", IsSimple: true},
	"mercadopago": {Simple: "mp_secret_here", IsSimple: true},
	"test":        {Simple: "test_secret", IsSimple: true},
}

// providerSecrets is one provider's entry in the secrets document: either a
// literal secret (simple mode) or a rotation entry with current/previous
// windows and per-key overrides.
type providerSecrets struct {
	Simple   string
	IsSimple bool

	Current  string
	Previous []string
	Keys     map[string]string
}

// UnmarshalJSON accepts both a bare string and a rotation object
func (p *providerSecrets) UnmarshalJSON(data []byte) error {
	var simple string
	if err := json.Unmarshal(data, &simple); err == nil {
		p.Simple = simple
		p.IsSimple = true
		return nil
	}

	var rotation struct {
		Current  string            `json:"current"`
		Previous []string          `json:"previous"`
		Keys     map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(data, &rotation); err != nil {
		return fmt.Errorf("provider secret entry must be a string or rotation object: %w", err)
	}
	p.Current = rotation.Current
	p.Previous = rotation.Previous
	p.Keys = rotation.Keys
	return nil
}

// Registry resolves (provider, optional key id) to the ordered list of
// candidate signing secrets. Loaded once at startup; reads are lock-free.
type Registry struct {
	providers map[string]providerSecrets
}

// NewRegistry parses the secrets document. An empty document selects the
// built-in defaults; malformed JSON is a startup error.
func NewRegistry(document string) (*Registry, error) {
	if document == "" {
		return &Registry{providers: defaultSecrets}, nil
	}
	var providers map[string]providerSecrets
	if err := json.Unmarshal([]byte(document), &providers); err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_SECRETS_JSON: %w", err)
	}
	return &Registry{providers: providers}, nil
}

// Candidates returns the ordered candidate secrets for a provider. In
// rotation mode a matching key-id override comes first, then the current
// secret, then previous secrets in order. Duplicates are removed preserving
// order. An unknown provider yields an empty list.
func (r *Registry) Candidates(provider, keyID string) []string {
	entry, ok := r.providers[provider]
	if !ok {
		return nil
	}
	if entry.IsSimple {
		return []string{entry.Simple}
	}

	var candidates []string
	if keyID != "" {
		if override, ok := entry.Keys[keyID]; ok {
			candidates = append(candidates, override)
		}
	}
	if entry.Current != "" {
		candidates = append(candidates, entry.Current)
	}
	candidates = append(candidates, entry.Previous...)

	seen := make(map[string]struct{}, len(candidates))
	deduped := candidates[:0]
	for _, secret := range candidates {
		if _, dup := seen[secret]; dup {
			continue
		}
		seen[secret] = struct{}{}
		deduped = append(deduped, secret)
	}
	return deduped
}
