package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefaults(t *testing.T) {
	registry, err := NewRegistry("")
	require.NoError(t, err)

	for _, provider := range []string{"stripe", "mercadopago", "test"} {
		assert.NotEmpty(t, registry.Candidates(provider, ""), provider)
	}
	assert.Empty(t, registry.Candidates("paypal", ""))
}

func TestNewRegistryRejectsMalformedDocument(t *testing.T) {
	_, err := NewRegistry(`{"stripe": `)
	assert.Error(t, err)
}

func TestCandidatesSimpleEntry(t *testing.T) {
	registry, err := NewRegistry(`{"stripe": "whsec_abc"}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"whsec_abc"}, registry.Candidates("stripe", ""))
	// Key ids have no effect in simple mode.
	assert.Equal(t, []string{"whsec_abc"}, registry.Candidates("stripe", "k1"))
}

func TestCandidatesRotationOrder(t *testing.T) {
	document := `{
		"stripe": {
			"current": "sec_new",
			"previous": ["sec_old1", "sec_old2"],
			"keys": {"k1": "sec_k1"}
		}
	}`
	registry, err := NewRegistry(document)
	require.NoError(t, err)

	assert.Equal(t, []string{"sec_new", "sec_old1", "sec_old2"}, registry.Candidates("stripe", ""))
	assert.Equal(t, []string{"sec_k1", "sec_new", "sec_old1", "sec_old2"}, registry.Candidates("stripe", "k1"))
	// Unknown key id falls back to the rotation list.
	assert.Equal(t, []string{"sec_new", "sec_old1", "sec_old2"}, registry.Candidates("stripe", "k9"))
}

func TestCandidatesDeduplicates(t *testing.T) {
	document := `{
		"stripe": {
			"current": "sec_a",
			"previous": ["sec_a", "sec_b"],
			"keys": {"k1": "sec_b"}
		}
	}`
	registry, err := NewRegistry(document)
	require.NoError(t, err)

	assert.Equal(t, []string{"sec_b", "sec_a"}, registry.Candidates("stripe", "k1"))
}
