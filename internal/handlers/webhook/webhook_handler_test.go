package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/handlers/httperr"
	"github.com/hookpay/webhook-service/internal/services/gatekeeper"
)

// The rejection paths below never reach the processor, so the handler is
// wired with a nil one.
func newRejectionHandler(t *testing.T) *Handler {
	t.Helper()
	registry, err := gatekeeper.NewRegistry("")
	require.NoError(t, err)
	gk := gatekeeper.New(registry, gatekeeper.NewMemoryRateLimiter(1000), nil, zap.NewNop())
	return NewHandler(gk, nil, zap.NewNop())
}

func postWebhook(t *testing.T, h *Handler, provider, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/"+provider, bytes.NewReader(body))
	r.RemoteAddr = "203.0.113.10:44321"
	r.SetPathValue("provider", provider)
	if secret != "" {
		ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
		r.Header.Set(gatekeeper.HeaderTimestamp, ts)
		r.Header.Set(gatekeeper.HeaderSignature, gatekeeper.ComputeSignature(secret, ts, body))
	}
	rec := httptest.NewRecorder()
	h.Receive(rec, r)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httperr.ErrorResponse {
	t.Helper()
	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReceiveUnknownProvider(t *testing.T) {
	h := newRejectionHandler(t)
	rec := postWebhook(t, h, "paypal", "test_secret", []byte(`{}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeUnknownProvider), decodeError(t, rec).Code)
}

func TestReceiveMissingHeaders(t *testing.T) {
	h := newRejectionHandler(t)
	rec := postWebhook(t, h, "test", "", []byte(`{}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeMissingHeaders), decodeError(t, rec).Code)
}

func TestReceiveBadSignature(t *testing.T) {
	h := newRejectionHandler(t)
	rec := postWebhook(t, h, "test", "wrong_secret", []byte(`{}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeBadSignature), decodeError(t, rec).Code)
}

func TestReceiveInvalidEnvelope(t *testing.T) {
	h := newRejectionHandler(t)

	// Authenticates fine but the body has no event_id.
	body := []byte(`{"event_type":"payment.succeeded","payload_json":{}}`)
	rec := postWebhook(t, h, "test", "test_secret", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeInvalidPayload), decodeError(t, rec).Code)
}

func TestReceiveNonObjectPayload(t *testing.T) {
	h := newRejectionHandler(t)

	body := []byte(`{"event_id":"evt_1","event_type":"payment.succeeded","payload_json":"nope"}`)
	rec := postWebhook(t, h, "test", "test_secret", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payload_json must be an object", decodeError(t, rec).Error)
}
