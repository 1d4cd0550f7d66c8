// Package gatekeeper is the trust boundary for inbound provider webhooks:
// secret resolution, header and timestamp validation, IP allowlisting, rate
// limiting and HMAC verification, in that order.
package gatekeeper

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/config"
	"github.com/hookpay/webhook-service/internal/domain"
)

// Signing header names shared with the providers.
const (
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"
	HeaderKeyID     = "X-Webhook-Key-Id"
)

// VerifiedWebhook is the gatekeeper's accepted output. RawBody is the exact
// byte sequence the signature was verified over; it is persisted verbatim so
// re-verification and audit remain possible.
type VerifiedWebhook struct {
	RawBody   []byte
	Signature string
	Timestamp int64
}

// Gatekeeper authenticates inbound webhook requests
type Gatekeeper struct {
	registry    *Registry
	rateLimiter RateLimiter
	ipAllowlist map[string]struct{}
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a gatekeeper. An empty allowlist disables the IP check.
func New(registry *Registry, rateLimiter RateLimiter, ipAllowlist []string, logger *zap.Logger) *Gatekeeper {
	allowlist := make(map[string]struct{}, len(ipAllowlist))
	for _, ip := range ipAllowlist {
		allowlist[ip] = struct{}{}
	}
	return &Gatekeeper{
		registry:    registry,
		rateLimiter: rateLimiter,
		ipAllowlist: allowlist,
		logger:      logger,
		now:         time.Now,
	}
}

// Verify runs the full check pipeline over an incoming webhook request. The
// body must already have been read by the caller; it is the exact bytes the
// signature is computed over.
func (g *Gatekeeper) Verify(ctx context.Context, provider string, r *http.Request, body []byte) (*VerifiedWebhook, error) {
	keyID := r.Header.Get(HeaderKeyID)
	candidates := g.registry.Candidates(provider, keyID)
	if len(candidates) == 0 {
		return nil, domain.ErrUnknownProvider
	}

	timestampHeader := r.Header.Get(HeaderTimestamp)
	signature := r.Header.Get(HeaderSignature)
	if timestampHeader == "" || signature == "" {
		return nil, domain.ErrMissingHeaders
	}

	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return nil, domain.ErrBadTimestamp
	}

	now := g.now().UTC()
	skew := now.Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > config.WebhookMaxSkewSeconds {
		return nil, domain.ErrStaleTimestamp
	}

	clientIP := peerAddress(r)
	if len(g.ipAllowlist) > 0 {
		if _, allowed := g.ipAllowlist[clientIP]; !allowed {
			g.logger.Warn("webhook from unlisted ip",
				zap.String("provider", provider),
				zap.String("ip", clientIP),
			)
			return nil, domain.ErrIPForbidden
		}
	}

	rateKey := fmt.Sprintf("%s:%s", provider, clientIP)
	allowed, err := g.rateLimiter.Allow(ctx, rateKey, now)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "rate limiter unavailable", err)
	}
	if !allowed {
		g.logger.Warn("webhook rate limit exceeded",
			zap.String("provider", provider),
			zap.String("ip", clientIP),
		)
		return nil, domain.ErrRateLimited
	}

	// The signed payload is "<ts>." followed by the body bytes; the dot
	// separator removes ambiguity between timestamps of varying length.
	if !signatureMatches(signature, timestampHeader, body, candidates) {
		g.logger.Warn("webhook signature verification failed",
			zap.String("provider", provider),
			zap.String("ip", clientIP),
			zap.Int("candidates", len(candidates)),
		)
		return nil, domain.ErrBadSignature
	}

	if !utf8.Valid(body) {
		return nil, domain.ErrBadBodyEncoding
	}

	return &VerifiedWebhook{
		RawBody:   body,
		Signature: signature,
		Timestamp: timestamp,
	}, nil
}

// signatureMatches compares the provided hex signature against every
// candidate secret in order using a constant-time comparison. The first
// match wins.
func signatureMatches(signature, timestampHeader string, body []byte, candidates []string) bool {
	for _, secret := range candidates {
		expected := ComputeSignature(secret, timestampHeader, body)
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return true
		}
	}
	return false
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of
// "<ts>." || body under the secret. Exported for outbound simulation and
// test fixtures.
func ComputeSignature(secret, timestampHeader string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestampHeader))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// peerAddress extracts the peer's network address. Forwarded headers are
// deliberately not consulted: the allowlist matches the transport peer.
func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
