package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// StateTokenTTL bounds how long a signed state token stays valid.
	StateTokenTTL = 10 * time.Minute

	// stateTokenSkewBuffer rejects tokens this close to expiry so a
	// slow redirect does not race the deadline.
	stateTokenSkewBuffer = 30 * time.Second

	minStateSigningSecretBytes = 32
)

// StatePayload is the flow context round-tripped through the provider
// redirect. It is never stored server-side; the signature is the only
// integrity guarantee.
type StatePayload struct {
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
	TenantID    string `json:"tenant_id"`
	ProviderID  string `json:"provider_id"`
	ConnectorID string `json:"connector_id,omitempty"`
	ReturnTo    string `json:"return_to,omitempty"`
}

// StateSigner mints and verifies HMAC-SHA256 state tokens. Tokens are
// base64url(payload JSON) + "." + base64url(mac), safe to embed in a
// query parameter.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type StateSignerOption func(*StateSigner)

// WithStateClock overrides the signer's clock. Tests use it to walk
// tokens through their expiry window.
func WithStateClock(now func() time.Time) StateSignerOption {
	return func(s *StateSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStateTTL overrides the default token lifetime.
func WithStateTTL(ttl time.Duration) StateSignerOption {
	return func(s *StateSigner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStateSigner validates the signing secret up front; a process
// without a secret must refuse to operate rather than mint forgeable
// tokens.
func NewStateSigner(secret []byte, options ...StateSignerOption) (*StateSigner, error) {
	if len(secret) < minStateSigningSecretBytes {
		return nil, fmt.Errorf("core: state signing secret must be at least %d bytes, got %d", minStateSigningSecretBytes, len(secret))
	}
	signer := &StateSigner{
		secret: append([]byte(nil), secret...),
		ttl:    StateTokenTTL,
		now:    time.Now,
	}
	for _, option := range options {
		option(signer)
	}
	return signer, nil
}

// Sign stamps issued/expiry times onto payload and returns the signed
// token. TenantID and ProviderID are required; ConnectorID and
// ReturnTo travel as-is.
func (s *StateSigner) Sign(payload StatePayload) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: state signer is not configured")
	}
	payload.TenantID = strings.TrimSpace(payload.TenantID)
	payload.ProviderID = strings.TrimSpace(payload.ProviderID)
	payload.ConnectorID = strings.TrimSpace(payload.ConnectorID)
	if payload.TenantID == "" {
		return "", fmt.Errorf("core: state payload tenant id is required")
	}
	if payload.ProviderID == "" {
		return "", fmt.Errorf("core: state payload provider id is required")
	}

	now := s.now().UTC()
	payload.IssuedAt = now.Unix()
	payload.ExpiresAt = now.Add(s.ttl).Unix()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("core: encode state payload: %w", err)
	}

	body := base64.RawURLEncoding.EncodeToString(encoded)
	mac := s.mac(body)
	return body + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

// Verify checks signature, then shape, then expiry, and returns the
// payload only when all three pass. Nothing derived from an unverified
// signature ever escapes this function.
func (s *StateSigner) Verify(token string) (StatePayload, error) {
	if s == nil {
		return StatePayload{}, fmt.Errorf("core: state signer is not configured")
	}

	body, encodedMAC, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || body == "" || encodedMAC == "" {
		return StatePayload{}, ErrMalformedState
	}

	claimedMAC, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil {
		return StatePayload{}, ErrMalformedState
	}
	if !hmac.Equal(claimedMAC, s.mac(body)) {
		return StatePayload{}, ErrInvalidState
	}

	decoded, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return StatePayload{}, ErrMalformedState
	}

	var payload StatePayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return StatePayload{}, ErrMalformedState
	}
	if payload.IssuedAt <= 0 || payload.ExpiresAt <= 0 {
		return StatePayload{}, ErrMalformedState
	}
	if strings.TrimSpace(payload.TenantID) == "" || strings.TrimSpace(payload.ProviderID) == "" {
		return StatePayload{}, ErrMalformedState
	}

	deadline := time.Unix(payload.ExpiresAt, 0).Add(-stateTokenSkewBuffer)
	if s.now().UTC().After(deadline) {
		return StatePayload{}, ErrExpiredState
	}

	return payload, nil
}

func (s *StateSigner) mac(body string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}
