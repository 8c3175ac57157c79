package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// 32 random bytes encode to a 43 character verifier, the RFC 7636 minimum.
	pkceVerifierEntropyBytes = 32

	pkceVerifierMinLength = 43
	pkceVerifierMaxLength = 128

	// PKCEMethodS256 is the only challenge method this module produces.
	PKCEMethodS256 = "S256"

	defaultPKCESessionTTL = 10 * time.Minute
)

// PKCEPair binds an authorization request to the client that later
// redeems the code. The verifier is secret until token exchange; the
// challenge travels in the authorize URL.
type PKCEPair struct {
	CodeVerifier  string
	CodeChallenge string
	Method        string
}

// GeneratePKCEVerifier produces a random URL-safe verifier of exactly
// 43 characters.
func GeneratePKCEVerifier() (string, error) {
	raw := make([]byte, pkceVerifierEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate pkce verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ChallengeFromVerifier derives the S256 challenge: SHA-256 of the
// verifier, base64url encoded without padding.
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GeneratePKCEPair composes a fresh verifier with its challenge.
func GeneratePKCEPair() (PKCEPair, error) {
	verifier, err := GeneratePKCEVerifier()
	if err != nil {
		return PKCEPair{}, err
	}
	return PKCEPair{
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeFromVerifier(verifier),
		Method:        PKCEMethodS256,
	}, nil
}

// ValidatePKCEVerifier rejects verifiers outside the RFC 7636 length
// bounds or alphabet. Malformed verifiers are caller errors, never
// silently corrected.
func ValidatePKCEVerifier(verifier string) error {
	if len(verifier) < pkceVerifierMinLength || len(verifier) > pkceVerifierMaxLength {
		return fmt.Errorf("core: pkce verifier length %d outside [%d, %d]", len(verifier), pkceVerifierMinLength, pkceVerifierMaxLength)
	}
	for i := 0; i < len(verifier); i++ {
		if !isPKCEVerifierChar(verifier[i]) {
			return fmt.Errorf("core: pkce verifier contains invalid character at position %d", i)
		}
	}
	return nil
}

// VerifyPKCEPair recomputes the challenge for verifier and compares.
// Both inputs are public-length hashes, so plain comparison cost is
// dominated by SHA-256 anyway; constant-time compare keeps it honest.
func VerifyPKCEPair(verifier, challenge string) bool {
	if ValidatePKCEVerifier(verifier) != nil {
		return false
	}
	computed := ChallengeFromVerifier(verifier)
	if len(computed) != len(challenge) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

func isPKCEVerifierChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

type pkceSessionEntry struct {
	verifier  string
	expiresAt time.Time
}

// PKCESessionStore holds the pending verifier between authorize
// redirect and callback. Put replaces any prior session for the same
// connector so a connector never has two in-flight flows; Take is
// single use.
type PKCESessionStore interface {
	Put(ctx context.Context, connectorID, verifier string) error
	Take(ctx context.Context, connectorID string) (string, error)
}

type MemoryPKCESessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]pkceSessionEntry
}

func NewMemoryPKCESessionStore(ttl time.Duration) *MemoryPKCESessionStore {
	if ttl <= 0 {
		ttl = defaultPKCESessionTTL
	}
	return &MemoryPKCESessionStore{
		ttl:     ttl,
		entries: map[string]pkceSessionEntry{},
	}
}

func (s *MemoryPKCESessionStore) Put(_ context.Context, connectorID, verifier string) error {
	if s == nil {
		return fmt.Errorf("core: pkce session store is not configured")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return fmt.Errorf("core: pkce session connector id is required")
	}
	if err := ValidatePKCEVerifier(verifier); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[connectorID] = pkceSessionEntry{
		verifier:  verifier,
		expiresAt: time.Now().UTC().Add(s.ttl),
	}
	s.mu.Unlock()

	return nil
}

func (s *MemoryPKCESessionStore) Take(_ context.Context, connectorID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: pkce session store is not configured")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return "", fmt.Errorf("core: pkce session connector id is required")
	}

	s.mu.Lock()
	entry, ok := s.entries[connectorID]
	if ok {
		delete(s.entries, connectorID)
	}
	s.mu.Unlock()

	if !ok {
		return "", ErrPKCESessionLost
	}
	if time.Now().UTC().After(entry.expiresAt) {
		return "", ErrPKCESessionLost
	}

	return entry.verifier, nil
}
