package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/funtoco/go-connectors/core"
)

const (
	envelopePrefix    = "connectors.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"

	// credentialAAD is the fixed associated-data tag binding every
	// sealed payload to this module. A blob sealed under a different
	// tag fails authentication even with the right key.
	credentialAAD = "connector-oauth"

	keyLengthBytes = 32
)

type Option func(*CredentialCipher)

// CredentialCipher seals credential payloads with AES-256-GCM. The key
// is supplied externally and validated for exact length up front; the
// cipher never generates or rotates it.
type CredentialCipher struct {
	key     []byte
	keyID   string
	version int
}

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func WithKeyID(id string) Option {
	return func(c *CredentialCipher) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			c.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(c *CredentialCipher) {
		if version > 0 {
			c.version = version
		}
	}
}

func NewCredentialCipher(keyMaterial []byte, opts ...Option) (*CredentialCipher, error) {
	if len(keyMaterial) != keyLengthBytes {
		return nil, fmt.Errorf("security: credential key must be exactly %d bytes, got %d", keyLengthBytes, len(keyMaterial))
	}
	key := make([]byte, keyLengthBytes)
	copy(key, keyMaterial)

	cipher := &CredentialCipher{
		key:     key,
		keyID:   "credential-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cipher)
	}
	return cipher, nil
}

// NewCredentialCipherFromBase64 accepts the key as standard base64, the
// shape it usually arrives in from the environment.
func NewCredentialCipherFromBase64(encoded string, opts ...Option) (*CredentialCipher, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("security: decode credential key: %w", err)
	}
	return NewCredentialCipher(decoded, opts...)
}

func (c *CredentialCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: credential cipher is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, []byte(credentialAAD))
	data, err := json.Marshal(envelope{
		KeyID:      c.keyID,
		Version:    c.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}

	return append([]byte(envelopePrefix), data...), nil
}

// Decrypt fails closed: any tamper, truncation, key or tag mismatch
// surfaces as core.ErrDecryptionFailed, never partial plaintext.
func (c *CredentialCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: credential cipher is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext is required", core.ErrDecryptionFailed)
	}

	payload := string(ciphertext)
	if !strings.HasPrefix(payload, envelopePrefix) {
		return nil, fmt.Errorf("%w: invalid envelope prefix", core.ErrDecryptionFailed)
	}
	payload = strings.TrimPrefix(payload, envelopePrefix)

	var parsed envelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", core.ErrDecryptionFailed, err)
	}
	if parsed.KeyID != "" && parsed.KeyID != c.keyID {
		return nil, fmt.Errorf("%w: key id mismatch", core.ErrDecryptionFailed)
	}
	if parsed.Version > 0 && parsed.Version != c.version {
		return nil, fmt.Errorf("%w: key version mismatch", core.ErrDecryptionFailed)
	}
	if alg := strings.ToLower(strings.TrimSpace(parsed.Algorithm)); alg != "" && alg != envelopeAlgorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", core.ErrDecryptionFailed, parsed.Algorithm)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decode nonce: %v", core.ErrDecryptionFailed, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext payload: %v", core.ErrDecryptionFailed, err)
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: truncated nonce", core.ErrDecryptionFailed)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(credentialAAD))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", core.ErrDecryptionFailed)
	}
	return plaintext, nil
}

func (c *CredentialCipher) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

func (c *CredentialCipher) Version() int {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *CredentialCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

var _ core.SecretCipher = (*CredentialCipher)(nil)
