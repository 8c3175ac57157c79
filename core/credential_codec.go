package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "connector_credential_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialPayload is the plaintext credential shape handed to the
// cipher. One sealed payload per credential version keeps access and
// refresh tokens under a single authentication tag.
type CredentialPayload struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
	Raw          map[string]any
}

// CredentialCodec serializes CredentialPayload before encryption and
// back after decryption.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(payload CredentialPayload) ([]byte, error)
	Decode(encoded []byte) (CredentialPayload, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	Scope        string         `json:"scope,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

func (JSONCredentialCodec) Encode(payload CredentialPayload) ([]byte, error) {
	if strings.TrimSpace(payload.AccessToken) == "" {
		return nil, fmt.Errorf("core: credential payload requires an access token")
	}
	encoded, err := json.Marshal(jsonCredentialPayload{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    strings.TrimSpace(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
		ExpiresAt:    cloneTimePointer(payload.ExpiresAt),
		Raw:          copyAnyMap(payload.Raw),
	})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(encoded []byte) (CredentialPayload, error) {
	if len(encoded) == 0 {
		return CredentialPayload{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return CredentialPayload{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	if strings.TrimSpace(decoded.AccessToken) == "" {
		return CredentialPayload{}, fmt.Errorf("core: credential payload missing access token")
	}
	return CredentialPayload{
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		TokenType:    strings.TrimSpace(decoded.TokenType),
		Scope:        strings.TrimSpace(decoded.Scope),
		ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
		Raw:          copyAnyMap(decoded.Raw),
	}, nil
}

// PayloadFromTokenResponse maps a provider token response onto the
// payload persisted with the credential version.
func PayloadFromTokenResponse(token TokenResponse, now time.Time) CredentialPayload {
	payload := CredentialPayload{
		AccessToken:  strings.TrimSpace(token.AccessToken),
		RefreshToken: strings.TrimSpace(token.RefreshToken),
		TokenType:    strings.TrimSpace(token.TokenType),
		Scope:        strings.TrimSpace(token.Scope),
		Raw:          copyAnyMap(token.Raw),
	}
	if expiresAt := token.ResolveExpiresAt(now); expiresAt != nil {
		payload.ExpiresAt = cloneTimePointer(expiresAt)
	}
	return payload
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ CredentialCodec = JSONCredentialCodec{}
