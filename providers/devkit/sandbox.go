package devkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/funtoco/go-connectors/core"
)

const (
	sandboxAuthURL        = "https://sandbox.connectors.invalid/oauth/authorize"
	sandboxTokenLifetime  = int64(3600)
	sandboxTokenTypeValue = "bearer"
)

// SandboxProvider decorates a real adapter for test and development
// runs: BeginAuth still produces a shape-correct authorize URL, but
// token calls return synthetic tokens without touching the network, so
// the rest of the pipeline (encryption, persistence, wizard) can be
// exercised deterministically. Real adapters stay free of mock-mode
// branches.
type SandboxProvider struct {
	inner core.Provider
	seq   atomic.Int64
}

// Wrap decorates an existing provider. The decorated adapter keeps the
// inner provider's id and authorize URL.
func Wrap(inner core.Provider) *SandboxProvider {
	return &SandboxProvider{inner: inner}
}

// New returns a standalone sandbox provider registered under the
// sandbox id, for pipelines with no real adapter configured at all.
func New() *SandboxProvider {
	return &SandboxProvider{}
}

func (p *SandboxProvider) ID() core.ProviderID {
	if p == nil {
		return ""
	}
	if p.inner != nil {
		return p.inner.ID()
	}
	return core.ProviderSandbox
}

func (p *SandboxProvider) BeginAuth(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("devkit: sandbox provider is nil")
	}
	if p.inner != nil {
		return p.inner.BeginAuth(ctx, req)
	}
	if strings.TrimSpace(req.State) == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("devkit: state is required")
	}
	if strings.TrimSpace(req.CodeChallenge) == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("devkit: code challenge is required")
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", "sandbox")
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	if len(req.Scopes) > 0 {
		values.Set("scope", strings.Join(req.Scopes, " "))
	}
	values.Set("state", strings.TrimSpace(req.State))
	values.Set("code_challenge", strings.TrimSpace(req.CodeChallenge))
	values.Set("code_challenge_method", core.PKCEMethodS256)

	return core.BeginAuthResponse{URL: sandboxAuthURL + "?" + values.Encode()}, nil
}

func (p *SandboxProvider) ExchangeCode(_ context.Context, req core.ExchangeCodeRequest) (core.TokenResponse, error) {
	if p == nil {
		return core.TokenResponse{}, fmt.Errorf("devkit: sandbox provider is nil")
	}
	if strings.TrimSpace(req.Code) == "" {
		return core.TokenResponse{}, fmt.Errorf("devkit: auth code is required")
	}
	if strings.TrimSpace(req.CodeVerifier) == "" {
		return core.TokenResponse{}, fmt.Errorf("devkit: code verifier is required")
	}
	return p.syntheticToken("authorization_code"), nil
}

func (p *SandboxProvider) RefreshToken(_ context.Context, req core.RefreshTokenRequest) (core.TokenResponse, error) {
	if p == nil {
		return core.TokenResponse{}, fmt.Errorf("devkit: sandbox provider is nil")
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		return core.TokenResponse{}, fmt.Errorf("devkit: refresh token is required")
	}
	if !strings.HasPrefix(refreshToken, "sandbox-refresh-") {
		return core.TokenResponse{}, fmt.Errorf("devkit: unknown refresh token")
	}
	return p.syntheticToken("refresh_token"), nil
}

func (p *SandboxProvider) syntheticToken(grantType string) core.TokenResponse {
	n := p.seq.Add(1)
	return core.TokenResponse{
		AccessToken:  fmt.Sprintf("sandbox-access-%d", n),
		RefreshToken: fmt.Sprintf("sandbox-refresh-%d", n),
		TokenType:    sandboxTokenTypeValue,
		ExpiresIn:    sandboxTokenLifetime,
		Raw: map[string]any{
			"sandbox":    true,
			"grant_type": grantType,
		},
	}
}

var _ core.RefreshableProvider = (*SandboxProvider)(nil)
