package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/funtoco/go-connectors/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuth2Config parameterizes the generic authorization-code adapter.
// Concrete providers resolve their endpoint URLs (possibly from tenant
// configuration) before constructing one of these.
type OAuth2Config struct {
	ID                  core.ProviderID
	AuthURL             string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	DefaultScopes       []string
	TokenRequestTimeout time.Duration
	HTTPClient          HTTPDoer
}

// OAuth2Provider performs the standard authorization-code dance with
// PKCE. It never retries; a non-2xx token response surfaces as
// *core.ProviderExchangeError and the orchestrator decides what to do.
type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	id, err := core.ParseProviderID(string(cfg.ID))
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	cfg.ID = id
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.DefaultScopes = normalizeScopes(cfg.DefaultScopes)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Provider) ID() core.ProviderID {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Provider) BeginAuth(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if strings.TrimSpace(req.State) == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: state is required")
	}
	if strings.TrimSpace(req.CodeChallenge) == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: code challenge is required")
	}

	scopes := normalizeScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = append([]string(nil), p.cfg.DefaultScopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", p.cfg.ClientID)
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	if len(scopes) > 0 {
		values.Set("scope", strings.Join(scopes, " "))
	}
	values.Set("state", strings.TrimSpace(req.State))
	values.Set("code_challenge", strings.TrimSpace(req.CodeChallenge))
	values.Set("code_challenge_method", core.PKCEMethodS256)

	authURL := p.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}

	return core.BeginAuthResponse{URL: authURL}, nil
}

func (p *OAuth2Provider) ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.TokenResponse, error) {
	if p == nil {
		return core.TokenResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.TokenResponse{}, fmt.Errorf("providers: auth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	if verifier := strings.TrimSpace(req.CodeVerifier); verifier != "" {
		form.Set("code_verifier", verifier)
	}

	return p.fetchToken(ctx, form)
}

func (p *OAuth2Provider) RefreshToken(ctx context.Context, req core.RefreshTokenRequest) (core.TokenResponse, error) {
	if p == nil {
		return core.TokenResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		return core.TokenResponse{}, fmt.Errorf("providers: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return p.fetchToken(ctx, form)
}

func (p *OAuth2Provider) fetchToken(ctx context.Context, form url.Values) (core.TokenResponse, error) {
	if p.httpClient == nil {
		return core.TokenResponse{}, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	form.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		form.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return core.TokenResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return core.TokenResponse{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return core.TokenResponse{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return core.TokenResponse{}, fmt.Errorf("providers: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.TokenResponse{}, &core.ProviderExchangeError{
			Provider:   p.cfg.ID,
			StatusCode: response.StatusCode,
			Body:       string(body),
		}
	}

	token, parseErr := parseTokenResponse(body)
	if parseErr != nil {
		return core.TokenResponse{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	return token, nil
}

func parseTokenResponse(body []byte) (core.TokenResponse, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.TokenResponse{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.TokenResponse{}, err
	}
	if errCode := readAnyString(decoded["error"]); errCode != "" {
		description := readAnyString(decoded["error_description"])
		if description == "" {
			description = errCode
		}
		return core.TokenResponse{}, fmt.Errorf("token endpoint error: %s", description)
	}
	token := core.TokenResponse{
		AccessToken:  readAnyString(decoded["access_token"]),
		RefreshToken: readAnyString(decoded["refresh_token"]),
		TokenType:    normalizeTokenType(readAnyString(decoded["token_type"])),
		ExpiresIn:    readAnyInt64(decoded["expires_in"]),
		Scope:        readAnyString(decoded["scope"]),
		Raw:          decoded,
	}
	if token.AccessToken == "" {
		return core.TokenResponse{}, fmt.Errorf("token endpoint response missing access token")
	}
	return token, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	return values
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return ""
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.RefreshableProvider = (*OAuth2Provider)(nil)
