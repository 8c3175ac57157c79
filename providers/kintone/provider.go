package kintone

import (
	"fmt"
	"strings"
	"time"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers"
)

const (
	authURLFormat  = "https://%s.cybozu.com/oauth2/authorization"
	tokenURLFormat = "https://%s.cybozu.com/oauth2/token"
)

// Config is the typed, pre-validated configuration for the kintone
// adapter. The tenant subdomain parameterizes both endpoint URLs.
type Config struct {
	Subdomain           string
	ClientID            string
	ClientSecret        string
	DefaultScopes       []string
	TokenRequestTimeout time.Duration
	HTTPClient          providers.HTTPDoer
}

func (c Config) Validate() error {
	subdomain := strings.TrimSpace(c.Subdomain)
	if subdomain == "" {
		return fmt.Errorf("kintone: subdomain is required")
	}
	if strings.ContainsAny(subdomain, "./? ") {
		return fmt.Errorf("kintone: invalid subdomain %q", c.Subdomain)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("kintone: client id is required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		DefaultScopes: []string{"k:app_record:read", "k:app_settings:read"},
	}
}

func New(cfg Config) (core.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = DefaultConfig().DefaultScopes
	}
	subdomain := strings.TrimSpace(cfg.Subdomain)
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                  core.ProviderKintone,
		AuthURL:             fmt.Sprintf(authURLFormat, subdomain),
		TokenURL:            fmt.Sprintf(tokenURLFormat, subdomain),
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		DefaultScopes:       cfg.DefaultScopes,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
