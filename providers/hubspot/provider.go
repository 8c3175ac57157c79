package hubspot

import (
	"fmt"
	"strings"
	"time"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers"
)

const (
	AuthURL  = "https://app.hubspot.com/oauth/authorize"
	TokenURL = "https://api.hubapi.com/oauth/v1/token"
)

// Config is the typed configuration for the hubspot adapter. HubSpot
// requires the client secret in the form body rather than basic auth.
type Config struct {
	ClientID            string
	ClientSecret        string
	DefaultScopes       []string
	TokenRequestTimeout time.Duration
	HTTPClient          providers.HTTPDoer
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("hubspot: client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("hubspot: client secret is required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		DefaultScopes: []string{"crm.objects.contacts.read", "crm.schemas.contacts.read"},
	}
}

func New(cfg Config) (core.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = DefaultConfig().DefaultScopes
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                  core.ProviderHubSpot,
		AuthURL:             AuthURL,
		TokenURL:            TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		ClientSecretInBody:  true,
		DefaultScopes:       cfg.DefaultScopes,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
