package core

import (
	"fmt"
	"strings"
	"time"
)

type OAuthConfig struct {
	StateTTLSeconds       int `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	PKCESessionTTLSeconds int `koanf:"pkce_session_ttl_seconds" mapstructure:"pkce_session_ttl_seconds"`
}

func (c OAuthConfig) StateTTL() time.Duration {
	if c.StateTTLSeconds <= 0 {
		return StateTokenTTL
	}
	return time.Duration(c.StateTTLSeconds) * time.Second
}

func (c OAuthConfig) PKCESessionTTL() time.Duration {
	if c.PKCESessionTTLSeconds <= 0 {
		return defaultPKCESessionTTL
	}
	return time.Duration(c.PKCESessionTTLSeconds) * time.Second
}

type WizardConfig struct {
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

type Config struct {
	ServiceName string       `koanf:"service_name" mapstructure:"service_name"`
	SandboxMode bool         `koanf:"sandbox_mode" mapstructure:"sandbox_mode"`
	OAuth       OAuthConfig  `koanf:"oauth" mapstructure:"oauth"`
	Wizard      WizardConfig `koanf:"wizard" mapstructure:"wizard"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "connectors",
		OAuth: OAuthConfig{
			StateTTLSeconds:       int(StateTokenTTL / time.Second),
			PKCESessionTTLSeconds: int(defaultPKCESessionTTL / time.Second),
		},
		Wizard: WizardConfig{
			CacheTTLSeconds: 600,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.StateTTLSeconds < 0 {
		return fmt.Errorf("core: oauth.state_ttl_seconds must not be negative")
	}
	if c.OAuth.PKCESessionTTLSeconds < 0 {
		return fmt.Errorf("core: oauth.pkce_session_ttl_seconds must not be negative")
	}
	if c.Wizard.CacheTTLSeconds < 0 {
		return fmt.Errorf("core: wizard.cache_ttl_seconds must not be negative")
	}
	return nil
}
