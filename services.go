package connectors

import (
	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers/devkit"
)

type Config = core.Config

type OAuthConfig = core.OAuthConfig

type WizardConfig = core.WizardConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Registry = core.Registry
type Provider = core.Provider
type ProviderID = core.ProviderID
type PKCESessionStore = core.PKCESessionStore
type SecretCipher = core.SecretCipher
type ConnectorLocker = core.ConnectorLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult
type ConnectorStore = core.ConnectorStore
type CredentialStore = core.CredentialStore

type StartAuthRequest = core.StartAuthRequest
type StartAuthResponse = core.StartAuthResponse

type CallbackRequest = core.CallbackRequest
type CallbackResult = core.CallbackResult

type RefreshRequest = core.RefreshRequest
type RefreshResult = core.RefreshResult

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithRegistry                = core.WithRegistry
	WithStateSigner             = core.WithStateSigner
	WithPKCESessionStore        = core.WithPKCESessionStore
	WithSecretCipher            = core.WithSecretCipher
	WithCredentialCodec         = core.WithCredentialCodec
	WithConnectorStore          = core.WithConnectorStore
	WithCredentialStore         = core.WithCredentialStore
	WithConnectorLocker         = core.WithConnectorLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithSandboxDecorator        = core.WithSandboxDecorator
	WithClock                   = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds the auth orchestrator with the sandbox decorator
// pre-wired: when Config.SandboxMode is on, every resolved provider is
// wrapped so token calls answer with synthetic tokens and never leave
// the process. An explicit WithSandboxDecorator option overrides it.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	withDefaults := make([]Option, 0, len(opts)+1)
	withDefaults = append(withDefaults, core.WithSandboxDecorator(sandboxWrap))
	withDefaults = append(withDefaults, opts...)
	return core.NewService(cfg, withDefaults...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func sandboxWrap(provider core.Provider) core.Provider {
	if provider == nil {
		return nil
	}
	if _, ok := provider.(*devkit.SandboxProvider); ok {
		return provider
	}
	return devkit.Wrap(provider)
}
