package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service drives the OAuth dance: start (PKCE + signed state + redirect),
// callback (verify, exchange, seal, persist), refresh, revoke. The wizard
// and the command handlers sit on top of it.
type Service struct {
	config                  Config
	logger                  Logger
	loggerProvider          LoggerProvider
	metricsRecorder         MetricsRecorder
	errorFactory            ErrorFactory
	errorMapper             ErrorMapper
	configProvider          ConfigProvider
	optionsResolver         OptionsResolver
	registry                Registry
	stateSigner             *StateSigner
	pkceSessions            PKCESessionStore
	cipher                  SecretCipher
	credentialCodec         CredentialCodec
	connectorStore          ConnectorStore
	credentialStore         CredentialStore
	connectorLocker         ConnectorLocker
	refreshBackoffScheduler RefreshBackoffScheduler
	persistenceClient       any
	repositoryFactory       RepositoryStoreFactory
	sandboxDecorator        func(Provider) Provider
	now                     func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Registry          Registry
	StateSigner       *StateSigner
	PKCESessions      PKCESessionStore
	Cipher            SecretCipher
	CredentialCodec   CredentialCodec
	ConnectorStore    ConnectorStore
	CredentialStore   CredentialStore
	ConnectorLocker   ConnectorLocker
	RefreshScheduler  RefreshBackoffScheduler
	RepositoryFactory RepositoryStoreFactory
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("connectors", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("connectors"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.connectorLocker == nil {
		builder.connectorLocker = NewMemoryConnectorLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.pkceSessions == nil {
		builder.pkceSessions = NewMemoryPKCESessionStore(finalConfig.OAuth.PKCESessionTTL())
	}

	if (builder.connectorStore == nil || builder.credentialStore == nil) && builder.repositoryFactory != nil {
		storeProvider, buildErr := builder.repositoryFactory.BuildStores(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if storeProvider != nil {
			if builder.connectorStore == nil {
				builder.connectorStore = storeProvider.ConnectorStore()
			}
			if builder.credentialStore == nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
		}
	}

	return &Service{
		config:                  finalConfig,
		logger:                  logger,
		loggerProvider:          provider,
		metricsRecorder:         builder.metricsRecorder,
		errorFactory:            builder.errorFactory,
		errorMapper:             builder.errorMapper,
		configProvider:          builder.configProvider,
		optionsResolver:         builder.optionsResolver,
		registry:                builder.registry,
		stateSigner:             builder.stateSigner,
		pkceSessions:            builder.pkceSessions,
		cipher:                  builder.cipher,
		credentialCodec:         builder.credentialCodec,
		connectorStore:          builder.connectorStore,
		credentialStore:         builder.credentialStore,
		connectorLocker:         builder.connectorLocker,
		refreshBackoffScheduler: builder.refreshScheduler,
		persistenceClient:       builder.persistenceClient,
		repositoryFactory:       builder.repositoryFactory,
		sandboxDecorator:        builder.sandboxDecorator,
		now:                     builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Registry:          s.registry,
		StateSigner:       s.stateSigner,
		PKCESessions:      s.pkceSessions,
		Cipher:            s.cipher,
		CredentialCodec:   s.credentialCodec,
		ConnectorStore:    s.connectorStore,
		CredentialStore:   s.credentialStore,
		ConnectorLocker:   s.connectorLocker,
		RefreshScheduler:  s.refreshBackoffScheduler,
		RepositoryFactory: s.repositoryFactory,
	}
}

// StartAuth mints a PKCE pair and a signed state token, then asks the
// provider for its authorize URL. Starting a new flow for a connector
// replaces any pending PKCE session for that connector.
func (s *Service) StartAuth(ctx context.Context, req StartAuthRequest) (response StartAuthResponse, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"tenant_id":    req.TenantID,
		"provider_id":  req.ProviderID,
		"connector_id": req.ConnectorID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "start_auth", err, fields)
	}()

	tenant := TenantRef{ID: req.TenantID}
	if err = tenant.Validate(); err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}
	providerID, parseErr := ParseProviderID(string(req.ProviderID))
	if parseErr != nil {
		err = s.mapError(parseErr)
		return StartAuthResponse{}, err
	}
	if strings.TrimSpace(req.RedirectURI) == "" {
		err = s.mapError(fmt.Errorf("core: redirect uri is required"))
		return StartAuthResponse{}, err
	}
	if s.stateSigner == nil {
		err = s.mapError(fmt.Errorf("core: state signer is required to start auth"))
		return StartAuthResponse{}, err
	}
	if s.pkceSessions == nil {
		err = s.mapError(fmt.Errorf("core: pkce session store is required to start auth"))
		return StartAuthResponse{}, err
	}

	connectorID := strings.TrimSpace(req.ConnectorID)
	if connectorID == "" {
		if s.connectorStore == nil {
			err = s.mapError(fmt.Errorf("core: connector id is required to start auth"))
			return StartAuthResponse{}, err
		}
		connector, createErr := s.connectorStore.Create(ctx, CreateConnectorInput{
			TenantID:   tenant.ID,
			ProviderID: providerID,
			Status:     ConnectorStatusPending,
		})
		if createErr != nil {
			err = s.mapError(createErr)
			return StartAuthResponse{}, err
		}
		connectorID = connector.ID
		fields["connector_id"] = connectorID
	}

	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return StartAuthResponse{}, err
	}

	pair, err := GeneratePKCEPair()
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}
	if err = s.pkceSessions.Put(ctx, connectorID, pair.CodeVerifier); err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}

	state, err := s.stateSigner.Sign(StatePayload{
		TenantID:    tenant.ID,
		ProviderID:  string(providerID),
		ConnectorID: connectorID,
		ReturnTo:    strings.TrimSpace(req.ReturnTo),
	})
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}

	begin, err := provider.BeginAuth(ctx, BeginAuthRequest{
		RedirectURI:   req.RedirectURI,
		State:         state,
		CodeChallenge: pair.CodeChallenge,
		Scopes:        append([]string(nil), req.Scopes...),
	})
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}
	if _, parseErr := url.Parse(begin.URL); parseErr != nil || strings.TrimSpace(begin.URL) == "" {
		err = s.mapError(fmt.Errorf("core: provider returned an invalid authorize url"))
		return StartAuthResponse{}, err
	}

	response = StartAuthResponse{RedirectURL: begin.URL, State: state}
	return response, nil
}

// HandleCallback verifies the round-tripped state, redeems the pending
// PKCE verifier, exchanges the code, seals the token response, and
// persists it as a new credential version.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (result CallbackResult, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if s == nil {
		return CallbackResult{}, fmt.Errorf("core: service is nil")
	}
	if s.stateSigner == nil {
		err = s.mapError(fmt.Errorf("core: state signer is required to handle callbacks"))
		return CallbackResult{}, err
	}

	if errorParam := strings.TrimSpace(req.ErrorParam); errorParam != "" {
		err = s.mapError(fmt.Errorf("%w: %s", ErrProviderDeniedAuth, errorParam))
		return CallbackResult{}, err
	}

	payload, err := s.stateSigner.Verify(req.State)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}
	fields["tenant_id"] = payload.TenantID
	fields["provider_id"] = payload.ProviderID
	fields["connector_id"] = payload.ConnectorID

	providerID, parseErr := ParseProviderID(payload.ProviderID)
	if parseErr != nil {
		err = s.mapError(parseErr)
		return CallbackResult{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return CallbackResult{}, err
	}

	connectorID := strings.TrimSpace(payload.ConnectorID)
	if connectorID == "" {
		err = s.mapError(fmt.Errorf("core: state payload is missing the connector id"))
		return CallbackResult{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return CallbackResult{}, err
	}
	if s.pkceSessions == nil {
		err = s.mapError(fmt.Errorf("core: pkce session store is required to handle callbacks"))
		return CallbackResult{}, err
	}

	verifier, err := s.pkceSessions.Take(ctx, connectorID)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	token, err := provider.ExchangeCode(ctx, ExchangeCodeRequest{
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: verifier,
	})
	if err != nil {
		s.markConnectorErrored(ctx, connectorID, err)
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	credential, err := s.sealAndPersist(ctx, connectorID, token)
	if err != nil {
		s.markConnectorErrored(ctx, connectorID, err)
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	connector := Connector{
		ID:         connectorID,
		TenantID:   payload.TenantID,
		ProviderID: providerID,
		Status:     ConnectorStatusActive,
	}
	if s.connectorStore != nil {
		if updateErr := s.connectorStore.UpdateStatus(ctx, connectorID, string(ConnectorStatusActive), ""); updateErr != nil {
			err = s.mapError(updateErr)
			return CallbackResult{}, err
		}
		if stored, getErr := s.connectorStore.Get(ctx, connectorID); getErr == nil {
			connector = stored
			connector.Status = ConnectorStatusActive
			connector.LastError = ""
		}
	}

	result = CallbackResult{
		Connector:  connector,
		Credential: credential,
		ReturnTo:   payload.ReturnTo,
	}
	return result, nil
}

// Refresh redeems the stored refresh token for a fresh credential
// version. The old version is superseded, never patched in place.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (result RefreshResult, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"connector_id": req.ConnectorID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	if s == nil {
		return RefreshResult{}, fmt.Errorf("core: service is nil")
	}
	connectorID := strings.TrimSpace(req.ConnectorID)
	if connectorID == "" {
		err = s.mapError(fmt.Errorf("core: connector id is required"))
		return RefreshResult{}, err
	}
	if s.connectorStore == nil || s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: refresh requires connector and credential stores"))
		return RefreshResult{}, err
	}

	unlock := func() {}
	if s.connectorLocker != nil && !isRefreshLockHeld(ctx, connectorID) {
		lockHandle, lockErr := s.connectorLocker.Acquire(ctx, connectorID, defaultRefreshLockTTL)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return RefreshResult{}, err
		}
		ctx = context.WithValue(ctx, refreshLockContextKey{}, connectorID)
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	connector, err := s.connectorStore.Get(ctx, connectorID)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}
	fields["provider_id"] = connector.ProviderID

	provider, err := s.resolveProvider(connector.ProviderID)
	if err != nil {
		return RefreshResult{}, err
	}
	refresher, ok := provider.(RefreshableProvider)
	if !ok {
		err = s.mapError(fmt.Errorf("%w: provider %s has no refresh grant", ErrRefreshFailed, connector.ProviderID))
		return RefreshResult{}, err
	}

	stored, err := s.credentialStore.GetActiveByConnector(ctx, connectorID)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}
	payload, err := s.openCredential(ctx, stored)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}
	if strings.TrimSpace(payload.RefreshToken) == "" {
		err = s.mapError(fmt.Errorf("%w: stored credential has no refresh token", ErrRefreshFailed))
		return RefreshResult{}, err
	}

	token, err := refresher.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: payload.RefreshToken})
	if err != nil {
		err = s.mapError(fmt.Errorf("%w: %v", ErrRefreshFailed, err))
		return RefreshResult{}, err
	}
	// Providers may omit the refresh token on rotation; carry the
	// previous one forward so the connector stays refreshable.
	if strings.TrimSpace(token.RefreshToken) == "" {
		token.RefreshToken = payload.RefreshToken
	}

	credential, err := s.sealAndPersist(ctx, connectorID, token)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}

	if updateErr := s.connectorStore.UpdateStatus(ctx, connectorID, string(ConnectorStatusActive), ""); updateErr != nil {
		err = s.mapError(updateErr)
		return RefreshResult{}, err
	}
	connector.Status = ConnectorStatusActive
	connector.LastError = ""

	result = RefreshResult{Connector: connector, Credential: credential}
	return result, nil
}

// Revoke retires the active credential and disconnects the connector.
func (s *Service) Revoke(ctx context.Context, connectorID string, reason string) (err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"connector_id": connectorID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke", err, fields)
	}()

	if strings.TrimSpace(connectorID) == "" {
		err = s.mapError(fmt.Errorf("core: connector id is required"))
		return err
	}
	if s.credentialStore != nil {
		if err = s.credentialStore.RevokeActive(ctx, connectorID, reason); err != nil {
			err = s.mapError(err)
			return err
		}
	}
	if s.connectorStore != nil {
		if err = s.connectorStore.UpdateStatus(ctx, connectorID, string(ConnectorStatusDisconnected), reason); err != nil {
			err = s.mapError(err)
			return err
		}
	}
	return nil
}

// AccessToken opens the connector's active credential and returns the
// bearer token. The decrypted payload never leaves this call.
func (s *Service) AccessToken(ctx context.Context, connectorID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: service is nil")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return "", s.mapError(fmt.Errorf("core: connector id is required"))
	}
	if s.credentialStore == nil {
		return "", s.mapError(fmt.Errorf("core: credential store is required"))
	}
	record, err := s.credentialStore.GetActiveByConnector(ctx, connectorID)
	if err != nil {
		return "", s.mapError(err)
	}
	payload, err := s.openCredential(ctx, record)
	if err != nil {
		return "", s.mapError(err)
	}
	return payload.AccessToken, nil
}

func (s *Service) sealAndPersist(ctx context.Context, connectorID string, token TokenResponse) (CredentialRecord, error) {
	if s.cipher == nil {
		return CredentialRecord{}, fmt.Errorf("core: secret cipher is required to persist credentials")
	}
	codec := s.credentialCodec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}

	payload := PayloadFromTokenResponse(token, s.clock())
	encoded, err := codec.Encode(payload)
	if err != nil {
		return CredentialRecord{}, err
	}
	sealed, err := s.cipher.Encrypt(ctx, encoded)
	if err != nil {
		return CredentialRecord{}, err
	}

	record := CredentialRecord{
		ConnectorID:       connectorID,
		Version:           1,
		EncryptedPayload:  sealed,
		TokenType:         payload.TokenType,
		ExpiresAt:         cloneTimePointer(payload.ExpiresAt),
		Refreshable:       strings.TrimSpace(payload.RefreshToken) != "",
		Status:            CredentialStatusActive,
		EncryptionKeyID:   s.cipher.KeyID(),
		EncryptionVersion: s.cipher.Version(),
	}
	if s.credentialStore == nil {
		return record, nil
	}

	return s.credentialStore.SaveNewVersion(ctx, SaveCredentialInput{
		ConnectorID:       connectorID,
		EncryptedPayload:  sealed,
		TokenType:         payload.TokenType,
		ExpiresAt:         cloneTimePointer(payload.ExpiresAt),
		Refreshable:       record.Refreshable,
		Status:            CredentialStatusActive,
		EncryptionKeyID:   s.cipher.KeyID(),
		EncryptionVersion: s.cipher.Version(),
	})
}

func (s *Service) openCredential(ctx context.Context, record CredentialRecord) (CredentialPayload, error) {
	if s.cipher == nil {
		return CredentialPayload{}, fmt.Errorf("core: secret cipher is required to open credentials")
	}
	codec := s.credentialCodec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}

	plaintext, err := s.cipher.Decrypt(ctx, record.EncryptedPayload)
	if err != nil {
		return CredentialPayload{}, err
	}
	return codec.Decode(plaintext)
}

func (s *Service) markConnectorErrored(ctx context.Context, connectorID string, source error) {
	if s == nil || s.connectorStore == nil {
		return
	}
	reason := strings.TrimSpace(fmt.Sprint(source))
	_ = s.connectorStore.UpdateStatus(ctx, connectorID, string(ConnectorStatusErrored), reason)
}

func (s *Service) resolveProvider(providerID ProviderID) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	provider, ok := s.registry.Get(providerID)
	if ok {
		if s.config.SandboxMode && s.sandboxDecorator != nil {
			if decorated := s.sandboxDecorator(provider); decorated != nil {
				provider = decorated
			}
		}
		return provider, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("provider %q is not registered", providerID),
		goerrors.CategoryNotFound,
	).WithTextCode(ConnectorErrorProviderNotFound)
	return nil, wrapped.WithMetadata(map[string]any{"provider_id": string(providerID)})
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

var _ AuthService = (*Service)(nil)
