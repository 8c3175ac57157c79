package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type BeginAuthRequest struct {
	RedirectURI   string
	State         string
	CodeChallenge string
	Scopes        []string
}

type BeginAuthResponse struct {
	URL string
}

type ExchangeCodeRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

type RefreshTokenRequest struct {
	RefreshToken string
}

// Provider is the per-provider strategy for the authorization-code dance.
// Adapters build their own endpoint URLs (some parameterized by a
// tenant-specific subdomain resolved from their typed config), perform the
// form-encoded exchange, and map the provider body onto TokenResponse.
// Adapters never retry; retry policy belongs to the orchestrator.
type Provider interface {
	ID() ProviderID
	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	ExchangeCode(ctx context.Context, req ExchangeCodeRequest) (TokenResponse, error)
}

// RefreshableProvider is implemented by providers with a documented refresh
// grant. A provider lacking one simply does not implement the interface.
type RefreshableProvider interface {
	Provider
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (TokenResponse, error)
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID ProviderID) (Provider, bool)
	List() []Provider
}

type CreateConnectorInput struct {
	TenantID   string
	ProviderID ProviderID
	Status     ConnectorStatus
}

type ConnectorStore interface {
	Create(ctx context.Context, in CreateConnectorInput) (Connector, error)
	Get(ctx context.Context, id string) (Connector, error)
	FindByTenant(ctx context.Context, tenantID string, providerID ProviderID) ([]Connector, error)
	UpdateStatus(ctx context.Context, id string, status string, reason string) error
}

type SaveCredentialInput struct {
	ConnectorID       string
	EncryptedPayload  []byte
	TokenType         string
	ExpiresAt         *time.Time
	Refreshable       bool
	Status            CredentialStatus
	EncryptionKeyID   string
	EncryptionVersion int
}

type CredentialStore interface {
	SaveNewVersion(ctx context.Context, in SaveCredentialInput) (CredentialRecord, error)
	GetActiveByConnector(ctx context.Context, connectorID string) (CredentialRecord, error)
	RevokeActive(ctx context.Context, connectorID string, reason string) error
}

type StoreProvider interface {
	ConnectorStore() ConnectorStore
	CredentialStore() CredentialStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// SecretCipher seals and opens credential payloads. Implementations must
// fail closed: Decrypt returns an error wrapping ErrDecryptionFailed on any
// tamper, truncation, or key mismatch, never partial plaintext.
type SecretCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	KeyID() string
	Version() int
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// JobEnqueueReceipt carries queue acceptance metadata for a dispatched
// message.
type JobEnqueueReceipt struct {
	DispatchID string
	EnqueuedAt time.Time
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) (JobEnqueueReceipt, error)
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type StartAuthRequest struct {
	TenantID    string
	ProviderID  ProviderID
	ConnectorID string
	RedirectURI string
	ReturnTo    string
	Scopes      []string
}

type StartAuthResponse struct {
	RedirectURL string
	State       string
}

// CallbackRequest carries the provider redirect's query parameters. The
// verified state token, not the surrounding request context, is the sole
// source of truth for tenant/provider/connector identity.
type CallbackRequest struct {
	Code        string
	State       string
	ErrorParam  string
	RedirectURI string
}

type CallbackResult struct {
	Connector  Connector
	Credential CredentialRecord
	ReturnTo   string
}

type RefreshRequest struct {
	ConnectorID string
}

type RefreshResult struct {
	Connector  Connector
	Credential CredentialRecord
}

// AuthService is the surface the command handlers and the facade expose.
type AuthService interface {
	StartAuth(ctx context.Context, req StartAuthRequest) (StartAuthResponse, error)
	HandleCallback(ctx context.Context, req CallbackRequest) (CallbackResult, error)
	Refresh(ctx context.Context, req RefreshRequest) (RefreshResult, error)
	Revoke(ctx context.Context, connectorID string, reason string) error
}
