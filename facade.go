package connectors

import (
	"fmt"
	"reflect"
	"time"

	connectorcommand "github.com/funtoco/go-connectors/command"
	"github.com/funtoco/go-connectors/core"
	connectorquery "github.com/funtoco/go-connectors/query"
)

// CommandQueryService is what the facade needs from the auth core. The
// concrete *core.Service satisfies it.
type CommandQueryService interface {
	connectorcommand.AuthMutatingService
}

type Commands struct {
	StartAuth        *connectorcommand.StartAuthCommand
	CompleteCallback *connectorcommand.CompleteCallbackCommand
	Refresh          *connectorcommand.RefreshCommand
	RunRefresh       *connectorcommand.RunRefreshCommand
	Revoke           *connectorcommand.RevokeCommand
	SaveMappingDraft *connectorcommand.SaveMappingDraftCommand
	ActivateMapping  *connectorcommand.ActivateMappingCommand
}

type Queries struct {
	GetConnector        *connectorquery.GetConnectorQuery
	ListConnectors      *connectorquery.ListConnectorsQuery
	GetActiveCredential *connectorquery.GetActiveCredentialQuery
	GetMapping          *connectorquery.GetMappingQuery
	ListMappings        *connectorquery.ListMappingsQuery
	CheckRefreshNeeded  *connectorquery.CheckRefreshNeededQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	mappingService   connectorcommand.MappingMutatingService
	mappingReader    connectorquery.MappingReader
	connectorReader  connectorquery.ConnectorReader
	credentialReader connectorquery.CredentialReader
	refreshLeadTime  time.Duration
}

// WithMappingService routes the mapping draft commands to the given
// store. When the store also reads drafts it doubles as the mapping
// query reader.
func WithMappingService(service connectorcommand.MappingMutatingService) FacadeOption {
	return func(options *facadeOptions) {
		options.mappingService = service
	}
}

func WithMappingReader(reader connectorquery.MappingReader) FacadeOption {
	return func(options *facadeOptions) {
		options.mappingReader = reader
	}
}

func WithConnectorReader(reader connectorquery.ConnectorReader) FacadeOption {
	return func(options *facadeOptions) {
		options.connectorReader = reader
	}
}

func WithCredentialReader(reader connectorquery.CredentialReader) FacadeOption {
	return func(options *facadeOptions) {
		options.credentialReader = reader
	}
}

// WithRefreshLeadTime tunes how early the refresh-needed query reports
// true ahead of credential expiry.
func WithRefreshLeadTime(leadTime time.Duration) FacadeOption {
	return func(options *facadeOptions) {
		options.refreshLeadTime = leadTime
	}
}

// NewFacade builds the command and query wrappers around an auth core.
// Readers left unset are resolved from the service's own dependencies,
// so wiring the service with a repository factory is enough to light
// up every query.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("connectors: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	if cfg.connectorReader == nil || cfg.credentialReader == nil {
		deps := resolveDependencies(service)
		if cfg.connectorReader == nil && deps.ConnectorStore != nil {
			cfg.connectorReader = deps.ConnectorStore
		}
		if cfg.credentialReader == nil && deps.CredentialStore != nil {
			cfg.credentialReader = deps.CredentialStore
		}
	}
	if cfg.mappingReader == nil {
		cfg.mappingReader = resolveMappingReader(service, cfg.mappingService)
	}
	if cfg.mappingService == nil {
		if svc, ok := cfg.mappingReader.(connectorcommand.MappingMutatingService); ok {
			cfg.mappingService = svc
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StartAuth:        connectorcommand.NewStartAuthCommand(service),
		CompleteCallback: connectorcommand.NewCompleteCallbackCommand(service),
		Refresh:          connectorcommand.NewRefreshCommand(service),
		RunRefresh:       connectorcommand.NewRunRefreshCommand(service),
		Revoke:           connectorcommand.NewRevokeCommand(service),
		SaveMappingDraft: connectorcommand.NewSaveMappingDraftCommand(cfg.mappingService),
		ActivateMapping:  connectorcommand.NewActivateMappingCommand(cfg.mappingService),
	}
	facade.queries = Queries{
		GetConnector:        connectorquery.NewGetConnectorQuery(cfg.connectorReader),
		ListConnectors:      connectorquery.NewListConnectorsQuery(cfg.connectorReader),
		GetActiveCredential: connectorquery.NewGetActiveCredentialQuery(cfg.credentialReader),
		GetMapping:          connectorquery.NewGetMappingQuery(cfg.mappingReader),
		ListMappings:        connectorquery.NewListMappingsQuery(cfg.mappingReader),
		CheckRefreshNeeded:  connectorquery.NewCheckRefreshNeededQuery(cfg.credentialReader, cfg.refreshLeadTime),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveDependencies(service CommandQueryService) core.ServiceDependencies {
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return core.ServiceDependencies{}
	}
	return provider.Dependencies()
}

// resolveMappingReader looks for a mapping store next to the service.
// The SQL repository factory exposes one through a MappingStore method;
// reflection keeps the facade decoupled from the concrete factory type.
func resolveMappingReader(service CommandQueryService, mappingService connectorcommand.MappingMutatingService) connectorquery.MappingReader {
	if reader, ok := mappingService.(connectorquery.MappingReader); ok {
		return reader
	}
	deps := resolveDependencies(service)
	if deps.RepositoryFactory == nil {
		return nil
	}

	factoryValue := reflect.ValueOf(deps.RepositoryFactory)
	if !factoryValue.IsValid() {
		return nil
	}
	if factoryValue.Kind() == reflect.Ptr && factoryValue.IsNil() {
		return nil
	}
	method := factoryValue.MethodByName("MappingStore")
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil
	}

	results, ok := safeReflectCall(method)
	if !ok {
		return nil
	}
	if len(results) != 1 {
		return nil
	}
	candidate := results[0]
	if !candidate.IsValid() {
		return nil
	}
	if candidate.Kind() == reflect.Ptr && candidate.IsNil() {
		return nil
	}
	reader, ok := candidate.Interface().(connectorquery.MappingReader)
	if !ok {
		return nil
	}
	return reader
}

func safeReflectCall(method reflect.Value) (_ []reflect.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return method.Call(nil), true
}
