package connectors_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"

	connectors "github.com/funtoco/go-connectors"
	connectorcommand "github.com/funtoco/go-connectors/command"
	"github.com/funtoco/go-connectors/core"
	connectorquery "github.com/funtoco/go-connectors/query"
	"github.com/funtoco/go-connectors/security"
	"github.com/funtoco/go-connectors/wizard"
)

// End-to-end composition the way a downstream service would wire it:
// sandbox provider, real cipher, facade commands and queries, mapping
// drafts saved and activated through the command bus.
func TestDownstreamComposition_AuthAndMappingThroughFacade(t *testing.T) {
	ctx := context.Background()

	registry := core.NewProviderRegistry()
	if err := registry.Register(connectors.SandboxProvider()); err != nil {
		t.Fatalf("register sandbox provider: %v", err)
	}

	signer, err := core.NewStateSigner([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new state signer: %v", err)
	}
	cipher, err := security.NewCredentialCipher([]byte("fedcba98765432100123456789abcdef"))
	if err != nil {
		t.Fatalf("new credential cipher: %v", err)
	}

	connectorStore := newCompositionConnectorStore()
	credentialStore := newCompositionCredentialStore()

	svc, err := connectors.NewService(connectors.Config{},
		connectors.WithRegistry(registry),
		connectors.WithStateSigner(signer),
		connectors.WithSecretCipher(cipher),
		connectors.WithConnectorStore(connectorStore),
		connectors.WithCredentialStore(credentialStore),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	mappings := newCompositionMappingStore()
	facade, err := connectors.NewFacade(svc, connectors.WithMappingService(mappings))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	startCollector := gocmd.NewResult[core.StartAuthResponse]()
	startCtx := gocmd.ContextWithResult(ctx, startCollector)
	if err := facade.Commands().StartAuth.Execute(startCtx, connectorcommand.StartAuthMessage{
		Request: core.StartAuthRequest{
			TenantID:    "tenant-1",
			ProviderID:  core.ProviderSandbox,
			RedirectURI: "https://app.example.test/callback",
			ReturnTo:    "/settings/connectors",
			Scopes:      []string{"records:read"},
		},
	}); err != nil {
		t.Fatalf("start auth command: %v", err)
	}
	started, ok := startCollector.Load()
	if !ok || started.State == "" {
		t.Fatalf("expected start auth result with state, got %#v", started)
	}

	callbackCollector := gocmd.NewResult[core.CallbackResult]()
	callbackCtx := gocmd.ContextWithResult(ctx, callbackCollector)
	if err := facade.Commands().CompleteCallback.Execute(callbackCtx, connectorcommand.CompleteCallbackMessage{
		Request: core.CallbackRequest{
			Code:        "sandbox-code",
			State:       started.State,
			RedirectURI: "https://app.example.test/callback",
		},
	}); err != nil {
		t.Fatalf("complete callback command: %v", err)
	}
	completed, ok := callbackCollector.Load()
	if !ok {
		t.Fatalf("expected callback result")
	}
	if completed.Connector.Status != core.ConnectorStatusActive {
		t.Fatalf("expected active connector after callback, got %q", completed.Connector.Status)
	}
	connectorID := completed.Connector.ID

	credential, err := facade.Queries().GetActiveCredential.Query(ctx, connectorquery.GetActiveCredentialMessage{
		ConnectorID: connectorID,
	})
	if err != nil {
		t.Fatalf("query active credential: %v", err)
	}
	if credential.Status != core.CredentialStatusActive || !credential.Refreshable {
		t.Fatalf("unexpected credential record: %#v", credential)
	}

	listed, err := facade.Queries().ListConnectors.Query(ctx, connectorquery.ListConnectorsMessage{
		TenantID:   "tenant-1",
		ProviderID: core.ProviderSandbox,
	})
	if err != nil {
		t.Fatalf("query list connectors: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != connectorID {
		t.Fatalf("unexpected connector listing: %#v", listed)
	}

	draftCollector := gocmd.NewResult[wizard.MappingDraft]()
	draftCtx := gocmd.ContextWithResult(ctx, draftCollector)
	if err := facade.Commands().SaveMappingDraft.Execute(draftCtx, connectorcommand.SaveMappingDraftMessage{
		Draft: wizard.MappingDraft{
			TenantID:       "tenant-1",
			ConnectorID:    connectorID,
			RemoteAppID:    "12",
			DestinationKey: "people",
			Mappings: []wizard.FieldMapping{
				{Source: "name", Destination: "full_name"},
				{Source: "email", Destination: "email"},
			},
		},
	}); err != nil {
		t.Fatalf("save mapping draft command: %v", err)
	}
	draft, ok := draftCollector.Load()
	if !ok || draft.ID == "" {
		t.Fatalf("expected saved draft with id, got %#v", draft)
	}

	if err := facade.Commands().ActivateMapping.Execute(ctx, connectorcommand.ActivateMappingMessage{
		MappingID: draft.ID,
	}); err != nil {
		t.Fatalf("activate mapping command: %v", err)
	}

	active, err := facade.Queries().GetMapping.Query(ctx, connectorquery.GetMappingMessage{
		MappingID: draft.ID,
	})
	if err != nil {
		t.Fatalf("query mapping: %v", err)
	}
	if active.Status != wizard.MappingStatusActive {
		t.Fatalf("expected activated mapping, got %q", active.Status)
	}

	needed, err := facade.Queries().CheckRefreshNeeded.Query(ctx, connectorquery.CheckRefreshNeededMessage{
		ConnectorID: connectorID,
	})
	if err != nil {
		t.Fatalf("query refresh needed: %v", err)
	}
	if needed {
		t.Fatalf("fresh sandbox token should not need refresh yet")
	}
}

type compositionConnectorStore struct {
	mu         sync.Mutex
	seq        int
	connectors map[string]core.Connector
}

func newCompositionConnectorStore() *compositionConnectorStore {
	return &compositionConnectorStore{connectors: map[string]core.Connector{}}
}

func (s *compositionConnectorStore) Create(_ context.Context, in core.CreateConnectorInput) (core.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	connector := core.Connector{
		ID:         fmt.Sprintf("conn_%d", s.seq),
		TenantID:   in.TenantID,
		ProviderID: in.ProviderID,
		Status:     in.Status,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if connector.Status == "" {
		connector.Status = core.ConnectorStatusPending
	}
	s.connectors[connector.ID] = connector
	return connector, nil
}

func (s *compositionConnectorStore) Get(_ context.Context, id string) (core.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connector, ok := s.connectors[id]
	if !ok {
		return core.Connector{}, fmt.Errorf("connector %q not found", id)
	}
	return connector, nil
}

func (s *compositionConnectorStore) FindByTenant(_ context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Connector{}
	for _, connector := range s.connectors {
		if connector.TenantID != tenantID {
			continue
		}
		if providerID != "" && connector.ProviderID != providerID {
			continue
		}
		out = append(out, connector)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *compositionConnectorStore) UpdateStatus(_ context.Context, id string, status string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connector, ok := s.connectors[id]
	if !ok {
		return fmt.Errorf("connector %q not found", id)
	}
	connector.Status = core.ConnectorStatus(status)
	connector.LastError = reason
	connector.UpdatedAt = time.Now().UTC()
	s.connectors[id] = connector
	return nil
}

type compositionCredentialStore struct {
	mu      sync.Mutex
	seq     int
	records map[string][]core.CredentialRecord
}

func newCompositionCredentialStore() *compositionCredentialStore {
	return &compositionCredentialStore{records: map[string][]core.CredentialRecord{}}
}

func (s *compositionCredentialStore) SaveNewVersion(_ context.Context, in core.SaveCredentialInput) (core.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	existing := s.records[in.ConnectorID]
	for i := range existing {
		if existing[i].Status == core.CredentialStatusActive {
			existing[i].Status = core.CredentialStatusSuperseded
		}
	}
	record := core.CredentialRecord{
		ID:                fmt.Sprintf("cred_%d", s.seq),
		ConnectorID:       in.ConnectorID,
		Version:           len(existing) + 1,
		EncryptedPayload:  append([]byte(nil), in.EncryptedPayload...),
		TokenType:         in.TokenType,
		ExpiresAt:         in.ExpiresAt,
		Refreshable:       in.Refreshable,
		Status:            in.Status,
		EncryptionKeyID:   in.EncryptionKeyID,
		EncryptionVersion: in.EncryptionVersion,
		CreatedAt:         time.Now().UTC(),
	}
	if record.Status == "" {
		record.Status = core.CredentialStatusActive
	}
	s.records[in.ConnectorID] = append(existing, record)
	return record, nil
}

func (s *compositionCredentialStore) GetActiveByConnector(_ context.Context, connectorID string) (core.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records[connectorID] {
		if record.Status == core.CredentialStatusActive {
			return record, nil
		}
	}
	return core.CredentialRecord{}, fmt.Errorf("no active credential for connector %q", connectorID)
}

func (s *compositionCredentialStore) RevokeActive(_ context.Context, connectorID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[connectorID]
	for i := range records {
		if records[i].Status == core.CredentialStatusActive {
			records[i].Status = core.CredentialStatusRevoked
			records[i].RevocationReason = reason
			return nil
		}
	}
	return fmt.Errorf("no active credential for connector %q", connectorID)
}

type compositionMappingStore struct {
	mu     sync.Mutex
	seq    int
	drafts map[string]wizard.MappingDraft
}

func newCompositionMappingStore() *compositionMappingStore {
	return &compositionMappingStore{drafts: map[string]wizard.MappingDraft{}}
}

func (s *compositionMappingStore) SaveDraft(_ context.Context, draft wizard.MappingDraft) (wizard.MappingDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.ID == "" {
		s.seq++
		draft.ID = fmt.Sprintf("map_%d", s.seq)
	}
	draft.Status = wizard.MappingStatusDraft
	s.drafts[draft.ID] = draft
	return draft, nil
}

func (s *compositionMappingStore) Activate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return fmt.Errorf("mapping %q not found", id)
	}
	draft.Status = wizard.MappingStatusActive
	s.drafts[id] = draft
	return nil
}

func (s *compositionMappingStore) Get(_ context.Context, id string) (wizard.MappingDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return wizard.MappingDraft{}, fmt.Errorf("mapping %q not found", id)
	}
	return draft, nil
}

func (s *compositionMappingStore) FindByConnector(_ context.Context, connectorID string) ([]wizard.MappingDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []wizard.MappingDraft{}
	for _, draft := range s.drafts {
		if draft.ConnectorID == connectorID {
			out = append(out, draft)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ core.ConnectorStore  = (*compositionConnectorStore)(nil)
	_ core.CredentialStore = (*compositionCredentialStore)(nil)
)
