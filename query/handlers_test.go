package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

type stubConnectorReader struct {
	getFn  func(ctx context.Context, id string) (core.Connector, error)
	findFn func(ctx context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error)
}

func (s stubConnectorReader) Get(ctx context.Context, id string) (core.Connector, error) {
	if s.getFn == nil {
		return core.Connector{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, id)
}

func (s stubConnectorReader) FindByTenant(ctx context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error) {
	if s.findFn == nil {
		return nil, fmt.Errorf("find not configured")
	}
	return s.findFn(ctx, tenantID, providerID)
}

type stubCredentialReader struct {
	activeFn func(ctx context.Context, connectorID string) (core.CredentialRecord, error)
}

func (s stubCredentialReader) GetActiveByConnector(ctx context.Context, connectorID string) (core.CredentialRecord, error) {
	if s.activeFn == nil {
		return core.CredentialRecord{}, fmt.Errorf("active credential not configured")
	}
	return s.activeFn(ctx, connectorID)
}

type stubMappingReader struct {
	getFn  func(ctx context.Context, id string) (wizard.MappingDraft, error)
	findFn func(ctx context.Context, connectorID string) ([]wizard.MappingDraft, error)
}

func (s stubMappingReader) Get(ctx context.Context, id string) (wizard.MappingDraft, error) {
	if s.getFn == nil {
		return wizard.MappingDraft{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, id)
}

func (s stubMappingReader) FindByConnector(ctx context.Context, connectorID string) ([]wizard.MappingDraft, error) {
	if s.findFn == nil {
		return nil, fmt.Errorf("find not configured")
	}
	return s.findFn(ctx, connectorID)
}

func TestConnectorQueries_DelegateToReader(t *testing.T) {
	reader := stubConnectorReader{
		getFn: func(_ context.Context, id string) (core.Connector, error) {
			if id != "conn-1" {
				t.Fatalf("unexpected connector id: %q", id)
			}
			return core.Connector{ID: id, Status: core.ConnectorStatusActive}, nil
		},
		findFn: func(_ context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error) {
			if tenantID != "tenant-1" || providerID != core.ProviderKintone {
				t.Fatalf("unexpected filter: %q %q", tenantID, providerID)
			}
			return []core.Connector{{ID: "conn-1"}}, nil
		},
	}

	connector, err := NewGetConnectorQuery(reader).Query(context.Background(), GetConnectorMessage{ConnectorID: "conn-1"})
	if err != nil {
		t.Fatalf("get connector: %v", err)
	}
	if connector.Status != core.ConnectorStatusActive {
		t.Fatalf("unexpected connector: %#v", connector)
	}

	list, err := NewListConnectorsQuery(reader).Query(context.Background(), ListConnectorsMessage{
		TenantID:   "tenant-1",
		ProviderID: core.ProviderKintone,
	})
	if err != nil {
		t.Fatalf("list connectors: %v", err)
	}
	if len(list) != 1 || list[0].ID != "conn-1" {
		t.Fatalf("unexpected list: %#v", list)
	}
}

func TestMappingQueries_DelegateToReader(t *testing.T) {
	reader := stubMappingReader{
		getFn: func(_ context.Context, id string) (wizard.MappingDraft, error) {
			return wizard.MappingDraft{ID: id, DestinationKey: "people"}, nil
		},
		findFn: func(_ context.Context, connectorID string) ([]wizard.MappingDraft, error) {
			if connectorID != "conn-1" {
				t.Fatalf("unexpected connector id: %q", connectorID)
			}
			return []wizard.MappingDraft{{ID: "map-1"}, {ID: "map-2"}}, nil
		},
	}

	draft, err := NewGetMappingQuery(reader).Query(context.Background(), GetMappingMessage{MappingID: "map-1"})
	if err != nil {
		t.Fatalf("get mapping: %v", err)
	}
	if draft.ID != "map-1" || draft.DestinationKey != "people" {
		t.Fatalf("unexpected mapping: %#v", draft)
	}

	list, err := NewListMappingsQuery(reader).Query(context.Background(), ListMappingsMessage{ConnectorID: "conn-1"})
	if err != nil {
		t.Fatalf("list mappings: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("unexpected list: %#v", list)
	}
}

func TestCheckRefreshNeededQuery(t *testing.T) {
	soon := time.Now().UTC().Add(2 * time.Minute)
	reader := stubCredentialReader{
		activeFn: func(_ context.Context, connectorID string) (core.CredentialRecord, error) {
			return core.CredentialRecord{
				ConnectorID: connectorID,
				Refreshable: true,
				Status:      core.CredentialStatusActive,
				ExpiresAt:   &soon,
			}, nil
		},
	}

	needed, err := NewCheckRefreshNeededQuery(reader, 5*time.Minute).Query(
		context.Background(),
		CheckRefreshNeededMessage{ConnectorID: "conn-1"},
	)
	if err != nil {
		t.Fatalf("check refresh: %v", err)
	}
	if !needed {
		t.Fatal("expected credential near expiry to need refresh")
	}

	far := stubCredentialReader{
		activeFn: func(_ context.Context, connectorID string) (core.CredentialRecord, error) {
			later := time.Now().UTC().Add(12 * time.Hour)
			return core.CredentialRecord{
				ConnectorID: connectorID,
				Refreshable: true,
				Status:      core.CredentialStatusActive,
				ExpiresAt:   &later,
			}, nil
		},
	}
	needed, err = NewCheckRefreshNeededQuery(far, 5*time.Minute).Query(
		context.Background(),
		CheckRefreshNeededMessage{ConnectorID: "conn-1"},
	)
	if err != nil {
		t.Fatalf("check refresh: %v", err)
	}
	if needed {
		t.Fatal("expected distant expiry to skip refresh")
	}
}

func TestQueryNilReaderReturnsDependencyError(t *testing.T) {
	var q *GetConnectorQuery
	if _, err := q.Query(context.Background(), GetConnectorMessage{ConnectorID: "conn-1"}); err == nil {
		t.Fatal("expected dependency error for nil query")
	}
	if _, err := NewGetActiveCredentialQuery(nil).Query(context.Background(), GetActiveCredentialMessage{ConnectorID: "conn-1"}); err == nil {
		t.Fatal("expected dependency error for nil reader")
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get connector valid", msg: GetConnectorMessage{ConnectorID: "conn-1"}, wantErr: false},
		{name: "get connector missing id", msg: GetConnectorMessage{}, wantErr: true},
		{name: "list connectors valid", msg: ListConnectorsMessage{TenantID: "tenant-1"}, wantErr: false},
		{name: "list connectors missing tenant", msg: ListConnectorsMessage{}, wantErr: true},
		{name: "active credential missing id", msg: GetActiveCredentialMessage{}, wantErr: true},
		{name: "get mapping missing id", msg: GetMappingMessage{}, wantErr: true},
		{name: "list mappings valid", msg: ListMappingsMessage{ConnectorID: "conn-1"}, wantErr: false},
		{name: "should refresh missing id", msg: CheckRefreshNeededMessage{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
