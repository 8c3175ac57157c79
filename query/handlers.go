package query

import (
	"context"
	"time"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

type ConnectorReader interface {
	Get(ctx context.Context, id string) (core.Connector, error)
	FindByTenant(ctx context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error)
}

type CredentialReader interface {
	GetActiveByConnector(ctx context.Context, connectorID string) (core.CredentialRecord, error)
}

type MappingReader interface {
	Get(ctx context.Context, id string) (wizard.MappingDraft, error)
	FindByConnector(ctx context.Context, connectorID string) ([]wizard.MappingDraft, error)
}

type GetConnectorQuery struct {
	reader ConnectorReader
}

func NewGetConnectorQuery(reader ConnectorReader) *GetConnectorQuery {
	return &GetConnectorQuery{reader: reader}
}

func (q *GetConnectorQuery) Query(ctx context.Context, msg GetConnectorMessage) (core.Connector, error) {
	if q == nil || q.reader == nil {
		return core.Connector{}, queryDependencyError("query: connector reader is required")
	}
	return q.reader.Get(ctx, msg.ConnectorID)
}

type ListConnectorsQuery struct {
	reader ConnectorReader
}

func NewListConnectorsQuery(reader ConnectorReader) *ListConnectorsQuery {
	return &ListConnectorsQuery{reader: reader}
}

func (q *ListConnectorsQuery) Query(ctx context.Context, msg ListConnectorsMessage) ([]core.Connector, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: connector reader is required")
	}
	return q.reader.FindByTenant(ctx, msg.TenantID, msg.ProviderID)
}

type GetActiveCredentialQuery struct {
	reader CredentialReader
}

func NewGetActiveCredentialQuery(reader CredentialReader) *GetActiveCredentialQuery {
	return &GetActiveCredentialQuery{reader: reader}
}

func (q *GetActiveCredentialQuery) Query(
	ctx context.Context,
	msg GetActiveCredentialMessage,
) (core.CredentialRecord, error) {
	if q == nil || q.reader == nil {
		return core.CredentialRecord{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.GetActiveByConnector(ctx, msg.ConnectorID)
}

type GetMappingQuery struct {
	reader MappingReader
}

func NewGetMappingQuery(reader MappingReader) *GetMappingQuery {
	return &GetMappingQuery{reader: reader}
}

func (q *GetMappingQuery) Query(ctx context.Context, msg GetMappingMessage) (wizard.MappingDraft, error) {
	if q == nil || q.reader == nil {
		return wizard.MappingDraft{}, queryDependencyError("query: mapping reader is required")
	}
	return q.reader.Get(ctx, msg.MappingID)
}

type ListMappingsQuery struct {
	reader MappingReader
}

func NewListMappingsQuery(reader MappingReader) *ListMappingsQuery {
	return &ListMappingsQuery{reader: reader}
}

func (q *ListMappingsQuery) Query(ctx context.Context, msg ListMappingsMessage) ([]wizard.MappingDraft, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: mapping reader is required")
	}
	return q.reader.FindByConnector(ctx, msg.ConnectorID)
}

// CheckRefreshNeededQuery reports whether the connector's active
// credential is close enough to expiry to warrant a scheduled refresh.
type CheckRefreshNeededQuery struct {
	reader   CredentialReader
	leadTime time.Duration
	now      func() time.Time
}

func NewCheckRefreshNeededQuery(reader CredentialReader, leadTime time.Duration) *CheckRefreshNeededQuery {
	return &CheckRefreshNeededQuery{
		reader:   reader,
		leadTime: leadTime,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (q *CheckRefreshNeededQuery) Query(ctx context.Context, msg CheckRefreshNeededMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: credential reader is required")
	}
	record, err := q.reader.GetActiveByConnector(ctx, msg.ConnectorID)
	if err != nil {
		return false, err
	}
	return core.ShouldRefresh(record, q.now(), q.leadTime), nil
}
