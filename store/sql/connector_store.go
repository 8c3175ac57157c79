package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/funtoco/go-connectors/core"
)

type ConnectorStore struct {
	db   *bun.DB
	repo repository.Repository[*connectorRecord]
}

func (s *ConnectorStore) Create(ctx context.Context, in core.CreateConnectorInput) (core.Connector, error) {
	if s == nil || s.repo == nil {
		return core.Connector{}, fmt.Errorf("sqlstore: connector store is not configured")
	}
	tenantID := strings.TrimSpace(in.TenantID)
	if tenantID == "" {
		return core.Connector{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	providerID, err := core.ParseProviderID(string(in.ProviderID))
	if err != nil {
		return core.Connector{}, err
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.ConnectorStatusPending
	}

	record := newConnectorRecord(core.CreateConnectorInput{
		TenantID:   tenantID,
		ProviderID: providerID,
		Status:     status,
	}, time.Now().UTC())

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connector{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectorStore) Get(ctx context.Context, id string) (core.Connector, error) {
	if s == nil || s.repo == nil {
		return core.Connector{}, fmt.Errorf("sqlstore: connector store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Connector{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectorStore) FindByTenant(ctx context.Context, tenantID string, providerID core.ProviderID) ([]core.Connector, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connector store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("sqlstore: tenant id is required")
	}

	criteria := []repository.SelectCriteria{
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	}
	if strings.TrimSpace(string(providerID)) != "" {
		criteria = append(criteria, repository.SelectBy("provider_id", "=", string(providerID)))
	}

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Connector, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConnectorStore) UpdateStatus(ctx context.Context, id string, status string, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connector store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connector id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	current.Status = strings.TrimSpace(status)
	current.LastError = strings.TrimSpace(reason)
	current.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}
