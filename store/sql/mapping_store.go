package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/funtoco/go-connectors/wizard"
)

type MappingStore struct {
	db   *bun.DB
	repo repository.Repository[*fieldMappingRecord]
}

func (s *MappingStore) SaveDraft(ctx context.Context, draft wizard.MappingDraft) (wizard.MappingDraft, error) {
	if s == nil || s.repo == nil {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	if strings.TrimSpace(draft.TenantID) == "" {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	if strings.TrimSpace(draft.ConnectorID) == "" {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: connector id is required")
	}
	if strings.TrimSpace(draft.RemoteAppID) == "" || strings.TrimSpace(draft.DestinationKey) == "" {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: remote app and destination are required")
	}
	if len(draft.Mappings) == 0 {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: at least one field mapping is required")
	}

	draft.Status = wizard.MappingStatusDraft
	now := time.Now().UTC()

	if strings.TrimSpace(draft.ID) == "" {
		record := newFieldMappingRecord(draft, now)
		record.ID = ""
		created, err := s.repo.Create(ctx, record)
		if err != nil {
			return wizard.MappingDraft{}, err
		}
		return created.toDomain(), nil
	}

	existing, err := s.repo.GetByID(ctx, strings.TrimSpace(draft.ID))
	if err != nil {
		return wizard.MappingDraft{}, err
	}
	existing.RemoteAppID = draft.RemoteAppID
	existing.DestinationKey = draft.DestinationKey
	existing.Mappings = toMappingPairs(draft.Mappings)
	existing.Status = string(wizard.MappingStatusDraft)
	existing.UpdatedAt = now

	updated, err := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID))
	if err != nil {
		return wizard.MappingDraft{}, err
	}
	return updated.toDomain(), nil
}

// Activate promotes one mapping and demotes any other active mapping
// for the same connector and destination back to draft, in one tx.
func (s *MappingStore) Activate(ctx context.Context, id string) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: mapping store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: mapping id is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.GetByID(ctx, trimmedID)
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*fieldMappingRecord)(nil)).
			Set("status = ?", string(wizard.MappingStatusDraft)).
			Set("updated_at = ?", now).
			Where("connector_id = ?", record.ConnectorID).
			Where("destination_key = ?", record.DestinationKey).
			Where("status = ?", string(wizard.MappingStatusActive)).
			Where("id != ?", record.ID).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*fieldMappingRecord)(nil)).
			Set("status = ?", string(wizard.MappingStatusActive)).
			Set("updated_at = ?", now).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *MappingStore) Get(ctx context.Context, id string) (wizard.MappingDraft, error) {
	if s == nil || s.repo == nil {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return wizard.MappingDraft{}, err
	}
	return record.toDomain(), nil
}

func (s *MappingStore) FindByConnector(ctx context.Context, connectorID string) ([]wizard.MappingDraft, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return nil, fmt.Errorf("sqlstore: connector id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connector_id", "=", connectorID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]wizard.MappingDraft, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
