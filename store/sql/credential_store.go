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

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

// SaveNewVersion supersedes the active credential and inserts the next
// version inside one transaction. Credentials are never patched in
// place; the old row stays as an audit trail.
func (s *CredentialStore) SaveNewVersion(ctx context.Context, in core.SaveCredentialInput) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	connectorID := strings.TrimSpace(in.ConnectorID)
	if connectorID == "" {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: connector id is required")
	}
	if len(in.EncryptedPayload) == 0 {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: encrypted payload is required")
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.CredentialStatusActive
	}
	in.ConnectorID = connectorID
	in.Status = status
	now := time.Now().UTC()

	var created core.CredentialRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		nextVersion, versionErr := s.nextVersion(ctx, tx, connectorID)
		if versionErr != nil {
			return versionErr
		}

		if status == core.CredentialStatusActive {
			_, updateErr := tx.NewUpdate().
				Model((*credentialRecord)(nil)).
				Set("status = ?", string(core.CredentialStatusSuperseded)).
				Set("revocation_reason = ?", "superseded").
				Set("updated_at = ?", now).
				Where("connector_id = ?", connectorID).
				Where("status = ?", string(core.CredentialStatusActive)).
				Exec(ctx)
			if updateErr != nil {
				return updateErr
			}
		}

		record := newCredentialRecord(in, nextVersion, now)
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		created = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}

	return created, nil
}

func (s *CredentialStore) GetActiveByConnector(ctx context.Context, connectorID string) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connector_id", "=", strings.TrimSpace(connectorID)),
		repository.SelectBy("status", "=", string(core.CredentialStatusActive)),
		repository.OrderBy("version DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	if len(records) == 0 {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: active credential not found for connector %q", connectorID)
	}
	return records[0].toDomain(), nil
}

func (s *CredentialStore) RevokeActive(ctx context.Context, connectorID string, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return fmt.Errorf("sqlstore: connector id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "revoked"
	}

	_, err := s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("status = ?", string(core.CredentialStatusRevoked)).
		Set("revocation_reason = ?", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("connector_id = ?", connectorID).
		Where("status = ?", string(core.CredentialStatusActive)).
		Exec(ctx)
	return err
}

func (s *CredentialStore) nextVersion(ctx context.Context, tx bun.Tx, connectorID string) (int, error) {
	var maxVersion int
	if err := tx.NewSelect().
		Model((*credentialRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Where("?TableAlias.connector_id = ?", connectorID).
		Scan(ctx, &maxVersion); err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}
