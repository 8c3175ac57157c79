package sqlstore

import (
	"time"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

func newConnectorRecord(in core.CreateConnectorInput, now time.Time) *connectorRecord {
	return &connectorRecord{
		TenantID:   in.TenantID,
		ProviderID: string(in.ProviderID),
		Status:     string(in.Status),
		LastError:  "",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *connectorRecord) toDomain() core.Connector {
	if r == nil {
		return core.Connector{}
	}
	return core.Connector{
		ID:         r.ID,
		TenantID:   r.TenantID,
		ProviderID: core.ProviderID(r.ProviderID),
		Status:     core.ConnectorStatus(r.Status),
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func newCredentialRecord(in core.SaveCredentialInput, version int, now time.Time) *credentialRecord {
	record := &credentialRecord{
		ConnectorID:       in.ConnectorID,
		Version:           version,
		EncryptedPayload:  append([]byte(nil), in.EncryptedPayload...),
		TokenType:         in.TokenType,
		Refreshable:       in.Refreshable,
		Status:            string(in.Status),
		EncryptionKeyID:   in.EncryptionKeyID,
		EncryptionVersion: in.EncryptionVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.ExpiresAt != nil {
		expiresAt := *in.ExpiresAt
		record.ExpiresAt = &expiresAt
	}
	return record
}

func (r *credentialRecord) toDomain() core.CredentialRecord {
	if r == nil {
		return core.CredentialRecord{}
	}
	credential := core.CredentialRecord{
		ID:                r.ID,
		ConnectorID:       r.ConnectorID,
		Version:           r.Version,
		EncryptedPayload:  append([]byte(nil), r.EncryptedPayload...),
		TokenType:         r.TokenType,
		Refreshable:       r.Refreshable,
		Status:            core.CredentialStatus(r.Status),
		EncryptionKeyID:   r.EncryptionKeyID,
		EncryptionVersion: r.EncryptionVersion,
		RevocationReason:  r.RevocationReason,
		CreatedAt:         r.CreatedAt,
	}
	if r.ExpiresAt != nil {
		expiresAt := *r.ExpiresAt
		credential.ExpiresAt = &expiresAt
	}
	return credential
}

func newFieldMappingRecord(draft wizard.MappingDraft, now time.Time) *fieldMappingRecord {
	return &fieldMappingRecord{
		ID:             draft.ID,
		TenantID:       draft.TenantID,
		ConnectorID:    draft.ConnectorID,
		RemoteAppID:    draft.RemoteAppID,
		DestinationKey: draft.DestinationKey,
		Mappings:       toMappingPairs(draft.Mappings),
		Status:         string(draft.Status),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *fieldMappingRecord) toDomain() wizard.MappingDraft {
	if r == nil {
		return wizard.MappingDraft{}
	}
	return wizard.MappingDraft{
		ID:             r.ID,
		TenantID:       r.TenantID,
		ConnectorID:    r.ConnectorID,
		RemoteAppID:    r.RemoteAppID,
		DestinationKey: r.DestinationKey,
		Mappings:       fromMappingPairs(r.Mappings),
		Status:         wizard.MappingStatus(r.Status),
	}
}

func toMappingPairs(mappings []wizard.FieldMapping) []fieldMappingPair {
	out := make([]fieldMappingPair, 0, len(mappings))
	for _, mapping := range mappings {
		out = append(out, fieldMappingPair{
			Source:      mapping.Source,
			Destination: mapping.Destination,
			Transform:   mapping.Transform,
		})
	}
	return out
}

func fromMappingPairs(pairs []fieldMappingPair) []wizard.FieldMapping {
	out := make([]wizard.FieldMapping, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, wizard.FieldMapping{
			Source:      pair.Source,
			Destination: pair.Destination,
			Transform:   pair.Transform,
		})
	}
	return out
}
