package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type connectorRecord struct {
	bun.BaseModel `bun:"table:connectors,alias:cn"`

	ID         string     `bun:"id,pk"`
	TenantID   string     `bun:"tenant_id,notnull"`
	ProviderID string     `bun:"provider_id,notnull"`
	Status     string     `bun:"status,notnull"`
	LastError  string     `bun:"last_error"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt  *time.Time `bun:"deleted_at,soft_delete"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:connector_credentials,alias:cc"`

	ID                string     `bun:"id,pk"`
	ConnectorID       string     `bun:"connector_id,notnull"`
	Version           int        `bun:"version,notnull"`
	EncryptedPayload  []byte     `bun:"encrypted_payload,notnull"`
	TokenType         string     `bun:"token_type,notnull"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero"`
	Refreshable       bool       `bun:"refreshable,notnull"`
	Status            string     `bun:"status,notnull"`
	EncryptionKeyID   string     `bun:"encryption_key_id,notnull"`
	EncryptionVersion int        `bun:"encryption_version,notnull"`
	RevocationReason  string     `bun:"revocation_reason,notnull"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type fieldMappingPair struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Transform   string `json:"transform,omitempty"`
}

type fieldMappingRecord struct {
	bun.BaseModel `bun:"table:field_mappings,alias:fm"`

	ID             string             `bun:"id,pk"`
	TenantID       string             `bun:"tenant_id,notnull"`
	ConnectorID    string             `bun:"connector_id,notnull"`
	RemoteAppID    string             `bun:"remote_app_id,notnull"`
	DestinationKey string             `bun:"destination_key,notnull"`
	Mappings       []fieldMappingPair `bun:"mappings,type:jsonb,notnull"`
	Status         string             `bun:"status,notnull"`
	CreatedAt      time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time          `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
