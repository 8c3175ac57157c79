package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTenantRef                 = errors.New("core: invalid tenant reference")
	ErrUnknownProvider                  = errors.New("core: unknown provider")
	ErrInvalidConnectorStatusTransition = errors.New("core: invalid connector status transition")
)

// ProviderID identifies one supported external provider. The set is closed:
// registering an adapter for an id outside KnownProviderIDs is rejected, so
// adding a provider means extending this list at compile time.
type ProviderID string

const (
	ProviderKintone ProviderID = "kintone"
	ProviderHubSpot ProviderID = "hubspot"
	ProviderSandbox ProviderID = "sandbox"
)

func KnownProviderIDs() []ProviderID {
	return []ProviderID{ProviderKintone, ProviderHubSpot, ProviderSandbox}
}

func ParseProviderID(value string) (ProviderID, error) {
	normalized := ProviderID(strings.TrimSpace(strings.ToLower(value)))
	for _, known := range KnownProviderIDs() {
		if normalized == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
}

// TenantRef scopes a connector to one tenant of the host application.
type TenantRef struct {
	ID string
}

func (t TenantRef) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: empty tenant id", ErrInvalidTenantRef)
	}
	return nil
}

type ConnectorStatus string

const (
	ConnectorStatusPending       ConnectorStatus = "pending"
	ConnectorStatusActive        ConnectorStatus = "active"
	ConnectorStatusErrored       ConnectorStatus = "errored"
	ConnectorStatusPendingReauth ConnectorStatus = "pending_reauth"
	ConnectorStatusDisconnected  ConnectorStatus = "disconnected"
)

// Connector is a configured link between one tenant and one provider.
type Connector struct {
	ID         string
	TenantID   string
	ProviderID ProviderID
	Status     ConnectorStatus
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Connector) TransitionTo(status ConnectorStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !connectorTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnectorStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ConnectorStatusActive {
		c.LastError = ""
	}
	return nil
}

func connectorTransitionAllowed(current, next ConnectorStatus) bool {
	allowed := map[ConnectorStatus]map[ConnectorStatus]struct{}{
		ConnectorStatusPending: {
			ConnectorStatusActive:       {},
			ConnectorStatusErrored:      {},
			ConnectorStatusDisconnected: {},
		},
		ConnectorStatusActive: {
			ConnectorStatusErrored:       {},
			ConnectorStatusPendingReauth: {},
			ConnectorStatusDisconnected:  {},
		},
		ConnectorStatusErrored: {
			ConnectorStatusActive:        {},
			ConnectorStatusPendingReauth: {},
			ConnectorStatusDisconnected:  {},
		},
		ConnectorStatusPendingReauth: {
			ConnectorStatusActive:       {},
			ConnectorStatusDisconnected: {},
		},
		ConnectorStatusDisconnected: {
			ConnectorStatusActive: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CredentialStatus string

const (
	CredentialStatusActive     CredentialStatus = "active"
	CredentialStatusSuperseded CredentialStatus = "superseded"
	CredentialStatusRevoked    CredentialStatus = "revoked"
)

// CredentialRecord is one immutable version of a connector's credentials.
// A successful exchange or refresh supersedes the active version and inserts
// the next one; a record is never patched in place.
type CredentialRecord struct {
	ID                string
	ConnectorID       string
	Version           int
	EncryptedPayload  []byte
	TokenType         string
	ExpiresAt         *time.Time
	Refreshable       bool
	Status            CredentialStatus
	EncryptionKeyID   string
	EncryptionVersion int
	RevocationReason  string
	CreatedAt         time.Time
}

// TokenResponse is the provider-agnostic result of a code exchange or a
// refresh grant.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
	Raw          map[string]any
}

func (t TokenResponse) ResolveExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	expiresAt := now.UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
	return &expiresAt
}
