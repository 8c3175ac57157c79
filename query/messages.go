package query

import (
	"fmt"
	"strings"

	"github.com/funtoco/go-connectors/core"
)

const (
	TypeGetConnector       = "connectors.query.connector.get"
	TypeListConnectors     = "connectors.query.connector.list"
	TypeGetActiveCred      = "connectors.query.credential.active"
	TypeGetMapping         = "connectors.query.mapping.get"
	TypeListMappings       = "connectors.query.mapping.list"
	TypeCheckRefreshNeeded = "connectors.query.credential.should_refresh"
)

type GetConnectorMessage struct {
	ConnectorID string
}

func (GetConnectorMessage) Type() string { return TypeGetConnector }

func (m GetConnectorMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return fmt.Errorf("query: connector id is required")
	}
	return nil
}

type ListConnectorsMessage struct {
	TenantID   string
	ProviderID core.ProviderID
}

func (ListConnectorsMessage) Type() string { return TypeListConnectors }

func (m ListConnectorsMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	return nil
}

type GetActiveCredentialMessage struct {
	ConnectorID string
}

func (GetActiveCredentialMessage) Type() string { return TypeGetActiveCred }

func (m GetActiveCredentialMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return fmt.Errorf("query: connector id is required")
	}
	return nil
}

type GetMappingMessage struct {
	MappingID string
}

func (GetMappingMessage) Type() string { return TypeGetMapping }

func (m GetMappingMessage) Validate() error {
	if strings.TrimSpace(m.MappingID) == "" {
		return fmt.Errorf("query: mapping id is required")
	}
	return nil
}

type ListMappingsMessage struct {
	ConnectorID string
}

func (ListMappingsMessage) Type() string { return TypeListMappings }

func (m ListMappingsMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return fmt.Errorf("query: connector id is required")
	}
	return nil
}

type CheckRefreshNeededMessage struct {
	ConnectorID string
}

func (CheckRefreshNeededMessage) Type() string { return TypeCheckRefreshNeeded }

func (m CheckRefreshNeededMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return fmt.Errorf("query: connector id is required")
	}
	return nil
}
