package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

var (
	_ gocmd.Querier[GetConnectorMessage, core.Connector]               = (*GetConnectorQuery)(nil)
	_ gocmd.Querier[ListConnectorsMessage, []core.Connector]           = (*ListConnectorsQuery)(nil)
	_ gocmd.Querier[GetActiveCredentialMessage, core.CredentialRecord] = (*GetActiveCredentialQuery)(nil)
	_ gocmd.Querier[GetMappingMessage, wizard.MappingDraft]            = (*GetMappingQuery)(nil)
	_ gocmd.Querier[ListMappingsMessage, []wizard.MappingDraft]        = (*ListMappingsQuery)(nil)
	_ gocmd.Querier[CheckRefreshNeededMessage, bool]                   = (*CheckRefreshNeededQuery)(nil)
)
