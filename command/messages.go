package command

import (
	"strings"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

const (
	TypeStartAuth        = "connectors.command.auth.start"
	TypeCompleteCallback = "connectors.command.callback.complete"
	TypeRefresh          = "connectors.command.refresh"
	TypeRunRefresh       = "connectors.command.refresh.run"
	TypeRevoke           = "connectors.command.revoke"
	TypeSaveMappingDraft = "connectors.command.mapping.save_draft"
	TypeActivateMapping  = "connectors.command.mapping.activate"
)

type StartAuthMessage struct {
	Request core.StartAuthRequest
}

func (StartAuthMessage) Type() string { return TypeStartAuth }

func (m StartAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(string(m.Request.ProviderID)) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	if strings.TrimSpace(m.Request.RedirectURI) == "" {
		return commandValidationError("redirect_uri", "redirect uri is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state token is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" && strings.TrimSpace(m.Request.ErrorParam) == "" {
		return commandValidationError("code", "authorization code or error parameter is required")
	}
	return nil
}

type RefreshMessage struct {
	Request core.RefreshRequest
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	return nil
}

// RunRefreshMessage is the scheduled variant: the handler wraps the
// refresh in the per-connector lock and bounded retry policy.
type RunRefreshMessage struct {
	Request core.RefreshRequest
	Options core.RefreshRunOptions
}

func (RunRefreshMessage) Type() string { return TypeRunRefresh }

func (m RunRefreshMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	if m.Options.MaxAttempts < 0 {
		return commandValidationError("max_attempts", "max attempts must be >= 0")
	}
	return nil
}

type RevokeMessage struct {
	ConnectorID string
	Reason      string
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (m RevokeMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	return nil
}

type SaveMappingDraftMessage struct {
	Draft wizard.MappingDraft
}

func (SaveMappingDraftMessage) Type() string { return TypeSaveMappingDraft }

func (m SaveMappingDraftMessage) Validate() error {
	if strings.TrimSpace(m.Draft.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Draft.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	if strings.TrimSpace(m.Draft.RemoteAppID) == "" {
		return commandValidationError("remote_app_id", "remote app id is required")
	}
	if strings.TrimSpace(m.Draft.DestinationKey) == "" {
		return commandValidationError("destination_key", "destination key is required")
	}
	if len(m.Draft.Mappings) == 0 {
		return commandValidationError("mappings", "at least one field mapping is required")
	}
	for _, pair := range m.Draft.Mappings {
		if !pair.Complete() {
			return commandValidationError("mappings", "every mapping row needs a source and a destination")
		}
	}
	return nil
}

type ActivateMappingMessage struct {
	MappingID string
}

func (ActivateMappingMessage) Type() string { return TypeActivateMapping }

func (m ActivateMappingMessage) Validate() error {
	if strings.TrimSpace(m.MappingID) == "" {
		return commandValidationError("mapping_id", "mapping id is required")
	}
	return nil
}
