package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

// AuthMutatingService is the slice of the auth orchestrator the command
// handlers depend on.
type AuthMutatingService interface {
	StartAuth(ctx context.Context, req core.StartAuthRequest) (core.StartAuthResponse, error)
	HandleCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResult, error)
	Refresh(ctx context.Context, req core.RefreshRequest) (core.RefreshResult, error)
	RunRefreshWithRetry(ctx context.Context, req core.RefreshRequest, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
	Revoke(ctx context.Context, connectorID string, reason string) error
}

type MappingMutatingService interface {
	SaveDraft(ctx context.Context, draft wizard.MappingDraft) (wizard.MappingDraft, error)
	Activate(ctx context.Context, mappingID string) error
}

type StartAuthCommand struct {
	service AuthMutatingService
}

func NewStartAuthCommand(service AuthMutatingService) *StartAuthCommand {
	return &StartAuthCommand{service: service}
}

func (c *StartAuthCommand) Execute(ctx context.Context, msg StartAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.StartAuth(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service AuthMutatingService
}

func NewCompleteCallbackCommand(service AuthMutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service AuthMutatingService
}

func NewRefreshCommand(service AuthMutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunRefreshCommand struct {
	service AuthMutatingService
}

func NewRunRefreshCommand(service AuthMutatingService) *RunRefreshCommand {
	return &RunRefreshCommand{service: service}
}

func (c *RunRefreshCommand) Execute(ctx context.Context, msg RunRefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RunRefreshWithRetry(ctx, msg.Request, msg.Options)
	// the run result carries attempt counts even on failure
	storeResult(ctx, out)
	return err
}

type RevokeCommand struct {
	service AuthMutatingService
}

func NewRevokeCommand(service AuthMutatingService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	return c.service.Revoke(ctx, msg.ConnectorID, msg.Reason)
}

type SaveMappingDraftCommand struct {
	service MappingMutatingService
}

func NewSaveMappingDraftCommand(service MappingMutatingService) *SaveMappingDraftCommand {
	return &SaveMappingDraftCommand{service: service}
}

func (c *SaveMappingDraftCommand) Execute(ctx context.Context, msg SaveMappingDraftMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: mapping service is required")
	}
	out, err := c.service.SaveDraft(ctx, msg.Draft)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ActivateMappingCommand struct {
	service MappingMutatingService
}

func NewActivateMappingCommand(service MappingMutatingService) *ActivateMappingCommand {
	return &ActivateMappingCommand{service: service}
}

func (c *ActivateMappingCommand) Execute(ctx context.Context, msg ActivateMappingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: mapping service is required")
	}
	return c.service.Activate(ctx, msg.MappingID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
