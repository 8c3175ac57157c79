package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartAuthMessage]        = (*StartAuthCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[RefreshMessage]          = (*RefreshCommand)(nil)
	_ gocmd.Commander[RunRefreshMessage]       = (*RunRefreshCommand)(nil)
	_ gocmd.Commander[RevokeMessage]           = (*RevokeCommand)(nil)
	_ gocmd.Commander[SaveMappingDraftMessage] = (*SaveMappingDraftCommand)(nil)
	_ gocmd.Commander[ActivateMappingMessage]  = (*ActivateMappingCommand)(nil)
)
