package sqlstore

import (
	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

var (
	_ core.ConnectorStore         = (*ConnectorStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ wizard.MappingStore         = (*MappingStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
