package wizard

import (
	"context"
	"strings"
)

// State identifies where a wizard session currently sits. A session is
// created idle and becomes selecting_remote_app on Start.
type State string

const (
	StateIdle                 State = "idle"
	StateSelectingRemoteApp   State = "selecting_remote_app"
	StateSelectingDestination State = "selecting_destination"
	StateMappingFields        State = "mapping_fields"
	StateReviewAndSave        State = "review_and_save"
	StateDone                 State = "done"
)

type RemoteApp struct {
	ID   string
	Name string
}

type RemoteAppField struct {
	Code  string
	Label string
	Type  string
}

type Destination struct {
	Key   string
	Label string
}

type DestinationColumn struct {
	Name string
	Type string
}

// FieldMapping pairs one remote field with one destination column. A
// row missing either side is incomplete and blocks saving the draft.
// Transform optionally names a conversion applied to the source value
// before it lands in the destination column.
type FieldMapping struct {
	Source      string
	Destination string
	Transform   string
}

func (m FieldMapping) Complete() bool {
	return strings.TrimSpace(m.Source) != "" && strings.TrimSpace(m.Destination) != ""
}

type MappingStatus string

const (
	MappingStatusDraft  MappingStatus = "draft"
	MappingStatusActive MappingStatus = "active"
)

type MappingDraft struct {
	ID             string
	TenantID       string
	ConnectorID    string
	RemoteAppID    string
	DestinationKey string
	Mappings       []FieldMapping
	Status         MappingStatus
}

// ExistingMapping seeds an edit-mode session: the wizard jumps straight
// to mapping_fields with these selections in place.
type ExistingMapping struct {
	ID             string
	RemoteAppID    string
	DestinationKey string
}

// RemoteAppCatalog lists the apps and fields a connector can see on the
// remote side. The wizard treats it as a black box returning either
// data or an error.
type RemoteAppCatalog interface {
	ListApps(ctx context.Context, connectorID string) ([]RemoteApp, error)
	ListAppFields(ctx context.Context, connectorID string, appID string) ([]RemoteAppField, error)
}

type DestinationSchema interface {
	ListDestinations(ctx context.Context) ([]Destination, error)
	ListColumns(ctx context.Context, destinationKey string) ([]DestinationColumn, error)
}

type MappingStore interface {
	SaveDraft(ctx context.Context, draft MappingDraft) (MappingDraft, error)
	Activate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (MappingDraft, error)
}
