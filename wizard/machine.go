package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrInvalidTransition = errors.New("wizard: event not valid in current state")
	ErrIncompleteMapping = errors.New("wizard: every field mapping needs a source and a destination")
	ErrNoDraftMapping    = errors.New("wizard: no draft mapping to activate")
)

// Machine drives one mapping-wizard session. It is an explicit,
// injectable object owned by the session scope, never shared module
// state. Transitions are synchronous and free of any view concern; the
// only mutable shared state inside are the two TTL metadata caches,
// which can be discarded at any time at the cost of a refetch.
type Machine struct {
	mu sync.Mutex

	catalog RemoteAppCatalog
	schema  DestinationSchema
	store   MappingStore

	logger   glog.Logger
	now      func() time.Time
	cacheTTL time.Duration

	state       State
	tenantID    string
	connectorID string

	selectedRemoteApp   *RemoteApp
	selectedDestination *Destination
	draftFieldMappings  []FieldMapping
	draftMappingID      string

	fieldCache  *TTLCache[[]RemoteAppField]
	columnCache *TTLCache[[]DestinationColumn]
}

type MachineOption func(*Machine)

func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMachineLogger(logger glog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithCacheTTL(ttl time.Duration) MachineOption {
	return func(m *Machine) {
		if ttl > 0 {
			m.cacheTTL = ttl
		}
	}
}

func NewMachine(catalog RemoteAppCatalog, schema DestinationSchema, store MappingStore, opts ...MachineOption) (*Machine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("wizard: remote app catalog is required")
	}
	if schema == nil {
		return nil, fmt.Errorf("wizard: destination schema is required")
	}
	if store == nil {
		return nil, fmt.Errorf("wizard: mapping store is required")
	}

	machine := &Machine{
		catalog:  catalog,
		schema:   schema,
		store:    store,
		state:    StateIdle,
		now:      func() time.Time { return time.Now().UTC() },
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(machine)
	}
	_, machine.logger = glog.Resolve("connectors.wizard", nil, machine.logger)
	machine.logger = glog.Ensure(machine.logger)
	machine.fieldCache = NewTTLCache[[]RemoteAppField](machine.cacheTTL, WithCacheClock[[]RemoteAppField](machine.now))
	machine.columnCache = NewTTLCache[[]DestinationColumn](machine.cacheTTL, WithCacheClock[[]DestinationColumn](machine.now))
	return machine, nil
}

func (m *Machine) State() State {
	if m == nil {
		return StateIdle
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) DraftMappingID() string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draftMappingID
}

func (m *Machine) SelectedRemoteApp() (RemoteApp, bool) {
	if m == nil {
		return RemoteApp{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedRemoteApp == nil {
		return RemoteApp{}, false
	}
	return *m.selectedRemoteApp, true
}

func (m *Machine) SelectedDestination() (Destination, bool) {
	if m == nil {
		return Destination{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedDestination == nil {
		return Destination{}, false
	}
	return *m.selectedDestination, true
}

func (m *Machine) FieldMappings() []FieldMapping {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FieldMapping(nil), m.draftFieldMappings...)
}

// Start opens a fresh session for one tenant and connector.
func (m *Machine) Start(_ context.Context, tenantID, connectorID string) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	tenantID = strings.TrimSpace(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if tenantID == "" {
		return fmt.Errorf("wizard: tenant id is required")
	}
	if connectorID == "" {
		return fmt.Errorf("wizard: connector id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.tenantID = tenantID
	m.connectorID = connectorID
	m.state = StateSelectingRemoteApp
	return nil
}

func (m *Machine) ListRemoteApps(ctx context.Context) ([]RemoteApp, error) {
	if m == nil {
		return nil, fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	connectorID := m.connectorID
	state := m.state
	m.mu.Unlock()
	if state == StateIdle {
		return nil, fmt.Errorf("%w: list remote apps from %s", ErrInvalidTransition, state)
	}
	return m.catalog.ListApps(ctx, connectorID)
}

func (m *Machine) ListDestinations(ctx context.Context) ([]Destination, error) {
	if m == nil {
		return nil, fmt.Errorf("wizard: machine is nil")
	}
	if m.State() == StateIdle {
		return nil, fmt.Errorf("%w: list destinations from %s", ErrInvalidTransition, m.State())
	}
	return m.schema.ListDestinations(ctx)
}

func (m *Machine) ChooseRemoteApp(_ context.Context, app RemoteApp) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	if strings.TrimSpace(app.ID) == "" {
		return fmt.Errorf("wizard: remote app id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSelectingRemoteApp {
		return fmt.Errorf("%w: choose remote app from %s", ErrInvalidTransition, m.state)
	}
	chosen := app
	m.selectedRemoteApp = &chosen
	m.state = StateSelectingDestination
	return nil
}

func (m *Machine) ChooseDestination(ctx context.Context, dest Destination) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	if strings.TrimSpace(dest.Key) == "" {
		return fmt.Errorf("wizard: destination key is required")
	}

	m.mu.Lock()
	if m.state != StateSelectingDestination {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: choose destination from %s", ErrInvalidTransition, state)
	}
	chosen := dest
	m.selectedDestination = &chosen
	m.state = StateMappingFields
	m.mu.Unlock()

	return m.warmMetadata(ctx)
}

// RemoteAppFields returns the selected app's field list, serving from
// the TTL cache when fresh and refetching when the entry has expired.
func (m *Machine) RemoteAppFields(ctx context.Context) ([]RemoteAppField, error) {
	if m == nil {
		return nil, fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	state := m.state
	connectorID := m.connectorID
	app := m.selectedRemoteApp
	m.mu.Unlock()

	if state != StateMappingFields && state != StateReviewAndSave {
		return nil, fmt.Errorf("%w: remote app fields from %s", ErrInvalidTransition, state)
	}
	if app == nil {
		return nil, fmt.Errorf("wizard: no remote app selected")
	}
	if cached, ok := m.fieldCache.Get(app.ID); ok {
		return cached, nil
	}
	fields, err := m.catalog.ListAppFields(ctx, connectorID, app.ID)
	if err != nil {
		return nil, fmt.Errorf("wizard: list remote app fields: %w", err)
	}
	m.fieldCache.Put(app.ID, fields)
	return fields, nil
}

func (m *Machine) DestinationColumns(ctx context.Context) ([]DestinationColumn, error) {
	if m == nil {
		return nil, fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	state := m.state
	dest := m.selectedDestination
	m.mu.Unlock()

	if state != StateMappingFields && state != StateReviewAndSave {
		return nil, fmt.Errorf("%w: destination columns from %s", ErrInvalidTransition, state)
	}
	if dest == nil {
		return nil, fmt.Errorf("wizard: no destination selected")
	}
	if cached, ok := m.columnCache.Get(dest.Key); ok {
		return cached, nil
	}
	columns, err := m.schema.ListColumns(ctx, dest.Key)
	if err != nil {
		return nil, fmt.Errorf("wizard: list destination columns: %w", err)
	}
	m.columnCache.Put(dest.Key, columns)
	return columns, nil
}

func (m *Machine) SetFieldMappings(mappings []FieldMapping) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateMappingFields {
		return fmt.Errorf("%w: edit field mappings from %s", ErrInvalidTransition, m.state)
	}
	m.draftFieldMappings = append([]FieldMapping(nil), mappings...)
	return nil
}

func (m *Machine) AddFieldMapping(mapping FieldMapping) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateMappingFields {
		return fmt.Errorf("%w: edit field mappings from %s", ErrInvalidTransition, m.state)
	}
	m.draftFieldMappings = append(m.draftFieldMappings, mapping)
	return nil
}

// SaveDraft persists the draft and advances to review. Incomplete rows
// block the save outright; they are never silently dropped.
func (m *Machine) SaveDraft(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	if m.state != StateMappingFields {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: save draft from %s", ErrInvalidTransition, state)
	}
	if len(m.draftFieldMappings) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: at least one pair is required", ErrIncompleteMapping)
	}
	for index, mapping := range m.draftFieldMappings {
		if !mapping.Complete() {
			m.mu.Unlock()
			return fmt.Errorf("%w: row %d", ErrIncompleteMapping, index)
		}
	}
	draft := MappingDraft{
		ID:             m.draftMappingID,
		TenantID:       m.tenantID,
		ConnectorID:    m.connectorID,
		RemoteAppID:    m.selectedRemoteApp.ID,
		DestinationKey: m.selectedDestination.Key,
		Mappings:       append([]FieldMapping(nil), m.draftFieldMappings...),
		Status:         MappingStatusDraft,
	}
	m.mu.Unlock()

	saved, err := m.store.SaveDraft(ctx, draft)
	if err != nil {
		return fmt.Errorf("wizard: save draft: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftMappingID = saved.ID
	m.state = StateReviewAndSave
	m.logger.Info("wizard draft saved", "mapping_id", saved.ID, "connector_id", m.connectorID)
	return nil
}

func (m *Machine) Activate(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	m.mu.Lock()
	if m.state != StateReviewAndSave {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, state)
	}
	draftID := m.draftMappingID
	m.mu.Unlock()

	if strings.TrimSpace(draftID) == "" {
		return ErrNoDraftMapping
	}
	if err := m.store.Activate(ctx, draftID); err != nil {
		return fmt.Errorf("wizard: activate mapping: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDone
	m.logger.Info("wizard mapping activated", "mapping_id", draftID, "connector_id", m.connectorID)
	return nil
}

// Back steps to the previous state. At the first state it is a no-op.
func (m *Machine) Back() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateSelectingDestination:
		m.state = StateSelectingRemoteApp
	case StateMappingFields:
		m.state = StateSelectingDestination
	case StateReviewAndSave:
		m.state = StateMappingFields
	case StateDone:
		m.state = StateReviewAndSave
	}
}

// Close resets the session completely, caches included.
func (m *Machine) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.tenantID = ""
	m.connectorID = ""
	m.selectedRemoteApp = nil
	m.selectedDestination = nil
	m.draftFieldMappings = nil
	m.draftMappingID = ""
	m.fieldCache.Reset()
	m.columnCache.Reset()
}

// OpenForEdit seeds an edit-mode session from a persisted mapping and
// jumps straight to mapping_fields. The completeness invariant on save
// still applies.
func (m *Machine) OpenForEdit(ctx context.Context, tenantID, connectorID string, existing ExistingMapping) error {
	if m == nil {
		return fmt.Errorf("wizard: machine is nil")
	}
	tenantID = strings.TrimSpace(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if tenantID == "" || connectorID == "" {
		return fmt.Errorf("wizard: tenant id and connector id are required")
	}
	if strings.TrimSpace(existing.ID) == "" {
		return fmt.Errorf("wizard: existing mapping id is required")
	}
	if strings.TrimSpace(existing.RemoteAppID) == "" || strings.TrimSpace(existing.DestinationKey) == "" {
		return fmt.Errorf("wizard: existing mapping selections are required")
	}

	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: open for edit from %s", ErrInvalidTransition, state)
	}
	m.mu.Unlock()

	var mappings []FieldMapping
	if persisted, err := m.store.Get(ctx, existing.ID); err == nil {
		mappings = append([]FieldMapping(nil), persisted.Mappings...)
	}

	m.mu.Lock()
	m.tenantID = tenantID
	m.connectorID = connectorID
	m.selectedRemoteApp = &RemoteApp{ID: existing.RemoteAppID}
	m.selectedDestination = &Destination{Key: existing.DestinationKey}
	m.draftMappingID = existing.ID
	m.draftFieldMappings = mappings
	m.state = StateMappingFields
	m.mu.Unlock()

	return m.warmMetadata(ctx)
}

// warmMetadata performs the two independent fetches entry into
// mapping_fields requires. Failures leave the session in place; the
// accessor methods refetch on the next call.
func (m *Machine) warmMetadata(ctx context.Context) error {
	if _, err := m.RemoteAppFields(ctx); err != nil {
		return err
	}
	if _, err := m.DestinationColumns(ctx); err != nil {
		return err
	}
	return nil
}
