package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeCatalog struct {
	mu          sync.Mutex
	apps        []RemoteApp
	fields      map[string][]RemoteAppField
	fieldCalls  int
	fieldErr    error
	listAppErrs error
}

func (c *fakeCatalog) ListApps(_ context.Context, _ string) ([]RemoteApp, error) {
	if c.listAppErrs != nil {
		return nil, c.listAppErrs
	}
	return append([]RemoteApp(nil), c.apps...), nil
}

func (c *fakeCatalog) ListAppFields(_ context.Context, _ string, appID string) ([]RemoteAppField, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldCalls++
	if c.fieldErr != nil {
		return nil, c.fieldErr
	}
	fields, ok := c.fields[appID]
	if !ok {
		return nil, fmt.Errorf("unknown app %q", appID)
	}
	return append([]RemoteAppField(nil), fields...), nil
}

type fakeSchema struct {
	mu          sync.Mutex
	columns     map[string][]DestinationColumn
	columnCalls int
}

func (s *fakeSchema) ListDestinations(_ context.Context) ([]Destination, error) {
	return []Destination{{Key: "people", Label: "People"}}, nil
}

func (s *fakeSchema) ListColumns(_ context.Context, destinationKey string) ([]DestinationColumn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columnCalls++
	columns, ok := s.columns[destinationKey]
	if !ok {
		return nil, fmt.Errorf("unknown destination %q", destinationKey)
	}
	return append([]DestinationColumn(nil), columns...), nil
}

type fakeMappingStore struct {
	mu        sync.Mutex
	seq       int
	drafts    map[string]MappingDraft
	activated []string
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{drafts: map[string]MappingDraft{}}
}

func (s *fakeMappingStore) SaveDraft(_ context.Context, draft MappingDraft) (MappingDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.ID == "" {
		s.seq++
		draft.ID = fmt.Sprintf("map-%d", s.seq)
	}
	s.drafts[draft.ID] = draft
	return draft, nil
}

func (s *fakeMappingStore) Activate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return fmt.Errorf("mapping %q not found", id)
	}
	draft.Status = MappingStatusActive
	s.drafts[id] = draft
	s.activated = append(s.activated, id)
	return nil
}

func (s *fakeMappingStore) Get(_ context.Context, id string) (MappingDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return MappingDraft{}, fmt.Errorf("mapping %q not found", id)
	}
	return draft, nil
}

type wizardTestHarness struct {
	machine *Machine
	catalog *fakeCatalog
	schema  *fakeSchema
	store   *fakeMappingStore
	current time.Time
	mu      sync.Mutex
}

func (h *wizardTestHarness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = h.current.Add(d)
}

func newWizardTestHarness(t *testing.T) *wizardTestHarness {
	t.Helper()
	harness := &wizardTestHarness{
		catalog: &fakeCatalog{
			apps: []RemoteApp{{ID: "12", Name: "Customers"}},
			fields: map[string][]RemoteAppField{
				"12": {{Code: "name", Label: "Name", Type: "SINGLE_LINE_TEXT"}},
			},
		},
		schema: &fakeSchema{
			columns: map[string][]DestinationColumn{
				"people": {{Name: "full_name", Type: "text"}},
			},
		},
		store:   newFakeMappingStore(),
		current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	machine, err := NewMachine(harness.catalog, harness.schema, harness.store, WithMachineClock(func() time.Time {
		harness.mu.Lock()
		defer harness.mu.Unlock()
		return harness.current
	}))
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	harness.machine = machine
	return harness
}

func TestWizardHappyPath(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()
	machine := h.machine

	if machine.State() != StateIdle {
		t.Fatalf("expected idle start, got %s", machine.State())
	}
	if err := machine.Start(ctx, "tenant-1", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if machine.State() != StateSelectingRemoteApp {
		t.Fatalf("expected selecting_remote_app, got %s", machine.State())
	}

	apps, err := machine.ListRemoteApps(ctx)
	if err != nil || len(apps) != 1 {
		t.Fatalf("list remote apps: %v (%d)", err, len(apps))
	}
	if err := machine.ChooseRemoteApp(ctx, RemoteApp{ID: "12", Name: "Customers"}); err != nil {
		t.Fatalf("choose remote app: %v", err)
	}
	if machine.State() != StateSelectingDestination {
		t.Fatalf("expected selecting_destination, got %s", machine.State())
	}

	if err := machine.ChooseDestination(ctx, Destination{Key: "people"}); err != nil {
		t.Fatalf("choose destination: %v", err)
	}
	if machine.State() != StateMappingFields {
		t.Fatalf("expected mapping_fields, got %s", machine.State())
	}

	if err := machine.SetFieldMappings([]FieldMapping{{Source: "name", Destination: ""}}); err != nil {
		t.Fatalf("set field mappings: %v", err)
	}
	if err := machine.SaveDraft(ctx); !errors.Is(err, ErrIncompleteMapping) {
		t.Fatalf("expected incomplete mapping rejection, got %v", err)
	}
	if machine.State() != StateMappingFields {
		t.Fatalf("rejected save must not advance, got %s", machine.State())
	}

	if err := machine.SetFieldMappings([]FieldMapping{
		{Source: "name", Destination: "full_name", Transform: "trim"},
	}); err != nil {
		t.Fatalf("set field mappings: %v", err)
	}
	if err := machine.SaveDraft(ctx); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if machine.State() != StateReviewAndSave {
		t.Fatalf("expected review_and_save, got %s", machine.State())
	}
	if machine.DraftMappingID() == "" {
		t.Fatal("expected a draft mapping id after save")
	}

	if err := machine.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if machine.State() != StateDone {
		t.Fatalf("expected done, got %s", machine.State())
	}
	saved, err := h.store.Get(ctx, machine.DraftMappingID())
	if err != nil {
		t.Fatalf("load saved mapping: %v", err)
	}
	if saved.Status != MappingStatusActive {
		t.Fatalf("expected active mapping, got %s", saved.Status)
	}
	if saved.RemoteAppID != "12" || saved.DestinationKey != "people" {
		t.Fatalf("unexpected saved selections: %+v", saved)
	}
	if len(saved.Mappings) != 1 || saved.Mappings[0].Transform != "trim" {
		t.Fatalf("expected transform to ride along with the saved pair: %+v", saved.Mappings)
	}
}

func TestWizardEditModeLandsInMappingFields(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()

	h.store.drafts["m1"] = MappingDraft{
		ID:             "m1",
		TenantID:       "tenant-1",
		ConnectorID:    "conn-1",
		RemoteAppID:    "12",
		DestinationKey: "people",
		Mappings:       []FieldMapping{{Source: "name", Destination: "full_name"}},
		Status:         MappingStatusDraft,
	}

	err := h.machine.OpenForEdit(ctx, "tenant-1", "conn-1", ExistingMapping{
		ID:             "m1",
		RemoteAppID:    "12",
		DestinationKey: "people",
	})
	if err != nil {
		t.Fatalf("open for edit: %v", err)
	}
	if h.machine.State() != StateMappingFields {
		t.Fatalf("expected mapping_fields, got %s", h.machine.State())
	}
	if h.machine.DraftMappingID() != "m1" {
		t.Fatalf("expected draft id m1, got %q", h.machine.DraftMappingID())
	}
	if app, ok := h.machine.SelectedRemoteApp(); !ok || app.ID != "12" {
		t.Fatalf("expected seeded remote app, got %+v (%v)", app, ok)
	}
	if dest, ok := h.machine.SelectedDestination(); !ok || dest.Key != "people" {
		t.Fatalf("expected seeded destination, got %+v (%v)", dest, ok)
	}

	// Completeness still applies in edit mode.
	if err := h.machine.SetFieldMappings([]FieldMapping{{Source: "name"}}); err != nil {
		t.Fatalf("set field mappings: %v", err)
	}
	if err := h.machine.SaveDraft(ctx); !errors.Is(err, ErrIncompleteMapping) {
		t.Fatalf("expected incomplete mapping rejection, got %v", err)
	}
}

func TestWizardMetadataCachedWithinTTL(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()

	if err := h.machine.Start(ctx, "tenant-1", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.machine.ChooseRemoteApp(ctx, RemoteApp{ID: "12"}); err != nil {
		t.Fatalf("choose remote app: %v", err)
	}
	if err := h.machine.ChooseDestination(ctx, Destination{Key: "people"}); err != nil {
		t.Fatalf("choose destination: %v", err)
	}
	if h.catalog.fieldCalls != 1 || h.schema.columnCalls != 1 {
		t.Fatalf("entry must fetch once each, got %d/%d", h.catalog.fieldCalls, h.schema.columnCalls)
	}

	if _, err := h.machine.RemoteAppFields(ctx); err != nil {
		t.Fatalf("remote app fields: %v", err)
	}
	if _, err := h.machine.DestinationColumns(ctx); err != nil {
		t.Fatalf("destination columns: %v", err)
	}
	if h.catalog.fieldCalls != 1 || h.schema.columnCalls != 1 {
		t.Fatalf("fresh cache must serve reads, got %d/%d fetches", h.catalog.fieldCalls, h.schema.columnCalls)
	}

	h.advance(11 * time.Minute)
	if _, err := h.machine.RemoteAppFields(ctx); err != nil {
		t.Fatalf("remote app fields after expiry: %v", err)
	}
	if _, err := h.machine.DestinationColumns(ctx); err != nil {
		t.Fatalf("destination columns after expiry: %v", err)
	}
	if h.catalog.fieldCalls != 2 || h.schema.columnCalls != 2 {
		t.Fatalf("expired cache must refetch, got %d/%d fetches", h.catalog.fieldCalls, h.schema.columnCalls)
	}
}

func TestWizardBackAndClose(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()

	if err := h.machine.Start(ctx, "tenant-1", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Back at the first state is a no-op.
	h.machine.Back()
	if h.machine.State() != StateSelectingRemoteApp {
		t.Fatalf("expected back no-op, got %s", h.machine.State())
	}

	if err := h.machine.ChooseRemoteApp(ctx, RemoteApp{ID: "12"}); err != nil {
		t.Fatalf("choose remote app: %v", err)
	}
	if err := h.machine.ChooseDestination(ctx, Destination{Key: "people"}); err != nil {
		t.Fatalf("choose destination: %v", err)
	}
	h.machine.Back()
	if h.machine.State() != StateSelectingDestination {
		t.Fatalf("expected selecting_destination after back, got %s", h.machine.State())
	}

	h.machine.Close()
	if h.machine.State() != StateIdle {
		t.Fatalf("expected idle after close, got %s", h.machine.State())
	}
	if _, ok := h.machine.SelectedRemoteApp(); ok {
		t.Fatal("close must clear selections")
	}
	if h.machine.DraftMappingID() != "" {
		t.Fatal("close must clear the draft id")
	}
}

func TestWizardRejectsOutOfOrderEvents(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()

	if err := h.machine.ChooseRemoteApp(ctx, RemoteApp{ID: "12"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before start, got %v", err)
	}
	if err := h.machine.Start(ctx, "tenant-1", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.machine.ChooseDestination(ctx, Destination{Key: "people"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before app selection, got %v", err)
	}
	if err := h.machine.SaveDraft(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before mapping_fields, got %v", err)
	}
	if err := h.machine.Activate(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before review, got %v", err)
	}
	if err := h.machine.Start(ctx, "tenant-1", "conn-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for double start, got %v", err)
	}
}

func TestWizardSaveRequiresAtLeastOnePair(t *testing.T) {
	h := newWizardTestHarness(t)
	ctx := context.Background()

	if err := h.machine.Start(ctx, "tenant-1", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.machine.ChooseRemoteApp(ctx, RemoteApp{ID: "12"}); err != nil {
		t.Fatalf("choose remote app: %v", err)
	}
	if err := h.machine.ChooseDestination(ctx, Destination{Key: "people"}); err != nil {
		t.Fatalf("choose destination: %v", err)
	}
	if err := h.machine.SaveDraft(ctx); !errors.Is(err, ErrIncompleteMapping) {
		t.Fatalf("expected rejection with no pairs, got %v", err)
	}
}

func TestNewMachineRequiresCollaborators(t *testing.T) {
	catalog := &fakeCatalog{}
	schema := &fakeSchema{}
	store := newFakeMappingStore()
	if _, err := NewMachine(nil, schema, store); err == nil {
		t.Fatal("expected error for missing catalog")
	}
	if _, err := NewMachine(catalog, nil, store); err == nil {
		t.Fatal("expected error for missing schema")
	}
	if _, err := NewMachine(catalog, schema, nil); err == nil {
		t.Fatal("expected error for missing store")
	}
}
