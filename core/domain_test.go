package core

import (
	"errors"
	"testing"
	"time"
)

func TestConnectorTransitionTo_ValidAndInvalid(t *testing.T) {
	now := time.Now().UTC()
	connector := Connector{Status: ConnectorStatusActive}

	if err := connector.TransitionTo(ConnectorStatusPendingReauth, "token expired", now); err != nil {
		t.Fatalf("expected valid transition, got error: %v", err)
	}
	if connector.Status != ConnectorStatusPendingReauth {
		t.Fatalf("expected pending_reauth, got %q", connector.Status)
	}
	if connector.LastError == "" {
		t.Fatal("expected last_error to be set")
	}

	if err := connector.TransitionTo(ConnectorStatusActive, "", now); err != nil {
		t.Fatalf("expected pending_reauth->active to work: %v", err)
	}
	if connector.LastError != "" {
		t.Fatal("expected last_error cleared on activation")
	}

	err := connector.TransitionTo(ConnectorStatusPending, "", now)
	if !errors.Is(err, ErrInvalidConnectorStatusTransition) {
		t.Fatalf("expected invalid transition error, got: %v", err)
	}
}

func TestParseProviderID(t *testing.T) {
	for _, id := range KnownProviderIDs() {
		parsed, err := ParseProviderID(string(id))
		if err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
		if parsed != id {
			t.Fatalf("expected %s, got %s", id, parsed)
		}
	}

	if _, err := ParseProviderID("salesforce"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := ParseProviderID("  kintone  "); err != nil {
		t.Fatalf("expected trimmed identifier to parse: %v", err)
	}
}

func TestTenantRefValidate(t *testing.T) {
	if err := (TenantRef{ID: "tenant-1"}).Validate(); err != nil {
		t.Fatalf("expected valid tenant ref: %v", err)
	}
	if err := (TenantRef{}).Validate(); !errors.Is(err, ErrInvalidTenantRef) {
		t.Fatalf("expected ErrInvalidTenantRef, got %v", err)
	}
	if err := (TenantRef{ID: "   "}).Validate(); !errors.Is(err, ErrInvalidTenantRef) {
		t.Fatalf("expected ErrInvalidTenantRef for blank id, got %v", err)
	}
}
