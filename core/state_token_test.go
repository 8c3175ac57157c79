package core

import (
	"errors"
	"testing"
	"time"
)

func newTestStateSigner(t *testing.T, options ...StateSignerOption) *StateSigner {
	t.Helper()
	signer, err := NewStateSigner([]byte("0123456789abcdef0123456789abcdef"), options...)
	if err != nil {
		t.Fatalf("new state signer: %v", err)
	}
	return signer
}

func TestStateSignerRequiresStrongSecret(t *testing.T) {
	if _, err := NewStateSigner([]byte("short")); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestStateSignerRoundTrip(t *testing.T) {
	signer := newTestStateSigner(t)

	token, err := signer.Sign(StatePayload{
		TenantID:    "tenant-1",
		ProviderID:  "kintone",
		ConnectorID: "conn-1",
		ReturnTo:    "/settings/connectors",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	payload, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payload.TenantID != "tenant-1" || payload.ProviderID != "kintone" {
		t.Fatalf("unexpected payload identity: %+v", payload)
	}
	if payload.ConnectorID != "conn-1" || payload.ReturnTo != "/settings/connectors" {
		t.Fatalf("unexpected payload context: %+v", payload)
	}
	if payload.ExpiresAt-payload.IssuedAt != int64(StateTokenTTL/time.Second) {
		t.Fatalf("unexpected token lifetime: %d", payload.ExpiresAt-payload.IssuedAt)
	}
}

func TestStateSignerRejectsTamperedToken(t *testing.T) {
	signer := newTestStateSigner(t)

	token, err := signer.Sign(StatePayload{TenantID: "tenant-1", ProviderID: "hubspot"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		flipped := []byte(token)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		if _, err := signer.Verify(string(flipped)); err == nil {
			t.Fatalf("expected verification failure with byte %d flipped", i)
		}
	}
}

func TestStateSignerRejectsForeignSignature(t *testing.T) {
	signer := newTestStateSigner(t)
	other, err := NewStateSigner([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("new state signer: %v", err)
	}

	token, err := other.Sign(StatePayload{TenantID: "tenant-1", ProviderID: "kintone"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := signer.Verify(token); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStateSignerRejectsMalformedToken(t *testing.T) {
	signer := newTestStateSigner(t)

	for _, token := range []string{"", "nodot", ".", "a.", ".b", "not-base64!.not-base64!"} {
		if _, err := signer.Verify(token); !errors.Is(err, ErrMalformedState) {
			t.Fatalf("expected ErrMalformedState for %q, got %v", token, err)
		}
	}
}

func TestStateSignerExpiryWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := issued
	signer := newTestStateSigner(t, WithStateClock(func() time.Time { return current }))

	token, err := signer.Sign(StatePayload{TenantID: "tenant-1", ProviderID: "kintone"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		offset  time.Duration
		expired bool
	}{
		{500 * time.Second, false},
		{580 * time.Second, true},
		{601 * time.Second, true},
	}
	for _, tc := range cases {
		current = issued.Add(tc.offset)
		_, err := signer.Verify(token)
		if tc.expired && !errors.Is(err, ErrExpiredState) {
			t.Fatalf("at +%s expected ErrExpiredState, got %v", tc.offset, err)
		}
		if !tc.expired && err != nil {
			t.Fatalf("at +%s expected success, got %v", tc.offset, err)
		}
	}
}

func TestStateSignerRequiresIdentityFields(t *testing.T) {
	signer := newTestStateSigner(t)

	if _, err := signer.Sign(StatePayload{ProviderID: "kintone"}); err == nil {
		t.Fatal("expected missing tenant id to be rejected")
	}
	if _, err := signer.Sign(StatePayload{TenantID: "tenant-1"}); err == nil {
		t.Fatal("expected missing provider id to be rejected")
	}
	if _, err := signer.Sign(StatePayload{TenantID: "   ", ProviderID: "kintone"}); err == nil {
		t.Fatal("expected blank tenant id to be rejected")
	}
}
