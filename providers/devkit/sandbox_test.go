package devkit

import (
	"context"
	"net/url"
	"testing"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers/kintone"
)

func TestStandaloneSandboxTokens(t *testing.T) {
	provider := New()
	if provider.ID() != core.ProviderSandbox {
		t.Fatalf("unexpected provider id %q", provider.ID())
	}

	begin, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		State:         "state-1",
		CodeChallenge: "challenge-1",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}
	parsed, err := url.Parse(begin.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if parsed.Query().Get("code_challenge") != "challenge-1" {
		t.Fatalf("expected code challenge in authorize url")
	}

	first, err := provider.ExchangeCode(context.Background(), core.ExchangeCodeRequest{Code: "code-1", CodeVerifier: "v"})
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if first.AccessToken == "" || first.RefreshToken == "" || first.TokenType != "bearer" {
		t.Fatalf("synthetic token missing fields: %+v", first)
	}
	if first.ExpiresIn != 3600 {
		t.Fatalf("expected one hour lifetime, got %d", first.ExpiresIn)
	}

	refreshed, err := provider.RefreshToken(context.Background(), core.RefreshTokenRequest{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("refresh token: %v", err)
	}
	if refreshed.AccessToken == first.AccessToken {
		t.Fatalf("expected rotated access token")
	}

	if _, err := provider.RefreshToken(context.Background(), core.RefreshTokenRequest{RefreshToken: "some-foreign-token"}); err == nil {
		t.Fatal("expected error for unknown refresh token")
	}
}

func TestWrapKeepsInnerIdentityAndAuthorizeURL(t *testing.T) {
	inner, err := kintone.New(kintone.Config{Subdomain: "acme", ClientID: "client-1"})
	if err != nil {
		t.Fatalf("new inner provider: %v", err)
	}
	provider := Wrap(inner)
	if provider.ID() != core.ProviderKintone {
		t.Fatalf("expected inner provider id, got %q", provider.ID())
	}

	begin, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		State:         "state-1",
		CodeChallenge: "challenge-1",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}
	parsed, err := url.Parse(begin.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if parsed.Host != "acme.cybozu.com" {
		t.Fatalf("expected inner authorize host, got %q", parsed.Host)
	}

	// Token calls never reach the network even with a real inner adapter.
	token, err := provider.ExchangeCode(context.Background(), core.ExchangeCodeRequest{Code: "code-1", CodeVerifier: "v"})
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if token.Raw["sandbox"] != true {
		t.Fatalf("expected sandbox marker in raw payload")
	}
}
