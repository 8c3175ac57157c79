package hubspot

import (
	"context"
	"net/url"
	"testing"

	"github.com/funtoco/go-connectors/core"
)

func TestNewBuildsAuthorizeURL(t *testing.T) {
	provider, err := New(Config{ClientID: "client-1", ClientSecret: "secret-1"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider.ID() != core.ProviderHubSpot {
		t.Fatalf("unexpected provider id %q", provider.ID())
	}

	begin, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		RedirectURI:   "https://app.example/callback",
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
	if parsed.Host != "app.hubspot.com" {
		t.Fatalf("unexpected host %q", parsed.Host)
	}
	if parsed.Query().Get("code_challenge_method") != core.PKCEMethodS256 {
		t.Fatalf("expected S256 challenge method")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected validation error for missing client id")
	}
	if _, err := New(Config{ClientID: "client-1"}); err == nil {
		t.Fatal("expected validation error for missing client secret")
	}
}
