package connectors_test

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	connectors "github.com/funtoco/go-connectors"
	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers/kintone"
	"github.com/funtoco/go-connectors/security"
)

// countingDoer records token-endpoint traffic so a test can prove no
// request ever left the process.
type countingDoer struct {
	calls atomic.Int64
}

func (d *countingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return nil, http.ErrHandlerTimeout
}

func TestSandboxModeWrapsRegisteredProviders(t *testing.T) {
	ctx := context.Background()

	doer := &countingDoer{}
	provider, err := kintone.New(kintone.Config{
		Subdomain:  "acme",
		ClientID:   "client-1",
		HTTPClient: doer,
	})
	if err != nil {
		t.Fatalf("new kintone provider: %v", err)
	}

	registry := core.NewProviderRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	signer, err := core.NewStateSigner([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new state signer: %v", err)
	}
	cipher, err := security.NewCredentialCipher([]byte("fedcba98765432100123456789abcdef"))
	if err != nil {
		t.Fatalf("new credential cipher: %v", err)
	}

	svc, err := connectors.NewService(connectors.Config{SandboxMode: true},
		connectors.WithRegistry(registry),
		connectors.WithStateSigner(signer),
		connectors.WithSecretCipher(cipher),
		connectors.WithConnectorStore(newCompositionConnectorStore()),
		connectors.WithCredentialStore(newCompositionCredentialStore()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	started, err := svc.StartAuth(ctx, core.StartAuthRequest{
		TenantID:    "tenant-1",
		ProviderID:  core.ProviderKintone,
		RedirectURI: "https://app.example.test/callback",
		Scopes:      []string{"k:app_record:read"},
	})
	if err != nil {
		t.Fatalf("start auth: %v", err)
	}
	if !strings.Contains(started.RedirectURL, "acme.cybozu.com") {
		t.Fatalf("expected the kintone authorize URL to survive wrapping, got %q", started.RedirectURL)
	}

	result, err := svc.HandleCallback(ctx, core.CallbackRequest{
		Code:        "auth-code",
		State:       started.State,
		RedirectURI: "https://app.example.test/callback",
	})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	if got := doer.calls.Load(); got != 0 {
		t.Fatalf("expected no token-endpoint traffic in sandbox mode, got %d requests", got)
	}
	if !result.Credential.Refreshable {
		t.Fatal("expected a refreshable sandbox credential")
	}

	plaintext, err := cipher.Decrypt(ctx, result.Credential.EncryptedPayload)
	if err != nil {
		t.Fatalf("decrypt credential payload: %v", err)
	}
	if !strings.Contains(string(plaintext), "sandbox-access-") {
		t.Fatalf("expected a synthetic access token in the credential payload, got %s", plaintext)
	}
}
