package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/funtoco/go-connectors/core"
)

func TestStartAuthMessage_ValidateReturnsRichError(t *testing.T) {
	err := (StartAuthMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ConnectorErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ConnectorErrorBadInput, rich.TextCode)
	}
}

func TestStartAuthCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *StartAuthCommand
	err := cmd.Execute(context.Background(), StartAuthMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
