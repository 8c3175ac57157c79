package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/funtoco/go-connectors/core"
)

// UnsupportedAdapter answers every call with a configuration error. It
// holds a registry slot for a protocol that has no wired implementation.
type UnsupportedAdapter struct {
	kind   string
	reason string
}

func NewUnsupportedAdapter(kind string, reason string) *UnsupportedAdapter {
	return &UnsupportedAdapter{
		kind:   strings.TrimSpace(strings.ToLower(kind)),
		reason: strings.TrimSpace(reason),
	}
}

func (a *UnsupportedAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *UnsupportedAdapter) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, transportError(
			"transport: adapter is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}

	message := fmt.Sprintf("transport: %s adapter is not configured", a.kind)
	metadata := map[string]any{"adapter": a.kind}
	if a.reason != "" {
		message = fmt.Sprintf("%s: %s", message, a.reason)
		metadata["reason"] = a.reason
	}
	return core.TransportResponse{}, transportError(
		message,
		goerrors.CategoryOperation,
		http.StatusNotImplemented,
		metadata,
	)
}

var _ core.TransportAdapter = (*UnsupportedAdapter)(nil)
