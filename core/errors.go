package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Failure taxonomy for the auth core. Cryptographic and state failures are
// terminal for the flow that produced them: callers restart from StartAuth
// instead of retrying.
var (
	ErrInvalidState       = errors.New("core: state token signature mismatch")
	ErrExpiredState       = errors.New("core: state token expired")
	ErrMalformedState     = errors.New("core: state token malformed")
	ErrPKCESessionLost    = errors.New("core: pkce session missing or expired")
	ErrProviderDeniedAuth = errors.New("core: provider denied authorization")
	ErrDecryptionFailed   = errors.New("core: credential decryption failed")
	ErrRefreshFailed      = errors.New("core: credential refresh failed")
)

// ProviderExchangeError surfaces a non-2xx token endpoint response with
// enough detail (status + body) for the caller to decide on retry.
type ProviderExchangeError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
}

func (e *ProviderExchangeError) Error() string {
	return fmt.Sprintf(
		"core: token exchange with %s failed (%d): %s",
		e.Provider,
		e.StatusCode,
		strings.TrimSpace(e.Body),
	)
}

const (
	ConnectorErrorBadInput         = "CONNECTOR_BAD_INPUT"
	ConnectorErrorProviderNotFound = "CONNECTOR_PROVIDER_NOT_FOUND"
	ConnectorErrorStateInvalid     = "CONNECTOR_STATE_INVALID"
	ConnectorErrorStateExpired     = "CONNECTOR_STATE_EXPIRED"
	ConnectorErrorStateMalformed   = "CONNECTOR_STATE_MALFORMED"
	ConnectorErrorPKCESessionLost  = "CONNECTOR_PKCE_SESSION_LOST"
	ConnectorErrorAuthDenied       = "CONNECTOR_AUTH_DENIED"
	ConnectorErrorExchangeFailed   = "CONNECTOR_EXCHANGE_FAILED"
	ConnectorErrorDecryptionFailed = "CONNECTOR_DECRYPTION_FAILED"
	ConnectorErrorRefreshFailed    = "CONNECTOR_REFRESH_FAILED"
	ConnectorErrorRefreshLocked    = "CONNECTOR_REFRESH_LOCKED"
	ConnectorErrorTransportFailed  = "CONNECTOR_TRANSPORT_FAILED"
	ConnectorErrorInternal         = "CONNECTOR_INTERNAL_ERROR"
)

func connectorErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureConnectorErrorEnvelope(richErr)
	}

	var exchangeErr *ProviderExchangeError
	switch {
	case errors.Is(err, ErrExpiredState):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorStateExpired)
	case errors.Is(err, ErrMalformedState):
		return newConnectorError(err.Error(), goerrors.CategoryBadInput, ConnectorErrorStateMalformed)
	case errors.Is(err, ErrInvalidState):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorStateInvalid)
	case errors.Is(err, ErrPKCESessionLost):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorPKCESessionLost)
	case errors.Is(err, ErrProviderDeniedAuth):
		return newConnectorError(err.Error(), goerrors.CategoryAuthz, ConnectorErrorAuthDenied)
	case errors.Is(err, ErrDecryptionFailed):
		return newConnectorError(err.Error(), goerrors.CategoryInternal, ConnectorErrorDecryptionFailed)
	case errors.Is(err, ErrRefreshFailed):
		return newConnectorError(err.Error(), goerrors.CategoryOperation, ConnectorErrorRefreshFailed)
	case errors.Is(err, ErrUnknownProvider):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorProviderNotFound)
	case errors.As(err, &exchangeErr):
		return newConnectorError(err.Error(), goerrors.CategoryExternal, ConnectorErrorExchangeFailed).
			WithMetadata(map[string]any{
				"provider":    string(exchangeErr.Provider),
				"status_code": exchangeErr.StatusCode,
			})
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not registered"), strings.Contains(msg, "unknown provider"):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorProviderNotFound)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newConnectorError(err.Error(), goerrors.CategoryConflict, ConnectorErrorRefreshLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newConnectorError(err.Error(), goerrors.CategoryBadInput, ConnectorErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureConnectorErrorEnvelope(mapped)
}

func newConnectorError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureConnectorErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureConnectorErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = connectorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultConnectorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultConnectorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ConnectorErrorBadInput
	case goerrors.CategoryNotFound:
		return ConnectorErrorProviderNotFound
	case goerrors.CategoryAuth:
		return ConnectorErrorStateInvalid
	case goerrors.CategoryAuthz:
		return ConnectorErrorAuthDenied
	case goerrors.CategoryConflict:
		return ConnectorErrorRefreshLocked
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ConnectorErrorExchangeFailed
	default:
		return ConnectorErrorInternal
	}
}

func connectorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
