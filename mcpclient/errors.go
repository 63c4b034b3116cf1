package mcpclient

import (
	"errors"
	"fmt"
)

// Stage identifies which step of an invocation produced an error.
type Stage string

const (
	StageNegotiate Stage = "negotiate"
	StageNotify    Stage = "notify"
	StageCall      Stage = "call"
	StageTerminate Stage = "terminate"
)

// Kind classifies client errors for retry and reporting decisions.
type Kind string

const (
	// KindTransport covers connection failures and non-2xx HTTP statuses.
	// Transport errors are the only retryable kind.
	KindTransport Kind = "transport"
	// KindTimeout means a per-attempt deadline was exceeded. Never retried:
	// retrying would silently extend the caller's effective timeout.
	KindTimeout Kind = "timeout"
	// KindProtocol covers undecodable bodies and JSON-RPC error responses.
	KindProtocol Kind = "protocol"
	// KindTermination covers best-effort teardown failures. These are
	// swallowed by the orchestrator and never reach callers.
	KindTermination Kind = "termination"
)

// ClientError is the error type surfaced by the tool-invocation client. It
// identifies the failing stage and the underlying cause category.
type ClientError struct {
	Stage      Stage  `json:"stage"`
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
	RPCCode    int    `json:"rpc_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %s", e.Stage, e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Stage, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the transport layer may retry after this error.
func (e *ClientError) Retryable() bool {
	return e.Kind == KindTransport
}

func newError(stage Stage, kind Kind, message string, cause error) *ClientError {
	return &ClientError{Stage: stage, Kind: kind, Message: message, Cause: cause}
}

// AsClientError extracts a *ClientError from an error chain.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsTimeout reports whether err is a per-attempt deadline failure.
func IsTimeout(err error) bool {
	ce, ok := AsClientError(err)
	return ok && ce.Kind == KindTimeout
}

// IsTransport reports whether err is a connection or HTTP-status failure.
func IsTransport(err error) bool {
	ce, ok := AsClientError(err)
	return ok && ce.Kind == KindTransport
}

// IsProtocol reports whether err is a decoding or JSON-RPC level failure.
func IsProtocol(err error) bool {
	ce, ok := AsClientError(err)
	return ok && ce.Kind == KindProtocol
}
