package insights

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorTypeUnknown        ErrorType = "unknown"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypePermission     ErrorType = "permission_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_exceeded"
	ErrorTypeQuota          ErrorType = "insufficient_quota"
	ErrorTypeContextLength  ErrorType = "context_length_exceeded"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeConnection     ErrorType = "connection_error"
)

// ProviderError is a classified failure from an insight provider.
type ProviderError struct {
	Type       ErrorType    `json:"type"`
	Message    string       `json:"message"`
	Provider   ProviderName `json:"provider"`
	Model      string       `json:"model,omitempty"`
	HTTPStatus int          `json:"http_status,omitempty"`
	Retryable  bool         `json:"retryable"`
	RetryAfter int          `json:"retry_after,omitempty"` // seconds
	Cause      error        `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether retrying might succeed.
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}

// NewProviderError creates a classified provider error. Retryability follows
// the error type.
func NewProviderError(provider ProviderName, errorType ErrorType, message string, cause error) *ProviderError {
	return &ProviderError{
		Type:      errorType,
		Message:   message,
		Provider:  provider,
		Retryable: isRetryableType(errorType),
		Cause:     cause,
	}
}

func isRetryableType(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// ParseHTTPError maps an HTTP status and body to a provider error.
func ParseHTTPError(provider ProviderName, statusCode int, body string) *ProviderError {
	var errorType ErrorType
	var message string

	switch statusCode {
	case http.StatusBadRequest:
		errorType = ErrorTypeInvalidRequest
		message = "invalid request parameters"
	case http.StatusUnauthorized:
		errorType = ErrorTypeAuthentication
		message = "invalid API key or authentication failed"
	case http.StatusForbidden:
		errorType = ErrorTypePermission
		message = "permission denied"
	case http.StatusTooManyRequests:
		errorType = ErrorTypeRateLimit
		message = "rate limit exceeded"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		errorType = ErrorTypeServerError
		message = "server error"
	default:
		errorType = ErrorTypeUnknown
		message = fmt.Sprintf("HTTP %d error", statusCode)
	}

	if body != "" {
		lower := strings.ToLower(body)
		switch {
		case strings.Contains(lower, "insufficient quota") || strings.Contains(lower, "quota exceeded"):
			errorType = ErrorTypeQuota
			message = "insufficient quota or credits"
		case strings.Contains(lower, "context length") || strings.Contains(lower, "token limit"):
			errorType = ErrorTypeContextLength
			message = "context length exceeded"
		}
	}

	err := NewProviderError(provider, errorType, message, nil)
	err.HTTPStatus = statusCode
	return err
}

// AsProviderError extracts a ProviderError from err.
func AsProviderError(err error) (*ProviderError, bool) {
	pe, ok := err.(*ProviderError)
	return pe, ok
}

// IsRetryableError reports whether err is a retryable provider error.
func IsRetryableError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return isRetryableType(pe.Type)
	}
	return false
}

// IsRateLimitError reports whether err is a rate-limit error.
func IsRateLimitError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Type == ErrorTypeRateLimit
	}
	return false
}

// IsAuthenticationError reports whether err is an authentication error.
func IsAuthenticationError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Type == ErrorTypeAuthentication
	}
	return false
}
