package unifiedllm

import (
	"errors"
	"fmt"
)

// SDKError is the base error type for all gateway errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents a non-2xx reply or an unusable body from a model
// endpoint.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Transient  bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type NetworkError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Transient = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Transient = true
		return &ServerError{ProviderError: pe}
	default:
		pe.Transient = statusCode >= 500
		return &pe
	}
}

// IsTransient reports whether err is the kind of failure that may succeed if
// the user simply asks again later. The gateway itself never retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var (
		rl  *RateLimitError
		se  *ServerError
		ne  *NetworkError
		te  *RequestTimeoutError
		pe  *ProviderError
		ce  *ConfigurationError
		ae  *AuthenticationError
		ade *AccessDeniedError
	)
	switch {
	case errors.As(err, &ae), errors.As(err, &ade), errors.As(err, &ce):
		return false
	case errors.As(err, &rl), errors.As(err, &se), errors.As(err, &ne), errors.As(err, &te):
		return true
	case errors.As(err, &pe):
		return pe.Transient
	default:
		return false
	}
}

// ErrorKind returns a low-cardinality label describing err, for metrics and
// log attributes. It returns "" for a nil error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		ae  *AuthenticationError
		ade *AccessDeniedError
		nf  *NotFoundError
		ir  *InvalidRequestError
		rl  *RateLimitError
		se  *ServerError
		cf  *ContentFilterError
		cl  *ContextLengthError
		te  *RequestTimeoutError
		ab  *AbortError
		ne  *NetworkError
		ce  *ConfigurationError
		pe  *ProviderError
	)
	switch {
	case errors.As(err, &ae), errors.As(err, &ade):
		return "auth"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ir), errors.As(err, &cl):
		return "invalid_request"
	case errors.As(err, &rl):
		return "rate_limit"
	case errors.As(err, &se):
		return "server"
	case errors.As(err, &cf):
		return "content_filter"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ab):
		return "aborted"
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &ce):
		return "config"
	case errors.As(err, &pe):
		return "provider"
	default:
		return "unknown"
	}
}
