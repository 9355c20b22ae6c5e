package unifiedllm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		kind      string
		transient bool
	}{
		{400, "invalid_request", false},
		{401, "auth", false},
		{403, "auth", false},
		{404, "not_found", false},
		{408, "timeout", true},
		{413, "invalid_request", false},
		{422, "invalid_request", false},
		{429, "rate_limit", true},
		{500, "server", true},
		{502, "server", true},
		{503, "server", true},
		{504, "server", true},
		{418, "provider", false},
		{599, "provider", true},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "test error", "openai", "")
		if got := ErrorKind(err); got != tt.kind {
			t.Errorf("status %d: expected kind %q, got %q", tt.status, tt.kind, got)
		}
		if got := IsTransient(err); got != tt.transient {
			t.Errorf("status %d: expected transient=%v, got %v", tt.status, tt.transient, got)
		}
	}
}

func TestErrorKindThroughWrapping(t *testing.T) {
	inner := &NetworkError{SDKError: SDKError{Message: "dial tcp: refused"}}
	wrapped := fmt.Errorf("query q1: %w", inner)

	if got := ErrorKind(wrapped); got != "network" {
		t.Errorf("expected kind network, got %q", got)
	}
	if !IsTransient(wrapped) {
		t.Error("expected wrapped network error to be transient")
	}
	if ErrorKind(nil) != "" {
		t.Error("expected empty kind for nil error")
	}
	if ErrorKind(errors.New("mystery")) != "unknown" {
		t.Error("expected unknown kind for plain error")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"auth error", &AuthenticationError{}, false},
		{"access denied", &AccessDeniedError{}, false},
		{"config error", &ConfigurationError{}, false},
		{"rate limit", &RateLimitError{}, true},
		{"server error", &ServerError{}, true},
		{"network error", &NetworkError{}, true},
		{"timeout error", &RequestTimeoutError{}, true},
		{"plain provider", &ProviderError{}, false},
		{"unknown error", errors.New("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient(%T) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}

func TestSDKErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &SDKError{Message: "wrapper", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected SDKError to unwrap to its cause")
	}

	timeout := &RequestTimeoutError{SDKError: SDKError{Message: "slow", Cause: cause}}
	if !errors.Is(timeout, cause) {
		t.Error("expected RequestTimeoutError to unwrap to its cause")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		SDKError:   SDKError{Message: "rate limit exceeded"},
		Provider:   "openai",
		StatusCode: 429,
	}
	msg := err.Error()
	if !strings.Contains(msg, "openai") || !strings.Contains(msg, "rate limit") || !strings.Contains(msg, "429") {
		t.Errorf("error message missing expected content: %q", msg)
	}
}
