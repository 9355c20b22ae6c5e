package unifiedllm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single chat-completion round trip.
const DefaultTimeout = 120 * time.Second

// maxErrorBodyBytes caps how much of a failed response body is kept in the
// error message.
const maxErrorBodyBytes = 2048

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatError struct {
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
	Message string `json:"message"`
}

// OpenAIAdapter talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI, Ollama, vLLM, llama.cpp server, ...) over plain HTTP.
type OpenAIAdapter struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// OpenAIAdapterOption configures an OpenAIAdapter.
type OpenAIAdapterOption func(*OpenAIAdapter)

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) OpenAIAdapterOption {
	return func(a *OpenAIAdapter) {
		if d > 0 {
			a.httpClient.Timeout = d
		}
	}
}

// NewOpenAIAdapter creates an adapter posting to baseURL + "/chat/completions".
// An empty apiKey sends no Authorization header.
func NewOpenAIAdapter(baseURL, apiKey, model string, opts ...OpenAIAdapterOption) *OpenAIAdapter {
	a := &OpenAIAdapter{
		name:       "openai",
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Endpoint returns the full chat-completions URL.
func (a *OpenAIAdapter) Endpoint() string {
	return a.baseURL + "/chat/completions"
}

// Complete posts the conversation and returns the first choice.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "no model configured"}}
	}

	payload := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		role := m.Role
		if !role.Valid() {
			role = RoleUser
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: string(role), Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SDKError{Message: "marshaling chat request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "building chat request", Cause: err}}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, a.translateTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{SDKError: SDKError{Message: "reading chat response", Cause: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, code := errorDetail(raw)
		return nil, ErrorFromStatusCode(resp.StatusCode, msg, a.name, code)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{
			SDKError:   SDKError{Message: "decoding chat response", Cause: err},
			Provider:   a.name,
			StatusCode: resp.StatusCode,
		}
	}
	if parsed.Error != nil {
		return nil, &ProviderError{
			SDKError:   SDKError{Message: parsed.Error.Message},
			Provider:   a.name,
			StatusCode: resp.StatusCode,
			ErrorCode:  parsed.Error.Type,
		}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{
			SDKError:   SDKError{Message: "response has no choices"},
			Provider:   a.name,
			StatusCode: resp.StatusCode,
		}
	}

	choice := parsed.Choices[0]
	id := parsed.ID
	if id == "" {
		id = "resp_" + uuid.NewString()[:8]
	}
	if parsed.Model != "" {
		model = parsed.Model
	}
	out := &Response{
		ID:           id,
		Model:        model,
		Provider:     a.name,
		Message:      AssistantMessage(choice.Message.Content),
		FinishReason: normalizeFinishReason(choice.FinishReason),
	}
	if parsed.Usage != nil {
		out.Usage = Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (a *OpenAIAdapter) translateTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &AbortError{SDKError: SDKError{Message: "chat request cancelled", Cause: err}}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &RequestTimeoutError{SDKError: SDKError{
			Message: fmt.Sprintf("no reply from %s within %s", a.Endpoint(), a.httpClient.Timeout),
			Cause:   err,
		}}
	}
	return &NetworkError{SDKError: SDKError{Message: "posting to " + a.Endpoint(), Cause: err}}
}

// errorDetail pulls a readable message out of an error body, falling back to
// the truncated raw body.
func errorDetail(raw []byte) (message, code string) {
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message, parsed.Error.Type
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes] + "..."
	}
	if text == "" {
		text = "empty response body"
	}
	return text, ""
}
