package unifiedllm

import (
	"context"
	"errors"
)

// Completer is anything that can complete a Request. *Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// GenerateOptions configures a single-shot Generate call.
type GenerateOptions struct {
	Model    string
	Prompt   string    // simple text prompt (mutually exclusive with Messages)
	Messages []Message // full conversation (mutually exclusive with Prompt)
	System   string
	Provider string
	Metadata map[string]string
}

// GenerateResult is returned by Generate.
type GenerateResult struct {
	Text     string
	Response *Response
}

// Generate sends one request built from opts and returns the reply text.
// There is no tool loop and no retry.
func Generate(ctx context.Context, c Completer, opts GenerateOptions) (*GenerateResult, error) {
	if c == nil {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "generate: nil completer"}}
	}
	if opts.Prompt != "" && len(opts.Messages) > 0 {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "cannot specify both prompt and messages",
		}}
	}

	messages := CloneMessages(opts.Messages)
	if opts.Prompt != "" {
		messages = []Message{UserMessage(opts.Prompt)}
	}
	if len(messages) == 0 {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "generate: empty conversation"}}
	}
	if opts.System != "" {
		messages = append([]Message{SystemMessage(opts.System)}, messages...)
	}

	resp, err := c.Complete(ctx, Request{
		Model:    opts.Model,
		Messages: messages,
		Provider: opts.Provider,
		Metadata: opts.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("generate: provider returned no response")
	}
	return &GenerateResult{Text: resp.Text(), Response: resp}, nil
}
