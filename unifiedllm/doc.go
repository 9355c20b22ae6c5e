// Package unifiedllm is the completion gateway: it sends an ordered
// conversation of role-tagged text messages to a chat-completion endpoint
// and returns the assistant's reply text.
//
// # Architecture
//
//   - ProviderAdapter: one implementation per backend. OpenAIAdapter speaks
//     the OpenAI-compatible /chat/completions wire format over HTTP and is
//     the default (local Ollama at http://localhost:11434/v1). GollmAdapter
//     wraps github.com/teilomillet/gollm for providers gollm supports.
//   - Client: routes a Request to an adapter and applies Middleware
//     (logging, metrics, tracing, rate limiting).
//   - Generate: single-shot helper over any Completer.
//
// Calls are never retried. A failed completion surfaces as one of the
// typed errors in errors.go. ErrorKind gives a stable label for logs and
// metrics. IsTransient marks failures where asking again later may work;
// LoggingMiddleware and TracingMiddleware record it.
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter("http://localhost:11434/v1", "ollama", "gpt-oss:20b")
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider(adapter.Name(), adapter),
//	    unifiedllm.WithMiddleware(unifiedllm.MetricsMiddleware()),
//	)
//
//	resp, err := client.Complete(ctx, unifiedllm.Request{
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//
// # Model Catalog
//
// A small catalog of known models supplies context window sizes and the
// gollm adapter's default model:
//
//	info := unifiedllm.GetModelInfo("gpt-oss:20b")
//	window := unifiedllm.ContextWindow("gpt-oss:20b")
package unifiedllm
