package unifiedllm

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "mcpagent/unifiedllm"

// TracingMiddleware wraps each completion in an OpenTelemetry span. It uses
// the global tracer provider, which is a no-op unless the host installs one.
func TracingMiddleware() Middleware {
	tracer := otel.Tracer(tracerName)
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		attrs := []attribute.KeyValue{
			attribute.String("llm.provider", req.Provider),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		}
		for k, v := range req.Metadata {
			attrs = append(attrs, attribute.String("mcpagent."+k, v))
		}
		ctx, span := tracer.Start(ctx, "llm.complete", trace.WithAttributes(attrs...))
		defer span.End()

		resp, err := next(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorKind(err))
			span.SetAttributes(attribute.Bool("llm.error_transient", IsTransient(err)))
			return resp, err
		}
		span.SetAttributes(
			attribute.String("llm.response_id", resp.ID),
			attribute.String("llm.finish_reason", resp.FinishReason.Reason),
			attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
		)
		return resp, nil
	}
}

// RateLimitMiddleware blocks until limiter admits the call or ctx ends.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &AbortError{SDKError: SDKError{Message: "waiting for completion rate limit", Cause: err}}
		}
		return next(ctx, req)
	}
}

// NewPerMinuteLimiter returns a limiter admitting n calls per minute with a
// burst of one. n <= 0 means unlimited.
func NewPerMinuteLimiter(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// LoggingMiddleware logs each completion at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		start := time.Now()
		logger.DebugContext(ctx, "completion request",
			slog.String("provider", req.Provider),
			slog.String("model", req.Model),
			slog.Int("messages", len(req.Messages)),
		)
		resp, err := next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			logger.WarnContext(ctx, "completion failed",
				slog.String("provider", req.Provider),
				slog.String("error_kind", ErrorKind(err)),
				slog.Bool("transient", IsTransient(err)),
				slog.Duration("elapsed", elapsed),
				slog.Any("error", err),
			)
			return resp, err
		}
		logger.DebugContext(ctx, "completion reply",
			slog.String("provider", req.Provider),
			slog.String("response_id", resp.ID),
			slog.Int("reply_len", len(resp.Text())),
			slog.Duration("elapsed", elapsed),
		)
		return resp, nil
	}
}
