package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/mcpagent/toolhost"
	"github.com/martinemde/mcpagent/unifiedllm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mcpagent/agentloop"

// State is the lifecycle state of the session's current (or last) query.
type State string

const (
	StateIdle               State = "idle"
	StateInit               State = "init"
	StateAwaitingFirstReply State = "awaiting_first_reply"
	StateToolLoop           State = "tool_loop"
	StateFinishing          State = "finishing"
	StateDone               State = "done"
	StateFallback           State = "fallback"
	StateExhausted          State = "exhausted"
	StateFailed             State = "failed"
	StateClosed             State = "closed"
)

// AnswerPath says how a query's answer was produced.
type AnswerPath string

const (
	// PathSynthesis: the model finished a tool loop and the answer came
	// from the synthesis request.
	PathSynthesis AnswerPath = "synthesis"
	// PathFallback: the model did not (or stopped) asking for tools and
	// the answer came from re-asking the bare query.
	PathFallback AnswerPath = "fallback"
)

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`

	MaxToolRounds      int  `json:"max_tool_rounds"`
	LegacyFinishMarker bool `json:"legacy_finish_marker"`

	// ToolTimeout bounds one tool call; zero means no bound. Tool calls
	// are not interrupted when the query is canceled.
	ToolTimeout time.Duration    `json:"tool_timeout"`
	Truncation  TruncationLimits `json:"-"`

	EnableLoopDetection bool `json:"enable_loop_detection"`
	LoopDetectionWindow int  `json:"loop_detection_window"`

	EventBufferSize int `json:"event_buffer_size"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:               "gpt-oss:20b",
		MaxToolRounds:       10,
		LegacyFinishMarker:  true,
		EnableLoopDetection: true,
		LoopDetectionWindow: 4,
		EventBufferSize:     256,
	}
}

// Result is the outcome of one successful query.
type Result struct {
	QueryID string
	Query   string
	Answer  string
	Path    AnswerPath

	// FallbackReason is set on PathFallback: "plain answer" or the decode
	// error of a malformed tool call.
	FallbackReason string

	ToolRounds   int
	Observations []string // full tool results, in call order

	// Conversation is the tool-loop conversation, excluding the synthesis
	// turn. After N rounds it holds 2+3N messages.
	Conversation []unifiedllm.Message

	CompletionCalls int
	Usage           unifiedllm.Usage
	Duration        time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session runs queries against one model and one tool host. Queries are
// serialized; each owns its conversation exclusively.
type Session struct {
	id       string
	llm      unifiedllm.Completer
	tools    ToolCaller
	registry *ToolRegistry
	config   SessionConfig
	emitter  *EventEmitter
	logger   *slog.Logger
	tracer   trace.Tracer

	runMu        sync.Mutex // held for the duration of Start and Run
	systemPrompt string

	mu      sync.Mutex
	state   State
	started bool
	fatal   error
}

// NewSession creates a session. Call Start before Run.
func NewSession(llm unifiedllm.Completer, tools ToolCaller, config *SessionConfig, opts ...SessionOption) *Session {
	sessionID := uuid.New().String()

	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultSessionConfig().MaxToolRounds
	}

	s := &Session{
		id:       sessionID,
		llm:      llm,
		tools:    tools,
		registry: NewToolRegistry(),
		config:   cfg,
		emitter:  NewEventEmitter(sessionID, cfg.EventBufferSize),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session_id", sessionID))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the state of the current or most recent query.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// Tools returns the tools fetched at Start, in server order.
func (s *Session) Tools() []toolhost.ToolDescriptor {
	return s.registry.Definitions()
}

// Start fetches the tool list once and builds the system prompt. A tool
// host failure here is fatal to the session.
func (s *Session) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	tools, err := s.tools.ListTools(ctx)
	if err != nil {
		s.markFatal(err)
		return err
	}
	if err := s.registry.Load(tools); err != nil {
		return fmt.Errorf("loading tools: %w", err)
	}
	s.systemPrompt = BuildSystemPrompt(s.registry.Definitions())

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	names := s.registry.Names()
	s.emitter.Emit(EventSessionStart, "", map[string]any{
		"tools": names,
	})
	s.logger.Info("session started",
		slog.Int("tool_count", len(names)),
		slog.String("tools", strings.Join(names, ",")),
		slog.String("model", s.config.Model),
	)
	return nil
}

// Close ends the session. The tool host connection belongs to the caller.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.emitter.Emit(EventSessionEnd, "", map[string]any{
		"state": string(StateClosed),
	})
	s.emitter.Close()
}

func (s *Session) markFatal(err error) {
	var unavailable *toolhost.UnavailableError
	if !errors.As(err, &unavailable) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

func (s *Session) checkRunnable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateClosed:
		return fmt.Errorf("session is closed")
	case s.fatal != nil:
		return s.fatal
	case !s.started:
		return fmt.Errorf("session not started")
	}
	return nil
}

func (s *Session) setState(queryID string, next State) {
	s.mu.Lock()
	prev := s.state
	if prev == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.emitter.Emit(EventStateChange, queryID, map[string]any{
			"from": string(prev),
			"to":   string(next),
		})
	}
}

// Run answers one query. On success the Result says which path produced
// the answer. Errors:
//   - *ModelUnreachableError: a completion failed; the session survives.
//   - *LoopExhaustedError: the round limit was hit.
//   - *toolhost.UnavailableError: the tool host is gone; the session is
//     unusable afterwards.
//   - a wrapped context error when ctx ended between steps.
func (s *Session) Run(ctx context.Context, query string) (*Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.checkRunnable(); err != nil {
		return nil, err
	}

	q := &queryRun{
		s:       s,
		id:      uuid.New().String(),
		query:   query,
		started: time.Now(),
		conv:    NewConversation(s.systemPrompt, query),
	}
	q.logger = s.logger.With(slog.String("query_id", q.id))

	ctx, span := s.tracer.Start(ctx, "agentloop.query", trace.WithAttributes(
		attribute.String("mcpagent.session_id", s.id),
		attribute.String("mcpagent.query_id", q.id),
	))
	defer span.End()

	s.emitter.Emit(EventQueryStart, q.id, map[string]any{"query": query})
	q.logger.Info("query started", slog.Int("query_len", len(query)))

	res, err := q.run(ctx)
	outcome := outcomeLabel(res, err)
	elapsed := time.Since(q.started)
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	toolRounds.Observe(float64(q.rounds))

	span.SetAttributes(
		attribute.String("mcpagent.outcome", outcome),
		attribute.Int("mcpagent.tool_rounds", q.rounds),
		attribute.Int("mcpagent.completion_calls", q.calls),
	)

	if err != nil {
		s.markFatal(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.emitter.Emit(EventError, q.id, map[string]any{"error": err.Error()})
		s.emitter.Emit(EventQueryEnd, q.id, map[string]any{"outcome": outcome})
		q.logger.Error("query failed",
			slog.String("outcome", outcome),
			slog.Int("tool_rounds", q.rounds),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}

	res.Duration = elapsed
	s.emitter.Emit(EventQueryEnd, q.id, map[string]any{
		"outcome":     outcome,
		"tool_rounds": res.ToolRounds,
	})
	q.logger.Info("query answered",
		slog.String("path", string(res.Path)),
		slog.Int("tool_rounds", res.ToolRounds),
		slog.Int("completion_calls", res.CompletionCalls),
		slog.Duration("elapsed", elapsed),
	)
	return res, nil
}

func outcomeLabel(res *Result, err error) string {
	var exhausted *LoopExhaustedError
	switch {
	case err == nil && res != nil:
		return string(res.Path)
	case errors.As(err, &exhausted):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

// queryRun is the state owned by one in-flight query.
type queryRun struct {
	s       *Session
	id      string
	query   string
	started time.Time
	logger  *slog.Logger

	conv         *Conversation
	observations []string
	signatures   []string
	rounds       int
	calls        int
	usage        unifiedllm.Usage
	warnedCtx    bool
}

func (q *queryRun) run(ctx context.Context) (*Result, error) {
	s := q.s
	s.setState(q.id, StateInit)
	if err := ctx.Err(); err != nil {
		return nil, q.canceled(err)
	}

	s.setState(q.id, StateAwaitingFirstReply)
	reply, err := q.complete(ctx, q.conv.Messages(), StageFirstReply)
	if err != nil {
		return nil, err
	}
	outcome := ParseReply(reply)

	for {
		if outcome.Kind != OutcomeToolCall {
			return q.fallback(ctx, outcome)
		}
		if q.rounds >= s.config.MaxToolRounds {
			s.setState(q.id, StateExhausted)
			s.emitter.Emit(EventTurnLimit, q.id, map[string]any{"rounds": q.rounds})
			return nil, &LoopExhaustedError{Rounds: q.rounds, Observations: q.copyObservations()}
		}
		if err := ctx.Err(); err != nil {
			return nil, q.canceled(err)
		}

		s.setState(q.id, StateToolLoop)
		q.rounds++
		inv := *outcome.Invocation
		observation, err := q.callTool(ctx, inv)
		if err != nil {
			s.setState(q.id, StateFailed)
			return nil, err
		}
		q.observations = append(q.observations, observation)
		q.conv.AppendRound(reply, TruncateToolOutput(observation, inv.Name, s.config.Truncation), q.query)
		q.checkLoop(inv)

		if err := ctx.Err(); err != nil {
			return nil, q.canceled(err)
		}
		reply, err = q.complete(ctx, q.conv.Messages(), StageToolLoop)
		if err != nil {
			return nil, err
		}
		if DetectStatus(reply, s.config.LegacyFinishMarker) == StatusDone {
			break
		}
		outcome = ParseReply(reply)
	}

	return q.synthesize(ctx)
}

// fallback answers by re-asking the bare query with no tool context.
func (q *queryRun) fallback(ctx context.Context, outcome ParseOutcome) (*Result, error) {
	s := q.s
	s.setState(q.id, StateFallback)

	reason := "plain answer"
	if outcome.Kind == OutcomeMalformed && outcome.Err != nil {
		reason = outcome.Err.Error()
		q.logger.Warn("malformed tool call; answering without tools", slog.Any("error", outcome.Err))
	}
	s.emitter.Emit(EventFallback, q.id, map[string]any{
		"kind":   outcome.Kind.String(),
		"reason": reason,
		"round":  q.rounds,
	})

	if err := ctx.Err(); err != nil {
		return nil, q.canceled(err)
	}
	q.calls++
	res, err := unifiedllm.Generate(ctx, s.llm, unifiedllm.GenerateOptions{
		Model:    s.config.Model,
		Provider: s.config.Provider,
		Prompt:   q.query,
		Metadata: q.metadata(StageFallback),
	})
	if err != nil {
		return nil, q.completionError(ctx, StageFallback, err)
	}
	q.usage = q.usage.Add(res.Response.Usage)
	s.emitter.Emit(EventModelReply, q.id, map[string]any{
		"stage":  string(StageFallback),
		"length": len(res.Text),
	})

	return q.result(res.Text, PathFallback, reason), nil
}

// synthesize sends the tool-loop conversation plus the synthesis prompt.
func (q *queryRun) synthesize(ctx context.Context) (*Result, error) {
	s := q.s
	s.setState(q.id, StateFinishing)
	if err := ctx.Err(); err != nil {
		return nil, q.canceled(err)
	}

	messages := append(q.conv.Messages(), unifiedllm.UserMessage(SynthesisPrompt(q.observations, q.query)))
	answer, err := q.complete(ctx, messages, StageSynthesis)
	if err != nil {
		return nil, err
	}
	s.setState(q.id, StateDone)
	return q.result(answer, PathSynthesis, ""), nil
}

func (q *queryRun) complete(ctx context.Context, messages []unifiedllm.Message, stage Stage) (string, error) {
	s := q.s
	q.calls++
	resp, err := s.llm.Complete(ctx, unifiedllm.Request{
		Model:    s.config.Model,
		Provider: s.config.Provider,
		Messages: messages,
		Metadata: q.metadata(stage),
	})
	if err != nil {
		return "", q.completionError(ctx, stage, err)
	}
	if resp == nil {
		return "", q.completionError(ctx, stage, errors.New("empty response"))
	}

	q.usage = q.usage.Add(resp.Usage)
	text := resp.Text()
	s.emitter.Emit(EventModelReply, q.id, map[string]any{
		"stage":       string(stage),
		"length":      len(text),
		"response_id": resp.ID,
	})
	q.logger.Debug("model reply", slog.String("stage", string(stage)), slog.String("reply", text))
	q.checkContextUsage()
	return text, nil
}

func (q *queryRun) metadata(stage Stage) map[string]string {
	return map[string]string{
		"session_id": q.s.id,
		"query_id":   q.id,
		"stage":      string(stage),
	}
}

func (q *queryRun) completionError(ctx context.Context, stage Stage, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return q.canceled(ctxErr)
	}
	q.s.setState(q.id, StateFailed)
	return &ModelUnreachableError{Stage: stage, Cause: err}
}

func (q *queryRun) canceled(cause error) error {
	q.s.setState(q.id, StateFailed)
	return fmt.Errorf("query %s canceled: %w", q.id, cause)
}

// callTool runs one invocation. Unknown tools and execution failures become
// error observations; only a dead tool host is returned as an error. The
// call is awaited even if ctx is canceled meanwhile.
func (q *queryRun) callTool(ctx context.Context, inv ToolInvocation) (string, error) {
	s := q.s
	s.emitter.Emit(EventToolCallStart, q.id, map[string]any{
		"tool_name": inv.Name,
		"round":     q.rounds,
		"params":    inv.Params,
	})

	ctx, span := s.tracer.Start(ctx, "agentloop.tool_call", trace.WithAttributes(
		attribute.String("mcpagent.tool", inv.Name),
		attribute.Int("mcpagent.round", q.rounds),
	))
	defer span.End()

	if _, ok := s.registry.Get(inv.Name); !ok {
		observation := fmt.Sprintf("Tool error: unknown tool %q. Available tools: %s",
			inv.Name, strings.Join(s.registry.Names(), ", "))
		toolCallsTotal.WithLabelValues("unknown", "unknown_tool").Inc()
		span.SetStatus(codes.Error, "unknown tool")
		s.emitter.Emit(EventToolCallEnd, q.id, map[string]any{
			"tool_name": inv.Name,
			"round":     q.rounds,
			"error":     observation,
		})
		q.logger.Warn("model requested unknown tool", slog.String("tool", inv.Name), slog.Int("round", q.rounds))
		return observation, nil
	}

	callCtx := context.WithoutCancel(ctx)
	if s.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.config.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	output, err := s.tools.CallTool(callCtx, inv.Name, inv.Params)
	toolCallDuration.WithLabelValues(inv.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool call failed")

		var unavailable *toolhost.UnavailableError
		if errors.As(err, &unavailable) {
			toolCallsTotal.WithLabelValues(inv.Name, "unavailable").Inc()
			return "", err
		}

		observation := "Tool error: " + err.Error()
		toolCallsTotal.WithLabelValues(inv.Name, "error").Inc()
		s.emitter.Emit(EventToolCallEnd, q.id, map[string]any{
			"tool_name": inv.Name,
			"round":     q.rounds,
			"error":     observation,
		})
		q.logger.Warn("tool call failed",
			slog.String("tool", inv.Name),
			slog.Int("round", q.rounds),
			slog.Any("error", err),
		)
		return observation, nil
	}

	toolCallsTotal.WithLabelValues(inv.Name, "ok").Inc()
	// Full untruncated output.
	s.emitter.Emit(EventToolCallEnd, q.id, map[string]any{
		"tool_name": inv.Name,
		"round":     q.rounds,
		"output":    output,
	})
	q.logger.Info("tool call",
		slog.String("tool", inv.Name),
		slog.Int("round", q.rounds),
		slog.Int("output_len", len(output)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return output, nil
}

// checkLoop warns when the model keeps repeating the same invocations.
func (q *queryRun) checkLoop(inv ToolInvocation) {
	s := q.s
	q.signatures = append(q.signatures, invocationSignature(inv))
	if !s.config.EnableLoopDetection || !DetectLoop(q.signatures, s.config.LoopDetectionWindow) {
		return
	}
	msg := fmt.Sprintf("the last %d tool calls follow a repeating pattern", s.config.LoopDetectionWindow)
	s.emitter.Emit(EventLoopDetection, q.id, map[string]any{
		"message": msg,
		"round":   q.rounds,
	})
	q.logger.Warn("repeated tool calls", slog.String("tool", inv.Name), slog.Int("round", q.rounds))
}

// checkContextUsage emits a warning once per query when the conversation
// passes 80% of the model's catalog context window.
func (q *queryRun) checkContextUsage() {
	if q.warnedCtx {
		return
	}
	window := unifiedllm.ContextWindow(q.s.config.Model)
	if window <= 0 {
		return
	}
	approx := q.conv.approxTokens()
	if approx <= int(float64(window)*0.8) {
		return
	}
	q.warnedCtx = true
	pct := int(float64(approx) / float64(window) * 100)
	q.s.emitter.Emit(EventWarning, q.id, map[string]any{
		"message": fmt.Sprintf("Context usage at ~%d%% of context window", pct),
	})
	q.logger.Warn("context window nearly full", slog.Int("percent", pct))
}

func (q *queryRun) copyObservations() []string {
	return append([]string(nil), q.observations...)
}

func (q *queryRun) result(answer string, path AnswerPath, reason string) *Result {
	return &Result{
		QueryID:         q.id,
		Query:           q.query,
		Answer:          answer,
		Path:            path,
		FallbackReason:  reason,
		ToolRounds:      q.rounds,
		Observations:    q.copyObservations(),
		Conversation:    q.conv.Messages(),
		CompletionCalls: q.calls,
		Usage:           q.usage,
	}
}
