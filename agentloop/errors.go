package agentloop

import "fmt"

// Stage names the point in a query at which a completion was requested.
type Stage string

const (
	StageFirstReply Stage = "first_reply"
	StageToolLoop   Stage = "tool_loop"
	StageFallback   Stage = "fallback"
	StageSynthesis  Stage = "synthesis"
)

// MalformedToolCallError reports a fenced block that is not a valid tool
// invocation. The loop treats it like a plain answer.
type MalformedToolCallError struct {
	Body   string
	Reason string
	Cause  error
}

func (e *MalformedToolCallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed tool call: %s: %v", e.Reason, e.Cause)
	}
	return "malformed tool call: " + e.Reason
}

func (e *MalformedToolCallError) Unwrap() error { return e.Cause }

// ModelUnreachableError means a completion failed. The query ends; the
// session survives.
type ModelUnreachableError struct {
	Stage Stage
	Cause error
}

func (e *ModelUnreachableError) Error() string {
	return fmt.Sprintf("model unreachable during %s: %v", e.Stage, e.Cause)
}

func (e *ModelUnreachableError) Unwrap() error { return e.Cause }

// LoopExhaustedError means the model kept requesting tools past the
// configured round limit.
type LoopExhaustedError struct {
	Rounds       int
	Observations []string
}

func (e *LoopExhaustedError) Error() string {
	return fmt.Sprintf("tool loop exhausted after %d rounds without a finish signal", e.Rounds)
}
