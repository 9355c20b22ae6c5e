package toolhost

import "fmt"

// UnavailableError means the tool server could not be started, the
// handshake failed, or the session dropped. It is fatal to the session.
type UnavailableError struct {
	Op    string // "dial", "list_tools", "call_tool"
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return "tool host unavailable: " + e.Op
	}
	return fmt.Sprintf("tool host unavailable: %s: %v", e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// ExecutionError means a single tool call failed. The session remains
// usable and the failure is recoverable by the caller.
type ExecutionError struct {
	Name    string
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("tool %q failed: %s", e.Name, msg)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }
