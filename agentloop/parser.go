package agentloop

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	openFence  = "```json"
	closeFence = "```"

	// legacyFinishMarker is matched as a raw, case-sensitive substring of
	// the whole reply.
	legacyFinishMarker = "finish"
)

// ToolInvocation is a request by the model to run one tool.
type ToolInvocation struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Fence encodes the invocation in the wire form ParseReply accepts.
func (inv ToolInvocation) Fence() string {
	params := inv.Params
	if params == nil {
		params = map[string]any{}
	}
	body, _ := json.Marshal(struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}{inv.Name, params})
	return openFence + "\n" + string(body) + "\n" + closeFence
}

// OutcomeKind discriminates ParseOutcome.
type OutcomeKind int

const (
	OutcomePlainAnswer OutcomeKind = iota
	OutcomeToolCall
	OutcomeMalformed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePlainAnswer:
		return "plain_answer"
	case OutcomeToolCall:
		return "tool_call"
	case OutcomeMalformed:
		return "malformed"
	}
	return "unknown"
}

// ParseOutcome is the classification of one model reply.
type ParseOutcome struct {
	Kind       OutcomeKind
	Text       string          // the reply, for OutcomePlainAnswer
	Invocation *ToolInvocation // set for OutcomeToolCall
	Err        *MalformedToolCallError
}

// fencedBody returns the text strictly between the first opening fence and
// the next closing fence. With no closing fence the rest of the text is
// returned.
func fencedBody(text string) (string, bool) {
	_, after, found := strings.Cut(text, openFence)
	if !found {
		return "", false
	}
	body, _, _ := strings.Cut(after, closeFence)
	return body, true
}

// ParseReply classifies a model reply. It never fails: problems with the
// fenced block are reported as OutcomeMalformed.
func ParseReply(text string) ParseOutcome {
	body, found := fencedBody(text)
	if !found {
		return ParseOutcome{Kind: OutcomePlainAnswer, Text: text}
	}

	malformed := func(reason string, cause error) ParseOutcome {
		return ParseOutcome{
			Kind: OutcomeMalformed,
			Text: text,
			Err:  &MalformedToolCallError{Body: body, Reason: reason, Cause: cause},
		}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &raw); err != nil {
		return malformed("fenced block is not a JSON object", err)
	}

	var name string
	if err := json.Unmarshal(raw["name"], &name); err != nil {
		return malformed(`"name" must be a string`, err)
	}
	if name == "" {
		return malformed(`"name" is empty`, nil)
	}

	rawParams, ok := raw["params"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawParams), []byte("null")) {
		return malformed(`"params" is missing`, nil)
	}
	var params map[string]any
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return malformed(`"params" must be an object`, err)
	}

	return ParseOutcome{
		Kind:       OutcomeToolCall,
		Text:       text,
		Invocation: &ToolInvocation{Name: name, Params: params},
	}
}

// Status is the termination signal carried by a reply.
type Status int

const (
	StatusContinue Status = iota
	StatusDone
)

func (s Status) String() string {
	if s == StatusDone {
		return "done"
	}
	return "continue"
}

// DetectStatus reports whether a reply in the tool loop ends the loop.
//
// A fenced object with a "status" field decides on its own: "done" or
// "finish" ends the loop, anything else continues. Without one, and when
// legacy is set, the raw substring "finish" anywhere in the reply ends it.
func DetectStatus(text string, legacy bool) Status {
	if body, found := fencedBody(text); found {
		var probe struct {
			Status *string `json:"status"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &probe); err == nil && probe.Status != nil {
			switch strings.ToLower(strings.TrimSpace(*probe.Status)) {
			case "done", "finish", "finished":
				return StatusDone
			default:
				return StatusContinue
			}
		}
	}
	if legacy && strings.Contains(text, legacyFinishMarker) {
		return StatusDone
	}
	return StatusContinue
}
