package agentloop

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/martinemde/mcpagent/toolhost"
	"github.com/martinemde/mcpagent/unifiedllm"
)

func TestConversationAppendRound(t *testing.T) {
	c := NewConversation("sys", "what?")
	if c.Len() != 2 {
		t.Fatalf("expected 2 initial messages, got %d", c.Len())
	}

	c.AppendRound("reply", "result", "what?")
	msgs := c.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	wantRoles := []unifiedllm.Role{
		unifiedllm.RoleSystem, unifiedllm.RoleUser,
		unifiedllm.RoleAssistant, unifiedllm.RoleUser, unifiedllm.RoleUser,
	}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d role = %s, want %s", i, m.Role, wantRoles[i])
		}
	}
	if msgs[3].Content != "Tool call result:\nresult" {
		t.Errorf("unexpected tool result message %q", msgs[3].Content)
	}
	if !strings.HasSuffix(msgs[4].Content, "Question: what?") {
		t.Errorf("nudge should end with the query, got %q", msgs[4].Content)
	}
}

func TestConversationMessagesIsCopy(t *testing.T) {
	c := NewConversation("sys", "q")
	msgs := c.Messages()
	msgs[1].Content = "changed"
	_ = append(msgs, unifiedllm.UserMessage("extra"))
	if c.Messages()[1].Content != "q" || c.Len() != 2 {
		t.Error("conversation changed through a returned slice")
	}
}

func TestConversationApproxTokens(t *testing.T) {
	c := NewConversation("", "")
	if got := c.approxTokens(); got != 0 {
		t.Errorf("approxTokens() = %d for an empty conversation", got)
	}

	c.AppendRound(strings.Repeat("a", 400), "", "")
	chars := 0
	for _, m := range c.Messages() {
		chars += len(m.Content)
	}
	if got := c.approxTokens(); got != chars/4 || got < 100 {
		t.Errorf("approxTokens() = %d, want %d", got, chars/4)
	}
}

func TestBuildSystemPromptToolList(t *testing.T) {
	prompt := BuildSystemPrompt([]toolhost.ToolDescriptor{
		{Name: "search", Description: "Web search", InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)},
		{Name: "add"},
	})

	idx := strings.Index(prompt, "Available tools:\n")
	if idx < 0 {
		t.Fatal("prompt is missing the tool list header")
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(prompt[idx+len("Available tools:\n"):]), &entries); err != nil {
		t.Fatalf("tool list is not a JSON array: %v", err)
	}
	if len(entries) != 2 || entries[0]["name"] != "search" || entries[1]["name"] != "add" {
		t.Errorf("unexpected tool entries %v", entries)
	}
	if _, ok := entries[0]["input_schema"].(map[string]any); !ok {
		t.Error("input schema should be embedded as an object")
	}
	if _, ok := entries[1]["description"]; ok {
		t.Error("empty description should be omitted")
	}
}

func TestBuildSystemPromptNoTools(t *testing.T) {
	prompt := BuildSystemPrompt(nil)
	if !strings.HasSuffix(prompt, "[]") {
		t.Errorf("expected empty JSON array, got tail %q", prompt[len(prompt)-10:])
	}
}

func TestSynthesisPrompt(t *testing.T) {
	p := SynthesisPrompt([]string{"one", "two"}, "why?")
	if !strings.Contains(p, "one\n\ntwo") {
		t.Errorf("results should be joined by a blank line, got %q", p)
	}
	if !strings.HasSuffix(p, "Question: why?") {
		t.Errorf("prompt should end with the query, got %q", p)
	}
}
