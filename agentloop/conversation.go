package agentloop

import (
	"github.com/martinemde/mcpagent/unifiedllm"
)

// Conversation is the ordered message list for one query. It only grows.
type Conversation struct {
	messages []unifiedllm.Message
}

// NewConversation starts a conversation with the system prompt and query.
func NewConversation(systemPrompt, query string) *Conversation {
	return &Conversation{messages: []unifiedllm.Message{
		unifiedllm.SystemMessage(systemPrompt),
		unifiedllm.UserMessage(query),
	}}
}

// AppendRound records one tool round: the reply that requested the tool,
// the tool result, and the continue nudge.
func (c *Conversation) AppendRound(reply, result, query string) {
	c.messages = append(c.messages,
		unifiedllm.AssistantMessage(reply),
		unifiedllm.UserMessage(ToolResultMessage(result)),
		unifiedllm.UserMessage(NextStepPrompt(query)),
	)
}

// Messages returns a copy of the conversation.
func (c *Conversation) Messages() []unifiedllm.Message {
	return unifiedllm.CloneMessages(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// approxTokens estimates token usage at four characters per token.
func (c *Conversation) approxTokens() int {
	total := 0
	for _, m := range c.messages {
		total += len(m.Content)
	}
	return total / 4
}
