package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/martinemde/mcpagent/toolhost"
)

const systemInstructions = `You are a research assistant that answers the user's question with the help of tools.

When you need a tool, reply with exactly one fenced JSON block and nothing that contradicts it:

` + "```json" + `
{"name": "<tool name>", "params": {"<argument>": <value>}}
` + "```" + `

Call one tool at a time. After each tool result you will be asked to continue.
When you have gathered enough information, reply with:

` + "```json" + `
{"status": "done"}
` + "```" + `

and the word finish. If the question needs no tools, answer it directly without any fenced block.

Available tools:
`

// ToolResultPrefix introduces a tool result in the conversation.
const ToolResultPrefix = "Tool call result:\n"

const nextStepTemplate = `Based on the tool results so far, decide the next step for the question below.
If more information is needed, call another tool using the fenced JSON format.
If you have enough information, reply with {"status": "done"} in a fenced JSON block and the word finish.

Question: %s`

const synthesisTemplate = `Using the research results below, write a complete, well-organised answer to the question.
Cite specific facts from the results where relevant and do not invent information they do not contain.

Research results:
%s

Question: %s`

// toolListEntry is the shape each tool takes in the system prompt.
type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// BuildSystemPrompt combines the fixed instructions with the advertised
// tools serialized as a JSON array, in server order.
func BuildSystemPrompt(tools []toolhost.ToolDescriptor) string {
	entries := make([]toolListEntry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, toolListEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	list, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		// Only reachable with an invalid schema; fall back to names.
		names := make([]string, len(tools))
		for i, t := range tools {
			names[i] = t.Name
		}
		list = []byte(strings.Join(names, ", "))
	}
	return systemInstructions + string(list)
}

// ToolResultMessage is the user message carrying one tool result.
func ToolResultMessage(result string) string {
	return ToolResultPrefix + result
}

// NextStepPrompt nudges the model to continue reasoning about query.
func NextStepPrompt(query string) string {
	return fmt.Sprintf(nextStepTemplate, query)
}

// SynthesisPrompt asks for the final answer from the accumulated results,
// joined with blank lines.
func SynthesisPrompt(results []string, query string) string {
	return fmt.Sprintf(synthesisTemplate, strings.Join(results, "\n\n"), query)
}
