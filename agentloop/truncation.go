package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Fallback limits for tools without an entry in TruncationLimits.
const (
	DefaultToolCharLimit = 20000
	DefaultToolLineLimit = 400
)

// TruncationLimits bounds how much of a tool result is folded into the
// conversation. Zero values select the defaults; a negative value disables
// that stage.
type TruncationLimits struct {
	MaxChars int
	MaxLines int
	Mode     TruncationMode

	// PerTool overrides MaxChars by tool name.
	PerTool map[string]int
}

func (l TruncationLimits) charsFor(tool string) int {
	if n, ok := l.PerTool[tool]; ok {
		return n
	}
	if l.MaxChars == 0 {
		return DefaultToolCharLimit
	}
	return l.MaxChars
}

func (l TruncationLimits) lines() int {
	if l.MaxLines == 0 {
		return DefaultToolLineLimit
	}
	return l.MaxLines
}

// TruncateOutput applies character-based truncation to output. Limits
// count runes, so cuts never split a multibyte character.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	total := utf8.RuneCountInString(output)
	if total <= maxChars {
		return output
	}

	removed := total - maxChars
	if mode == TruncateTail {
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[runeOffset(output, removed):]
	}

	half := maxChars / 2
	return output[:runeOffset(output, half)] +
		fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
			"If you need specific parts, call the tool again with more targeted parameters.]\n\n",
			removed) +
		output[runeOffset(output, total-half):]
}

// runeOffset returns the byte index of the n-th rune of s.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation, then line truncation.
// Only the conversation copy is truncated; observations keep the full text.
func TruncateToolOutput(output, toolName string, limits TruncationLimits) string {
	mode := limits.Mode
	if mode == "" {
		mode = TruncateHeadTail
	}
	result := TruncateOutput(output, limits.charsFor(toolName), mode)
	return TruncateLines(result, limits.lines())
}
