package agentloop

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateOutputHeadTail(t *testing.T) {
	output := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := TruncateOutput(output, 20, TruncateHeadTail)
	if !strings.HasPrefix(got, strings.Repeat("a", 10)) || !strings.HasSuffix(got, strings.Repeat("b", 10)) {
		t.Errorf("expected head and tail kept, got %q", got)
	}
	if !strings.Contains(got, "80 characters were removed from the middle") {
		t.Errorf("expected removal notice, got %q", got)
	}
}

func TestTruncateOutputTail(t *testing.T) {
	output := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := TruncateOutput(output, 20, TruncateTail)
	if !strings.HasSuffix(got, strings.Repeat("b", 20)) {
		t.Errorf("expected tail kept, got %q", got)
	}
	if !strings.Contains(got, "First 80 characters were removed") {
		t.Errorf("expected removal notice, got %q", got)
	}
}

func TestTruncateOutputKeepsRunesWhole(t *testing.T) {
	output := strings.Repeat("搜", 30) + strings.Repeat("索", 30)

	got := TruncateOutput(output, 20, TruncateHeadTail)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated output is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("搜", 10)) || !strings.HasSuffix(got, strings.Repeat("索", 10)) {
		t.Errorf("expected ten runes kept at each end, got %q", got)
	}
	if !strings.Contains(got, "40 characters were removed") {
		t.Errorf("removal count should be in runes, got %q", got)
	}

	got = TruncateOutput(output, 15, TruncateTail)
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "\n\n"+strings.Repeat("索", 15)) {
		t.Errorf("expected the last 15 runes, got %q", got)
	}

	short := strings.Repeat("é", 10)
	if got := TruncateOutput(short, 15, TruncateHeadTail); got != short {
		t.Errorf("output under the rune limit should be untouched, got %q", got)
	}
}

func TestTruncateOutputNoop(t *testing.T) {
	if got := TruncateOutput("short", 100, TruncateHeadTail); got != "short" {
		t.Errorf("expected untouched output, got %q", got)
	}
	if got := TruncateOutput("anything", 0, TruncateHeadTail); got != "anything" {
		t.Errorf("zero limit should disable truncation, got %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, string(rune('0'+i)))
	}
	got := TruncateLines(strings.Join(lines, "\n"), 4)
	want := "0\n1\n[... 6 lines omitted ...]\n8\n9"
	if got != want {
		t.Errorf("TruncateLines() = %q, want %q", got, want)
	}
	if TruncateLines("a\nb", 4) != "a\nb" {
		t.Error("short output should be untouched")
	}
}

func TestTruncateToolOutputLimits(t *testing.T) {
	big := strings.Repeat("x", DefaultToolCharLimit+100)
	if got := TruncateToolOutput(big, "search", TruncationLimits{}); len(got) >= len(big)+200 || !strings.Contains(got, "truncated") {
		t.Error("default char limit should apply")
	}

	limits := TruncationLimits{MaxChars: 10, PerTool: map[string]int{"fetch": -1}}
	if got := TruncateToolOutput(strings.Repeat("y", 50), "fetch", limits); got != strings.Repeat("y", 50) {
		t.Error("a negative per-tool limit should disable char truncation")
	}
	if got := TruncateToolOutput(strings.Repeat("y", 50), "other", limits); !strings.Contains(got, "truncated") {
		t.Error("MaxChars should apply to tools without an override")
	}

	many := strings.Repeat("line\n", DefaultToolLineLimit+10)
	if got := TruncateToolOutput(many, "search", TruncationLimits{MaxChars: -1}); !strings.Contains(got, "lines omitted") {
		t.Error("default line limit should apply")
	}
	if got := TruncateToolOutput(many, "search", TruncationLimits{MaxChars: -1, MaxLines: -1}); got != many {
		t.Error("negative limits should disable truncation entirely")
	}
}
