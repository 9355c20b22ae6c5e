package agentloop

import (
	"testing"
)

func TestEventEmitterDelivers(t *testing.T) {
	e := NewEventEmitter("sess", 4)
	e.Emit(EventQueryStart, "q1", map[string]any{"query": "hi"})
	e.Close()

	var got []SessionEvent
	for ev := range e.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ev := got[0]
	if ev.Kind != EventQueryStart || ev.SessionID != "sess" || ev.QueryID != "q1" || ev.Data["query"] != "hi" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestEventEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter("sess", 2)
	for i := 0; i < 5; i++ {
		e.Emit(EventWarning, "", nil)
	}
	if e.Dropped() != 3 {
		t.Errorf("expected 3 dropped events, got %d", e.Dropped())
	}
}

func TestEventEmitterCloseIdempotent(t *testing.T) {
	e := NewEventEmitter("sess", 0)
	e.Close()
	e.Close()
	e.Emit(EventWarning, "", nil)
	if _, ok := <-e.Events(); ok {
		t.Error("expected closed channel")
	}
}

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		sigs   []string
		window int
		want   bool
	}{
		{"too few", []string{"a", "a"}, 4, false},
		{"same call", []string{"x", "a", "a", "a", "a"}, 4, true},
		{"alternating", []string{"a", "b", "a", "b"}, 4, true},
		{"triple", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"distinct", []string{"a", "b", "c", "d"}, 4, false},
		{"disabled", []string{"a", "a"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(tt.sigs, tt.window); got != tt.want {
				t.Errorf("DetectLoop(%v, %d) = %v, want %v", tt.sigs, tt.window, got, tt.want)
			}
		})
	}
}

func TestInvocationSignature(t *testing.T) {
	a := invocationSignature(ToolInvocation{Name: "search", Params: map[string]any{"q": "go", "n": 1}})
	b := invocationSignature(ToolInvocation{Name: "search", Params: map[string]any{"n": 1, "q": "go"}})
	c := invocationSignature(ToolInvocation{Name: "search", Params: map[string]any{"q": "rust", "n": 1}})
	if a != b {
		t.Error("signature must not depend on map order")
	}
	if a == c {
		t.Error("different params must give different signatures")
	}
}
