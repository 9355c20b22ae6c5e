package unifiedllm

import "testing"

func TestGetModelInfo(t *testing.T) {
	// By exact ID.
	info := GetModelInfo("gpt-oss:20b")
	if info == nil {
		t.Fatal("expected to find gpt-oss:20b")
	}
	if info.Provider != "ollama" {
		t.Errorf("expected provider %q, got %q", "ollama", info.Provider)
	}
	if info.ContextWindow != 131072 {
		t.Errorf("expected context window 131072, got %d", info.ContextWindow)
	}
	if !info.Local {
		t.Error("expected local = true")
	}

	// By alias.
	info = GetModelInfo("sonnet")
	if info == nil {
		t.Fatal("expected to find model by alias 'sonnet'")
	}
	if info.ID != "claude-sonnet-4-5" {
		t.Errorf("expected id %q, got %q", "claude-sonnet-4-5", info.ID)
	}

	// Unknown model.
	info = GetModelInfo("nonexistent-model")
	if info != nil {
		t.Errorf("expected nil for unknown model, got %v", info)
	}
}

func TestListModels(t *testing.T) {
	all := ListModels("")
	if len(all) != len(Models) {
		t.Errorf("expected %d models, got %d", len(Models), len(all))
	}

	ollama := ListModels("ollama")
	if len(ollama) != 4 {
		t.Errorf("expected 4 Ollama models, got %d", len(ollama))
	}
	for _, m := range ollama {
		if m.Provider != "ollama" {
			t.Errorf("expected provider ollama, got %q", m.Provider)
		}
	}

	empty := ListModels("nonexistent")
	if len(empty) != 0 {
		t.Errorf("expected 0 models for nonexistent provider, got %d", len(empty))
	}
}

func TestDefaultModel(t *testing.T) {
	info := DefaultModel("ollama")
	if info == nil {
		t.Fatal("expected a default Ollama model")
	}
	if info.ID != "gpt-oss:20b" {
		t.Errorf("expected %q, got %q", "gpt-oss:20b", info.ID)
	}

	if info := DefaultModel("nonexistent"); info != nil {
		t.Errorf("expected nil for nonexistent provider, got %v", info)
	}
}

func TestContextWindow(t *testing.T) {
	if got := ContextWindow("gpt-4o-mini"); got != 128000 {
		t.Errorf("expected 128000, got %d", got)
	}
	if got := ContextWindow("unknown"); got != 0 {
		t.Errorf("expected 0 for unknown model, got %d", got)
	}
}

func TestModelInfoFields(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Models {
		if m.ID == "" {
			t.Error("model ID must not be empty")
		}
		if seen[m.ID] {
			t.Errorf("model %q listed twice", m.ID)
		}
		seen[m.ID] = true
		if m.Provider == "" {
			t.Errorf("model %q: provider must not be empty", m.ID)
		}
		if m.DisplayName == "" {
			t.Errorf("model %q: display_name must not be empty", m.ID)
		}
		if m.ContextWindow <= 0 {
			t.Errorf("model %q: context_window must be positive", m.ID)
		}
	}
}
