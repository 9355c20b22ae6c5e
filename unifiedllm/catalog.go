package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	Local         bool     `json:"local"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. The first entry per provider is that
// provider's default.
var Models = []ModelInfo{
	// Ollama (served locally, OpenAI-compatible at /v1)
	{
		ID: "gpt-oss:20b", Provider: "ollama", DisplayName: "gpt-oss 20B",
		ContextWindow: 131072, Local: true,
		Aliases: []string{"gpt-oss"},
	},
	{
		ID: "gpt-oss:120b", Provider: "ollama", DisplayName: "gpt-oss 120B",
		ContextWindow: 131072, Local: true,
	},
	{
		ID: "qwen3:8b", Provider: "ollama", DisplayName: "Qwen3 8B",
		ContextWindow: 40960, Local: true,
		Aliases: []string{"qwen3"},
	},
	{
		ID: "llama3.2:3b", Provider: "ollama", DisplayName: "Llama 3.2 3B",
		ContextWindow: 131072, Local: true,
		Aliases: []string{"llama3.2"},
	},

	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o mini",
		ContextWindow: 128000,
	},
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000,
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000,
		Aliases:       []string{"sonnet"},
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the default model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// ContextWindow returns the catalog context window for modelID, or 0 when
// the model is unknown.
func ContextWindow(modelID string) int {
	if info := GetModelInfo(modelID); info != nil {
		return info.ContextWindow
	}
	return 0
}
