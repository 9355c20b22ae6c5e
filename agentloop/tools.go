package agentloop

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/martinemde/mcpagent/toolhost"
)

// ToolCaller is the execution channel to the tool host. *toolhost.Client
// satisfies it.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]toolhost.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// ToolRegistry holds the tools advertised for one session. It is filled
// once and read-only afterwards.
type ToolRegistry struct {
	tools []toolhost.ToolDescriptor
	index map[string]int
	mu    sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{index: make(map[string]int)}
}

// Load replaces the registry contents. Names must be unique and non-empty.
func (r *ToolRegistry) Load(tools []toolhost.ToolDescriptor) error {
	index := make(map[string]int, len(tools))
	for i, t := range tools {
		if t.Name == "" {
			return fmt.Errorf("tool at position %d has no name", i)
		}
		if _, dup := index[t.Name]; dup {
			return fmt.Errorf("duplicate tool name %q", t.Name)
		}
		index[t.Name] = i
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append([]toolhost.ToolDescriptor(nil), tools...)
	r.index = index
	return nil
}

// Get returns a registered tool by name.
func (r *ToolRegistry) Get(name string) (toolhost.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return toolhost.ToolDescriptor{}, false
	}
	return r.tools[i], true
}

// Definitions returns the tools in the order the server advertised them.
func (r *ToolRegistry) Definitions() []toolhost.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]toolhost.ToolDescriptor(nil), r.tools...)
}

// Names returns the sorted names of all registered tools.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
