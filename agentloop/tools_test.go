package agentloop

import (
	"reflect"
	"strings"
	"testing"

	"github.com/martinemde/mcpagent/toolhost"
)

func TestToolRegistryLoad(t *testing.T) {
	r := NewToolRegistry()
	err := r.Load([]toolhost.ToolDescriptor{
		{Name: "search", Description: "Web search"},
		{Name: "add"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 tools, got %d", r.Count())
	}
	if got, ok := r.Get("search"); !ok || got.Description != "Web search" {
		t.Errorf("Get(search) = %+v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing tool lookup to fail")
	}
	if !reflect.DeepEqual(r.Names(), []string{"add", "search"}) {
		t.Errorf("Names() should be sorted, got %v", r.Names())
	}
	defs := r.Definitions()
	if defs[0].Name != "search" || defs[1].Name != "add" {
		t.Errorf("Definitions() should keep server order, got %v", defs)
	}
}

func TestToolRegistryLoadRejects(t *testing.T) {
	tests := []struct {
		name  string
		tools []toolhost.ToolDescriptor
		want  string
	}{
		{"duplicate", []toolhost.ToolDescriptor{{Name: "a"}, {Name: "a"}}, "duplicate"},
		{"empty name", []toolhost.ToolDescriptor{{Name: "a"}, {Name: ""}}, "position 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewToolRegistry()
			err := r.Load(tt.tools)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if r.Count() != 0 {
				t.Error("a rejected load must leave the registry unchanged")
			}
		})
	}
}

func TestToolRegistryDefinitionsIsCopy(t *testing.T) {
	r := NewToolRegistry()
	_ = r.Load([]toolhost.ToolDescriptor{{Name: "a"}})
	defs := r.Definitions()
	defs[0].Name = "mutated"
	if _, ok := r.Get("a"); !ok {
		t.Error("mutating Definitions() must not affect the registry")
	}
	if r.Definitions()[0].Name != "a" {
		t.Error("registry contents changed through a returned slice")
	}
}
