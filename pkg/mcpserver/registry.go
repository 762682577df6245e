// Package mcpserver implements the in-process tool server: an MCP endpoint
// that answers JSON-RPC requests tunnelled through the control channel's
// mcp_message subtype.
package mcpserver

import (
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with its handler.
type toolEntry struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

// ToolRegistry holds the tools served by one in-process server. Later
// registrations with the same name replace earlier ones.
type ToolRegistry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]toolEntry
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{entries: make(map[string]toolEntry)}
}

// Register adds or replaces a tool. Registration order is preserved for
// listings; a replacement keeps the original position.
func (r *ToolRegistry) Register(tool mcp.Tool, handler server.ToolHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.entries[tool.Name] = toolEntry{tool: tool, handler: handler}
}

// Lookup returns the handler entry for a tool name.
func (r *ToolRegistry) Lookup(name string) (toolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Tools returns a snapshot of the registered tools in registration order.
func (r *ToolRegistry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
