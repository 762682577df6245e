package mcpserver

import (
	"context"
	"fmt"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/jsonrpc"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

// Router directs inbound mcp_message control requests to the in-process
// server named in the request.
type Router struct {
	servers map[string]*Server
	logger  *logger.Logger
}

// NewRouter builds a router over the session's registered servers.
func NewRouter(servers []*Server, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Default()
	}
	byName := make(map[string]*Server, len(servers))
	for _, s := range servers {
		byName[s.Name()] = s
	}
	return &Router{
		servers: byName,
		logger:  log.WithComponent("mcp-router"),
	}
}

// Empty reports whether no servers are registered.
func (r *Router) Empty() bool {
	return len(r.servers) == 0
}

// Names returns the registered server names.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}

// mcpReply wraps a JSON-RPC response in the control-response payload the
// CLI expects for mcp_message requests.
type mcpReply struct {
	MCPResponse *jsonrpc.Response `json:"mcp_response"`
}

// Handle services one mcp_message control request.
func (r *Router) Handle(ctx context.Context, req *streamjson.ControlRequest) (any, error) {
	server, ok := r.servers[req.Request.ServerName]
	if !ok {
		return nil, fmt.Errorf("no in-process MCP server named %q", req.Request.ServerName)
	}

	resp := server.HandleMessage(ctx, req.Request.Message)
	return &mcpReply{MCPResponse: resp}, nil
}
