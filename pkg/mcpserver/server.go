package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/jsonrpc"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// Server answers MCP JSON-RPC traffic for one registered server name.
type Server struct {
	name     string
	version  string
	registry *ToolRegistry
	logger   *logger.Logger
}

// NewServer builds a tool server. Version may be empty; it defaults to
// "1.0.0" in the initialize result.
func NewServer(name, version string, registry *ToolRegistry, log *logger.Logger) *Server {
	if version == "" {
		version = "1.0.0"
	}
	if registry == nil {
		registry = NewToolRegistry()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
		logger:   log.WithComponent("mcpserver"),
	}
}

// Name returns the server name used for mcp_message routing.
func (s *Server) Name() string { return s.name }

// Registry exposes the server's tool registry for registration.
func (s *Server) Registry() *ToolRegistry { return s.registry }

// toolCallResult is the wire shape of a tools/call reply. isError is always
// present, even when false.
type toolCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []mcp.Tool `json:"tools"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// HandleMessage services one tunnelled JSON-RPC message and always returns
// a response. The request ID is echoed byte for byte.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) *jsonrpc.Response {
	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonrpc.NewError(nil, jsonrpc.ParseError, "failed to parse JSON-RPC request")
	}

	s.logger.Debug("mcp request",
		zap.String("server", s.name),
		zap.String("method", req.Method),
	)

	switch req.Method {
	case "initialize":
		return s.result(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		})

	case "notifications/initialized":
		return s.result(req.ID, map[string]any{})

	case "tools/list":
		return s.result(req.ID, toolsListResult{Tools: s.registry.Tools()})

	case "tools/call":
		return s.handleToolCall(ctx, &req)

	default:
		return jsonrpc.NewError(req.ID, jsonrpc.InternalError,
			fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewError(req.ID, jsonrpc.InvalidParams, "invalid tools/call params")
	}

	entry, ok := s.registry.Lookup(params.Name)
	if !ok {
		return s.result(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	result := s.invoke(ctx, entry, params)
	return s.result(req.ID, result)
}

// invoke runs the tool handler, converting errors and panics into isError
// results so the model sees the failure instead of the protocol breaking.
func (s *Server) invoke(ctx context.Context, entry toolEntry, params toolsCallParams) (out *toolCallResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("tool handler panicked",
				zap.String("tool", params.Name),
				zap.Any("panic", r),
			)
			out = errorResult(fmt.Sprintf("tool handler panic: %v", r))
		}
	}()

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = params.Name
	callReq.Params.Arguments = params.Arguments

	res, err := entry.handler(ctx, callReq)
	if err != nil {
		return errorResult(err.Error())
	}
	return convertResult(res)
}

func errorResult(message string) *toolCallResult {
	return &toolCallResult{
		Content: []contentItem{{Type: "text", Text: message}},
		IsError: true,
	}
}

// convertResult flattens an mcp result into the wire shape with an explicit
// isError field.
func convertResult(res *mcp.CallToolResult) *toolCallResult {
	if res == nil {
		return &toolCallResult{Content: []contentItem{}}
	}

	out := &toolCallResult{
		Content: make([]contentItem, 0, len(res.Content)),
		IsError: res.IsError,
	}
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			out.Content = append(out.Content, contentItem{Type: "text", Text: tc.Text})
		case *mcp.TextContent:
			out.Content = append(out.Content, contentItem{Type: "text", Text: tc.Text})
		default:
			if raw, err := json.Marshal(c); err == nil {
				out.Content = append(out.Content, contentItem{Type: "text", Text: string(raw)})
			}
		}
	}
	return out
}

func (s *Server) result(id json.RawMessage, payload any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResult(id, payload)
	if err != nil {
		return jsonrpc.NewError(id, jsonrpc.InternalError, err.Error())
	}
	return resp
}
