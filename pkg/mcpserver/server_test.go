package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/jsonrpc"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

func newCalcServer(t *testing.T) *Server {
	t.Helper()
	reg := NewToolRegistry()
	reg.Register(
		mcp.NewTool("add",
			mcp.WithDescription("Add two numbers"),
			mcp.WithNumber("a", mcp.Required()),
			mcp.WithNumber("b", mcp.Required()),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return mcp.NewToolResultText(fmt.Sprintf("%g", a+b)), nil
		},
	)
	return NewServer("calc", "1.0.0", reg, logger.Nop())
}

func TestInitialize(t *testing.T) {
	s := newCalcServer(t)

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))

	require.Nil(t, resp.Error)
	assert.Equal(t, `1`, string(resp.ID))

	var result initializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "calc", result.ServerInfo.Name)
}

func TestToolsCall(t *testing.T) {
	s := newCalcServer(t)

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`))

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"5"}],"isError":false}}`,
		string(out))
}

func TestRequestIDEchoedVerbatim(t *testing.T) {
	s := newCalcServer(t)

	// String IDs must come back as strings, not numbers.
	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":"abc-123","method":"tools/list"}`))
	assert.Equal(t, `"abc-123"`, string(resp.ID))

	resp = s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":42,"method":"tools/list"}`))
	assert.Equal(t, `42`, string(resp.ID))
}

func TestToolsList(t *testing.T) {
	s := newCalcServer(t)

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	require.Nil(t, resp.Error)

	var result struct {
		Tools []json.RawMessage `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Contains(t, string(result.Tools[0]), `"add"`)
	assert.Contains(t, string(result.Tools[0]), `"inputSchema"`)
}

func TestRegisterReplacesSameName(t *testing.T) {
	reg := NewToolRegistry()
	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("v1"), nil
	}
	reg.Register(mcp.NewTool("echo", mcp.WithDescription("first")), handler)
	reg.Register(mcp.NewTool("other", mcp.WithDescription("other")), handler)
	reg.Register(mcp.NewTool("echo", mcp.WithDescription("second")), handler)

	tools := reg.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "second", tools[0].Description)
	assert.Equal(t, "other", tools[1].Name)
}

func TestToolHandlerErrorBecomesIsError(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(mcp.NewTool("boom"), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("kaput")
	})
	s := NewServer("x", "", reg, logger.Nop())

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"boom","arguments":{}}}`))
	require.Nil(t, resp.Error)

	var result toolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "kaput", result.Content[0].Text)
}

func TestToolHandlerPanicBecomesIsError(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(mcp.NewTool("panicky"), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("yikes")
	})
	s := NewServer("x", "", reg, logger.Nop())

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"panicky","arguments":{}}}`))
	require.Nil(t, resp.Error)

	var result toolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "yikes")
}

func TestUnknownMethod(t *testing.T) {
	s := newCalcServer(t)

	resp := s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InternalError, resp.Error.Code)
	assert.Equal(t, "Unknown method: resources/list", resp.Error.Message)
}

func TestRouterDispatch(t *testing.T) {
	router := NewRouter([]*Server{newCalcServer(t)}, logger.Nop())

	out, err := router.Handle(context.Background(), &streamjson.ControlRequest{
		Request: streamjson.ControlRequestBody{
			Subtype:    streamjson.SubtypeMCPMessage,
			ServerName: "calc",
			Message:    json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`),
		},
	})
	require.NoError(t, err)

	wire, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"mcp_response":{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"5"}],"isError":false}}}`,
		string(wire))
}

func TestRouterUnknownServer(t *testing.T) {
	router := NewRouter(nil, logger.Nop())

	_, err := router.Handle(context.Background(), &streamjson.ControlRequest{
		Request: streamjson.ControlRequestBody{
			Subtype:    streamjson.SubtypeMCPMessage,
			ServerName: "ghost",
			Message:    json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`),
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestSchemaGeneration(t *testing.T) {
	type addInput struct {
		A    float64 `json:"a" jsonschema:"required" jsonschema_description:"First operand"`
		B    float64 `json:"b" jsonschema:"required"`
		Note string  `json:"note,omitempty"`
	}

	raw, err := SchemaFor[addInput]()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")

	required, _ := schema["required"].([]any)
	assert.ElementsMatch(t, []any{"a", "b"}, required)

	props, _ := schema["properties"].(map[string]any)
	assert.Contains(t, props, "note")
}
