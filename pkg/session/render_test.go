package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentsdk/pkg/mcpserver"
)

func TestRenderOneShot(t *testing.T) {
	args, err := DefaultRenderer{}.Render(&Options{}, "Hello", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--output-format", "stream-json", "--verbose",
		"--print", "Hello",
	}, args)
}

func TestRenderInteractive(t *testing.T) {
	args, err := DefaultRenderer{}.Render(&Options{}, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--output-format", "stream-json", "--verbose",
		"--input-format", "stream-json",
	}, args)
}

func TestRenderFullFlagSurface(t *testing.T) {
	opts := &Options{
		Model:                  "opus",
		FallbackModel:          "sonnet",
		SystemPrompt:           "be brief",
		AppendSystemPrompt:     "and polite",
		Tools:                  []string{"Read", "Write"},
		AllowedTools:           []string{"Read"},
		DisallowedTools:        []string{"Bash"},
		PermissionMode:         "acceptedits",
		MaxTurns:               3,
		MaxBudgetUSD:           0.5,
		MaxThinkingTokens:      2048,
		Resume:                 "sess-9",
		ForkSession:            true,
		IncludePartialMessages: true,
		Sandbox:                true,
		SandboxConfig:          "/etc/sbx.json",
		ExtraArgs:              []string{"--debug"},
	}
	args, err := DefaultRenderer{}.Render(opts, "", false)
	require.NoError(t, err)

	assert.Contains(t, args, "--fallback-model")
	assert.Contains(t, args, "--allowedTools")
	assert.Contains(t, args, "--disallowedTools")
	assert.Contains(t, args, "--fork-session")
	assert.Contains(t, args, "--include-partial-messages")
	assert.Contains(t, args, "--sandbox-config")
	assert.Equal(t, "--debug", args[len(args)-1])

	// Permission modes render in canonical spelling.
	for i, a := range args {
		if a == "--permission-mode" {
			assert.Equal(t, "acceptEdits", args[i+1])
		}
		if a == "--max-budget-usd" {
			assert.Equal(t, "0.5", args[i+1])
		}
	}
}

func TestRenderUnknownPermissionMode(t *testing.T) {
	_, err := DefaultRenderer{}.Render(&Options{PermissionMode: "yolo"}, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown permission mode")
}

func TestRenderMcpConfig(t *testing.T) {
	opts := &Options{
		ExternalMCPServers: map[string]McpServerConfig{
			"files": {Type: "stdio", Command: "mcp-files", Args: []string{"--root", "/tmp"}},
		},
		ToolServers: []*mcpserver.Server{
			mcpserver.NewServer("calc", "1.0.0", nil, nil),
		},
	}
	args, err := DefaultRenderer{}.Render(opts, "", false)
	require.NoError(t, err)

	var raw string
	for i, a := range args {
		if a == "--mcp-config" {
			raw = args[i+1]
		}
	}
	require.NotEmpty(t, raw)

	var doc struct {
		MCPServers map[string]json.RawMessage `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Len(t, doc.MCPServers, 2)
	assert.JSONEq(t, `{"type":"sdk","name":"calc"}`, string(doc.MCPServers["calc"]))
	assert.JSONEq(t, `{"type":"stdio","command":"mcp-files","args":["--root","/tmp"]}`, string(doc.MCPServers["files"]))
}

func TestRenderResumeWithoutForkOmitsFlag(t *testing.T) {
	args, err := DefaultRenderer{}.Render(&Options{Resume: "s", ForkSession: false}, "", false)
	require.NoError(t, err)
	assert.Contains(t, args, "--resume")
	assert.NotContains(t, args, "--fork-session")
}
