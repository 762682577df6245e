package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kandev/agentsdk/pkg/streamjson"
)

// ArgumentRenderer turns options into the CLI argument list. The default
// covers the documented flag surface; callers with a patched CLI can swap
// in their own.
type ArgumentRenderer interface {
	Render(opts *Options, prompt string, oneShot bool) ([]string, error)
}

// DefaultRenderer renders the stock Agent CLI flags.
type DefaultRenderer struct{}

// Render implements ArgumentRenderer. In one-shot mode the prompt rides as
// a --print argument; in interactive mode stdin carries user frames.
func (DefaultRenderer) Render(opts *Options, prompt string, oneShot bool) ([]string, error) {
	args := []string{"--output-format", "stream-json", "--verbose"}

	if oneShot {
		args = append(args, "--print", prompt)
	} else {
		args = append(args, "--input-format", "stream-json")
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.FallbackModel != "" {
		args = append(args, "--fallback-model", opts.FallbackModel)
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	if opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}
	if len(opts.Tools) > 0 {
		args = append(args, "--tools", strings.Join(opts.Tools, ","))
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if len(opts.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(opts.DisallowedTools, ","))
	}

	if opts.PermissionMode != "" {
		mode, ok := streamjson.ParsePermissionMode(opts.PermissionMode)
		if !ok {
			return nil, fmt.Errorf("unknown permission mode %q", opts.PermissionMode)
		}
		args = append(args, "--permission-mode", mode.String())
	}

	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.MaxBudgetUSD > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(opts.MaxBudgetUSD, 'f', -1, 64))
	}
	if opts.MaxThinkingTokens > 0 {
		args = append(args, "--max-thinking-tokens", strconv.Itoa(opts.MaxThinkingTokens))
	}

	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
		if opts.ForkSession {
			args = append(args, "--fork-session")
		}
	}
	if opts.Continue {
		args = append(args, "--continue")
	}

	if opts.IncludePartialMessages {
		args = append(args, "--include-partial-messages")
	}

	if opts.Sandbox {
		args = append(args, "--sandbox")
		if opts.SandboxConfig != "" {
			args = append(args, "--sandbox-config", opts.SandboxConfig)
		}
	}

	if opts.Agents != "" {
		args = append(args, "--agents", opts.Agents)
	}
	for _, plugin := range opts.Plugins {
		args = append(args, "--plugins", plugin)
	}
	if opts.JSONSchema != "" {
		args = append(args, "--json-schema", opts.JSONSchema)
	}

	if mcpConfig, err := renderMcpConfig(opts); err != nil {
		return nil, err
	} else if mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig)
	}

	args = append(args, opts.ExtraArgs...)
	return args, nil
}

// renderMcpConfig builds the --mcp-config JSON document covering both
// external servers and in-process ones. In-process servers are declared
// with type "sdk" so the CLI tunnels their traffic back over mcp_message.
func renderMcpConfig(opts *Options) (string, error) {
	if len(opts.ExternalMCPServers) == 0 && len(opts.ToolServers) == 0 {
		return "", nil
	}

	servers := make(map[string]any, len(opts.ExternalMCPServers)+len(opts.ToolServers))
	for name, cfg := range opts.ExternalMCPServers {
		servers[name] = cfg
	}
	for _, srv := range opts.ToolServers {
		servers[srv.Name()] = map[string]string{
			"type": "sdk",
			"name": srv.Name(),
		}
	}

	doc, err := json.Marshal(map[string]any{"mcpServers": servers})
	if err != nil {
		return "", fmt.Errorf("render mcp config: %w", err)
	}
	return string(doc), nil
}
