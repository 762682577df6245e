// Package session is the public surface of the SDK: one-shot queries and
// interactive sessions against the Agent CLI, layered over the transport,
// codec and control channel.
package session

import (
	"time"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/hooks"
	"github.com/kandev/agentsdk/pkg/mcpserver"
	"github.com/kandev/agentsdk/pkg/transport"
)

// DefaultChannelCapacity bounds the inbound message channel between the
// reader loop and the consumer. When full, the reader blocks and
// backpressure propagates to the child's stdout.
const DefaultChannelCapacity = 1024

// McpServerConfig describes an external MCP server passed to the CLI via
// --mcp-config. In-process servers are injected automatically and do not
// appear here.
type McpServerConfig struct {
	Type    string            `json:"type,omitempty" mapstructure:"type"`
	Command string            `json:"command,omitempty" mapstructure:"command"`
	Args    []string          `json:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `json:"env,omitempty" mapstructure:"env"`
	URL     string            `json:"url,omitempty" mapstructure:"url"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// Options configures a query or session. The zero value is usable: it runs
// the default CLI from PATH with no hooks, no permission callback and no
// in-process servers.
type Options struct {
	// CLIPath overrides PATH resolution of the agent binary.
	CLIPath string `mapstructure:"cli_path"`

	// WorkingDir is the child's working directory.
	WorkingDir string `mapstructure:"working_dir"`

	// ChannelCapacity bounds the inbound message channel. Defaults to
	// DefaultChannelCapacity.
	ChannelCapacity int `mapstructure:"channel_capacity"`

	// ControlTimeout bounds outbound control requests without an explicit
	// deadline.
	ControlTimeout time.Duration `mapstructure:"control_timeout"`

	// Logging configures the default logger when Logger is nil.
	Logging logger.LoggingConfig `mapstructure:"logging"`

	// Model selection.
	Model         string `mapstructure:"model"`
	FallbackModel string `mapstructure:"fallback_model"`

	// Prompting.
	SystemPrompt       string `mapstructure:"system_prompt"`
	AppendSystemPrompt string `mapstructure:"append_system_prompt"`

	// Tool gating.
	Tools           []string `mapstructure:"tools"`
	AllowedTools    []string `mapstructure:"allowed_tools"`
	DisallowedTools []string `mapstructure:"disallowed_tools"`
	PermissionMode  string   `mapstructure:"permission_mode"`

	// Run limits.
	MaxTurns          int     `mapstructure:"max_turns"`
	MaxBudgetUSD      float64 `mapstructure:"max_budget_usd"`
	MaxThinkingTokens int     `mapstructure:"max_thinking_tokens"`

	// Session continuity.
	Resume      string `mapstructure:"resume"`
	ForkSession bool   `mapstructure:"fork_session"`
	Continue    bool   `mapstructure:"continue"`

	// Streaming.
	IncludePartialMessages bool `mapstructure:"include_partial_messages"`

	// Sandboxing.
	Sandbox       bool   `mapstructure:"sandbox"`
	SandboxConfig string `mapstructure:"sandbox_config"`

	// Extensions.
	Agents     string   `mapstructure:"agents"`
	Plugins    []string `mapstructure:"plugins"`
	JSONSchema string   `mapstructure:"json_schema"`

	// ExternalMCPServers configures out-of-process MCP servers by name.
	ExternalMCPServers map[string]McpServerConfig `mapstructure:"mcp_servers"`

	// Env holds extra environment variables for the child.
	Env map[string]string `mapstructure:"env"`

	// ExtraArgs is appended verbatim after all rendered flags.
	ExtraArgs []string `mapstructure:"extra_args"`

	// Hooks intercept CLI lifecycle events. Registering any hook forces
	// interactive mode even for one-shot queries.
	Hooks *hooks.Registry `mapstructure:"-"`

	// CanUseTool answers tool-permission queries. Like hooks, it forces
	// interactive mode.
	CanUseTool hooks.PermissionCallback `mapstructure:"-"`

	// ToolServers are in-process MCP servers reachable through the
	// mcp_message control tunnel.
	ToolServers []*mcpserver.Server `mapstructure:"-"`

	// StderrObserver receives each diagnostic line from the child.
	StderrObserver func(line string) `mapstructure:"-"`

	Logger   *logger.Logger               `mapstructure:"-"`
	Resolver transport.ExecutableResolver `mapstructure:"-"`
	Launcher transport.ProcessLauncher    `mapstructure:"-"`
	Renderer ArgumentRenderer             `mapstructure:"-"`
}

// needsInteractive reports whether the options require the bidirectional
// control protocol even for a single exchange.
func (o *Options) needsInteractive() bool {
	if o.CanUseTool != nil || len(o.ToolServers) > 0 {
		return true
	}
	return o.Hooks != nil && !o.Hooks.Empty()
}

func (o *Options) channelCapacity() int {
	if o.ChannelCapacity > 0 {
		return o.ChannelCapacity
	}
	return DefaultChannelCapacity
}

func (o *Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Default()
}
