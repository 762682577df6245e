// Package streamjson implements the line-delimited JSON protocol spoken by
// the Agent CLI: the message and control frame types, and a stateless codec
// that dispatches parsed lines to tagged variants.
package streamjson

import "encoding/json"

// Frame type discriminators at the top level of every wire line.
const (
	FrameUser                 = "user"
	FrameAssistant            = "assistant"
	FrameSystem               = "system"
	FrameResult               = "result"
	FrameStreamEvent          = "stream_event"
	FrameControlRequest       = "control_request"
	FrameControlResponse      = "control_response"
	FrameControlCancelRequest = "control_cancel_request"
)

// Message is any frame the CLI emits on the message channel, as opposed to
// control traffic. The concrete types are UserMessage, AssistantMessage,
// SystemMessage, ResultMessage and StreamEvent.
type Message interface {
	MessageType() string
}

// ContentBlock is one element of an assistant message's content array.
// Exactly the fields for the block's Type are populated.
type ContentBlock struct {
	Type string `json:"type"`

	// Text blocks.
	Text string `json:"text,omitempty"`

	// Thinking blocks.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Tool use blocks.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// Tool result blocks.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
}

// Content block type discriminators.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// UserMessage carries user input. Outbound it wraps the prompt for the CLI;
// inbound the CLI echoes user turns (including tool results) back in the
// same shape.
type UserMessage struct {
	Type            string          `json:"type"`
	Message         UserMessageBody `json:"message"`
	ParentToolUseID *string         `json:"parent_tool_use_id,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
}

// UserMessageBody is the role/content envelope inside a user frame. Content
// is either a plain string or an array of content blocks; it is kept raw so
// both encodings round-trip untouched.
type UserMessageBody struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m *UserMessage) MessageType() string { return FrameUser }

// NewUserMessage builds an outbound user frame with plain string content.
func NewUserMessage(content, sessionID string) *UserMessage {
	raw, _ := json.Marshal(content)
	return &UserMessage{
		Type:      FrameUser,
		Message:   UserMessageBody{Role: "user", Content: raw},
		SessionID: sessionID,
	}
}

// AssistantMessage is one assistant turn: an ordered list of content blocks
// plus the model that produced them.
type AssistantMessage struct {
	Type            string               `json:"type"`
	Message         AssistantMessageBody `json:"message"`
	ParentToolUseID *string              `json:"parent_tool_use_id,omitempty"`
	SessionID       string               `json:"session_id,omitempty"`
	Error           string               `json:"error,omitempty"`
}

type AssistantMessageBody struct {
	Content []ContentBlock `json:"content"`
	Model   string         `json:"model"`
}

func (m *AssistantMessage) MessageType() string { return FrameAssistant }

// SystemMessage carries lifecycle notices. Subtype "init" announces the
// session after the handshake; "compact_boundary" marks a context
// compaction.
type SystemMessage struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id,omitempty"`

	// Populated for subtype "init".
	Model      string            `json:"model,omitempty"`
	Tools      []string          `json:"tools,omitempty"`
	MCPServers []MCPServerStatus `json:"mcp_servers,omitempty"`
	CWD        string            `json:"cwd,omitempty"`

	// Populated for subtype "compact_boundary".
	CompactMetadata *CompactMetadata `json:"compact_metadata,omitempty"`
}

// System message subtypes.
const (
	SystemInit            = "init"
	SystemCompactBoundary = "compact_boundary"
)

// MCPServerStatus reports one connected MCP server in the init frame.
type MCPServerStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CompactMetadata carries token counts across a compaction boundary.
type CompactMetadata struct {
	Trigger    string `json:"trigger,omitempty"`
	PreTokens  int    `json:"pre_tokens"`
	PostTokens int    `json:"post_tokens,omitempty"`
}

func (m *SystemMessage) MessageType() string { return FrameSystem }

// ResultMessage terminates a turn with its outcome and accounting.
type ResultMessage struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype"`
	IsError       bool            `json:"is_error"`
	SessionID     string          `json:"session_id"`
	DurationMS    int64           `json:"duration_ms"`
	DurationAPIMS int64           `json:"duration_api_ms"`
	NumTurns      int             `json:"num_turns"`
	TotalCostUSD  *float64        `json:"total_cost_usd,omitempty"`
	Usage         json.RawMessage `json:"usage,omitempty"`
	Result        string          `json:"result,omitempty"`
}

// Result subtypes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultPartial = "partial"
)

func (m *ResultMessage) MessageType() string { return FrameResult }

// StreamEvent is an incremental delta, emitted only when the caller opted
// into partial messages. The event payload is passed through untouched.
type StreamEvent struct {
	Type            string          `json:"type"`
	UUID            string          `json:"uuid"`
	SessionID       string          `json:"session_id"`
	Event           json.RawMessage `json:"event"`
	ParentToolUseID *string         `json:"parent_tool_use_id,omitempty"`
}

func (m *StreamEvent) MessageType() string { return FrameStreamEvent }
