package streamjson

import "encoding/json"

// Control request subtypes sent SDK to CLI.
const (
	SubtypeInitialize           = "initialize"
	SubtypeInterrupt            = "interrupt"
	SubtypeSetPermissionMode    = "set_permission_mode"
	SubtypeSetModel             = "set_model"
	SubtypeSetMaxThinkingTokens = "set_max_thinking_tokens"
	SubtypeSupportedCommands    = "supported_commands"
	SubtypeSupportedModels      = "supported_models"
	SubtypeMCPServerStatus      = "mcp_server_status"
	SubtypeAccountInfo          = "account_info"
	SubtypeReconnectMCPServer   = "reconnect_mcp_server"
	SubtypeToggleMCPServer      = "toggle_mcp_server"
	SubtypeSetMCPServers        = "set_mcp_servers"
	SubtypeRewindFiles          = "rewind_files"
)

// Control request subtypes sent CLI to SDK.
const (
	SubtypeCanUseTool   = "can_use_tool"
	SubtypeHookCallback = "hook_callback"
	SubtypeMCPMessage   = "mcp_message"
)

// ControlRequest is the request envelope, sent by either peer.
type ControlRequest struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id"`
	Request   ControlRequestBody `json:"request"`
}

func (m *ControlRequest) MessageType() string { return FrameControlRequest }

// ControlRequestBody is the union of all request payloads, discriminated by
// Subtype. Only the fields for the given subtype are populated.
type ControlRequestBody struct {
	Subtype string `json:"subtype"`

	// initialize
	Hooks map[string][]HookMatcherDescriptor `json:"hooks,omitempty"`

	// set_permission_mode
	Mode string `json:"mode,omitempty"`

	// set_model
	Model *string `json:"model,omitempty"`

	// set_max_thinking_tokens
	MaxThinkingTokens *int `json:"max_thinking_tokens,omitempty"`

	// reconnect_mcp_server / toggle_mcp_server / mcp_message
	ServerName string `json:"server_name,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`

	// set_mcp_servers
	MCPServers map[string]json.RawMessage `json:"mcp_servers,omitempty"`

	// rewind_files
	UserMessageID string `json:"user_message_id,omitempty"`

	// can_use_tool
	ToolName              string            `json:"tool_name,omitempty"`
	Input                 json.RawMessage   `json:"input,omitempty"`
	PermissionSuggestions []json.RawMessage `json:"permission_suggestions,omitempty"`
	BlockedPath           *string           `json:"blocked_path,omitempty"`

	// hook_callback
	CallbackID string  `json:"callback_id,omitempty"`
	ToolUseID  *string `json:"tool_use_id,omitempty"`

	// mcp_message
	Message json.RawMessage `json:"message,omitempty"`
}

// HookMatcherDescriptor names the callbacks registered under one matcher for
// one hook event. It rides inside the initialize request so the CLI knows
// which events to route back.
type HookMatcherDescriptor struct {
	Matcher         string   `json:"matcher,omitempty"`
	HookCallbackIDs []string `json:"hookCallbackIds"`
	Timeout         *int     `json:"timeout,omitempty"`
}

// ControlResponse is the response envelope, sent by either peer.
type ControlResponse struct {
	Type     string              `json:"type"`
	Response ControlResponseBody `json:"response"`
}

func (m *ControlResponse) MessageType() string { return FrameControlResponse }

// ControlResponseBody correlates back to a request by RequestID. Subtype is
// "success" or "error"; Response carries the typed payload on success and
// Error the message otherwise.
type ControlResponseBody struct {
	Subtype   string          `json:"subtype"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Control response subtypes.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
)

// ControlCancelRequest asks the peer to abandon an in-flight request.
type ControlCancelRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

func (m *ControlCancelRequest) MessageType() string { return FrameControlCancelRequest }

// NewControlRequest wraps a request body in its envelope.
func NewControlRequest(requestID string, body ControlRequestBody) *ControlRequest {
	return &ControlRequest{
		Type:      FrameControlRequest,
		RequestID: requestID,
		Request:   body,
	}
}

// NewSuccessResponse builds a success envelope for an inbound request. The
// payload is marshalled eagerly so dispatch errors surface at the call site.
func NewSuccessResponse(requestID string, payload any) (*ControlResponse, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &ControlResponse{
		Type: FrameControlResponse,
		Response: ControlResponseBody{
			Subtype:   ResponseSuccess,
			RequestID: requestID,
			Response:  raw,
		},
	}, nil
}

// NewErrorResponse builds an error envelope for an inbound request.
func NewErrorResponse(requestID, message string) *ControlResponse {
	return &ControlResponse{
		Type: FrameControlResponse,
		Response: ControlResponseBody{
			Subtype:   ResponseError,
			RequestID: requestID,
			Error:     message,
		},
	}
}
