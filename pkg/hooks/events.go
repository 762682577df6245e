// Package hooks routes CLI-initiated hook callbacks and tool-permission
// queries to user-supplied handlers.
package hooks

import (
	"context"
	"encoding/json"
)

// Input is the event payload delivered to a hook callback. Fields are
// populated per event: PreToolUse carries ToolName and ToolInput,
// UserPromptSubmit carries Prompt, and so on. Unmodelled fields stay
// available through Raw.
type Input struct {
	HookEventName  string `json:"hook_event_name"`
	SessionID      string `json:"session_id,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	CWD            string `json:"cwd,omitempty"`
	PermissionMode string `json:"permission_mode,omitempty"`

	// Tool events.
	ToolName     string          `json:"tool_name,omitempty"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`

	// UserPromptSubmit.
	Prompt string `json:"prompt,omitempty"`

	// Stop / SubagentStop.
	StopHookActive bool `json:"stop_hook_active,omitempty"`

	// PreCompact.
	Trigger            string `json:"trigger,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`

	// Notification.
	Message string `json:"message,omitempty"`

	// Raw is the full event record as received.
	Raw json.RawMessage `json:"-"`
}

// ParseInput decodes a hook event record, retaining the raw bytes.
func ParseInput(raw json.RawMessage) (*Input, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	in.Raw = raw
	return &in, nil
}

// Callback services one hook invocation. ToolUseID is set for tool events
// so Pre and Post callbacks for the same invocation can be paired.
type Callback func(ctx context.Context, input *Input, toolUseID *string) (Output, error)
