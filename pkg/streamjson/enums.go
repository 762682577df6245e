package streamjson

import "strings"

// PermissionMode controls how the CLI gates tool use.
type PermissionMode string

const (
	PermissionDefault           PermissionMode = "default"
	PermissionAcceptEdits       PermissionMode = "acceptEdits"
	PermissionPlan              PermissionMode = "plan"
	PermissionBypassPermissions PermissionMode = "bypassPermissions"
	PermissionDontAsk           PermissionMode = "dontAsk"

	// PermissionUnknown is the fallback for strings outside the vocabulary.
	PermissionUnknown PermissionMode = ""
)

var permissionModes = []PermissionMode{
	PermissionDefault,
	PermissionAcceptEdits,
	PermissionPlan,
	PermissionBypassPermissions,
	PermissionDontAsk,
}

// ParsePermissionMode normalises a mode string to its canonical wire
// spelling. Matching is case-insensitive so callers may pass
// "bypasspermissions" or "BypassPermissions" interchangeably. Unknown
// strings return PermissionUnknown and false.
func ParsePermissionMode(s string) (PermissionMode, bool) {
	for _, m := range permissionModes {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return PermissionUnknown, false
}

func (m PermissionMode) String() string { return string(m) }

// HookEvent names a point in the CLI's lifecycle where a registered hook
// can intercept.
type HookEvent string

const (
	HookPreToolUse         HookEvent = "PreToolUse"
	HookPostToolUse        HookEvent = "PostToolUse"
	HookPostToolUseFailure HookEvent = "PostToolUseFailure"
	HookUserPromptSubmit   HookEvent = "UserPromptSubmit"
	HookStop               HookEvent = "Stop"
	HookSubagentStart      HookEvent = "SubagentStart"
	HookSubagentStop       HookEvent = "SubagentStop"
	HookPreCompact         HookEvent = "PreCompact"
	HookPermissionRequest  HookEvent = "PermissionRequest"
	HookSessionStart       HookEvent = "SessionStart"
	HookSessionEnd         HookEvent = "SessionEnd"
	HookNotification       HookEvent = "Notification"
	HookSetup              HookEvent = "Setup"
	HookTeammateIdle       HookEvent = "TeammateIdle"
	HookTaskCompleted      HookEvent = "TaskCompleted"

	// HookUnknown is the fallback for events outside the vocabulary.
	HookUnknown HookEvent = ""
)

var hookEvents = []HookEvent{
	HookPreToolUse,
	HookPostToolUse,
	HookPostToolUseFailure,
	HookUserPromptSubmit,
	HookStop,
	HookSubagentStart,
	HookSubagentStop,
	HookPreCompact,
	HookPermissionRequest,
	HookSessionStart,
	HookSessionEnd,
	HookNotification,
	HookSetup,
	HookTeammateIdle,
	HookTaskCompleted,
}

// HookEvents returns every known hook event.
func HookEvents() []HookEvent {
	out := make([]HookEvent, len(hookEvents))
	copy(out, hookEvents)
	return out
}

// ParseHookEvent maps an event string to its enum value. Unknown strings
// return HookUnknown and false.
func ParseHookEvent(s string) (HookEvent, bool) {
	for _, e := range hookEvents {
		if s == string(e) {
			return e, true
		}
	}
	return HookUnknown, false
}

func (e HookEvent) String() string { return string(e) }
