package hooks

// Output is what a hook callback returns. SyncOutput answers the event
// inline; AsyncOutput acknowledges it and promises a follow-up within a
// timeout. Nested hook-output fields use camelCase on the wire, matching
// the CLI's expectations, unlike the snake_case protocol envelope.
type Output interface {
	hookOutput()
}

// Decision values for SyncOutput.Decision.
const (
	DecisionBlock = "block"
)

// SyncOutput is the inline answer to a hook event. A false Continue halts
// the tool or prompt; Decision "block" specifically blocks a tool use;
// StopReason is shown to the user and SystemMessage is injected back into
// the agent.
type SyncOutput struct {
	Continue           *bool  `json:"continue,omitempty"`
	Decision           string `json:"decision,omitempty"`
	StopReason         string `json:"stopReason,omitempty"`
	SystemMessage      string `json:"systemMessage,omitempty"`
	SuppressOutput     *bool  `json:"suppressOutput,omitempty"`
	Reason             string `json:"reason,omitempty"`
	HookSpecificOutput any    `json:"hookSpecificOutput,omitempty"`
}

func (SyncOutput) hookOutput() {}

// Block builds the common blocking output: halt with a reason.
func Block(stopReason string) *SyncOutput {
	cont := false
	return &SyncOutput{
		Continue:   &cont,
		Decision:   DecisionBlock,
		StopReason: stopReason,
	}
}

// Allow builds an empty output that lets the event proceed unchanged.
func Allow() *SyncOutput {
	return &SyncOutput{}
}

// AsyncOutput acknowledges the event without answering it; the CLI waits
// up to AsyncTimeoutMS milliseconds for a follow-up.
type AsyncOutput struct {
	Async          bool `json:"async"`
	AsyncTimeoutMS int  `json:"asyncTimeout,omitempty"`
}

func (AsyncOutput) hookOutput() {}
