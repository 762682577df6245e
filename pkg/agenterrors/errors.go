// Package agenterrors defines the structured error taxonomy for the SDK.
//
// Every failure the SDK surfaces carries a stable code so callers can handle
// classes of failure programmatically instead of matching message strings.
package agenterrors

import (
	"errors"
	"fmt"
)

// Error codes as constants.
const (
	CodeExecutableNotFound = "EXECUTABLE_NOT_FOUND"
	CodeSpawnFailed        = "SPAWN_FAILED"
	CodePeerExited         = "PEER_EXITED"
	CodeMalformedFrame     = "MALFORMED_FRAME"
	CodeProtocolViolation  = "PROTOCOL_VIOLATION"
	CodeControlTimeout     = "CONTROL_TIMEOUT"
	CodeHandlerFailure     = "HANDLER_FAILURE"
	CodeCancelled          = "CANCELLED"
	CodeNotWritable        = "NOT_WRITABLE"
	CodeInvalidState       = "INVALID_STATE"
)

// AgentError is the structured error type produced by the SDK core.
type AgentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// ExitCode is populated for PEER_EXITED.
	ExitCode int `json:"exit_code,omitempty"`

	// RawLine is populated for MALFORMED_FRAME with the offending input.
	RawLine string `json:"raw_line,omitempty"`

	// RequestID is populated for CONTROL_TIMEOUT.
	RequestID string `json:"request_id,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// ExecutableNotFound reports that the Agent CLI binary could not be resolved.
func ExecutableNotFound(name string, err error) *AgentError {
	return &AgentError{
		Code:    CodeExecutableNotFound,
		Message: fmt.Sprintf("agent CLI %q not found", name),
		Err:     err,
	}
}

// SpawnFailed reports that the child process could not be started.
func SpawnFailed(err error) *AgentError {
	return &AgentError{
		Code:    CodeSpawnFailed,
		Message: "failed to start agent CLI process",
		Err:     err,
	}
}

// PeerExited reports a nonzero child exit before a clean shutdown.
func PeerExited(code int, stderr []string) *AgentError {
	msg := fmt.Sprintf("agent CLI exited with code %d", code)
	if len(stderr) > 0 {
		msg = fmt.Sprintf("%s (last stderr: %s)", msg, stderr[len(stderr)-1])
	}
	return &AgentError{
		Code:     CodePeerExited,
		Message:  msg,
		ExitCode: code,
	}
}

// MalformedFrame reports an inbound line that failed to parse as JSON.
func MalformedFrame(rawLine string, err error) *AgentError {
	return &AgentError{
		Code:    CodeMalformedFrame,
		Message: "inbound line is not valid JSON",
		RawLine: rawLine,
		Err:     err,
	}
}

// ProtocolViolation reports well-formed JSON that breaks the protocol contract.
func ProtocolViolation(detail string) *AgentError {
	return &AgentError{
		Code:    CodeProtocolViolation,
		Message: detail,
	}
}

// ControlTimeout reports an outbound control request that missed its deadline.
func ControlTimeout(requestID string) *AgentError {
	return &AgentError{
		Code:      CodeControlTimeout,
		Message:   fmt.Sprintf("control request %s timed out", requestID),
		RequestID: requestID,
	}
}

// HandlerFailure wraps a panic or error from a user-supplied handler.
// It never propagates out of the session; dispatchers convert it into a
// deny or error control response.
func HandlerFailure(err error) *AgentError {
	return &AgentError{
		Code:    CodeHandlerFailure,
		Message: "handler failed",
		Err:     err,
	}
}

// Cancelled reports that the operation was cancelled by the caller.
func Cancelled(op string) *AgentError {
	return &AgentError{
		Code:    CodeCancelled,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NotWritable reports a write after the outbound stream was closed.
func NotWritable() *AgentError {
	return &AgentError{
		Code:    CodeNotWritable,
		Message: "outbound stream is closed",
	}
}

// InvalidState reports API misuse such as send-after-close.
func InvalidState(detail string) *AgentError {
	return &AgentError{
		Code:    CodeInvalidState,
		Message: detail,
	}
}

// CodeOf returns the error code of err, or "" if err is not an AgentError.
func CodeOf(err error) string {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Code
	}
	return ""
}

// IsCancelled checks if the error is a cancellation.
func IsCancelled(err error) bool {
	return CodeOf(err) == CodeCancelled
}

// IsControlTimeout checks if the error is a control request timeout.
func IsControlTimeout(err error) bool {
	return CodeOf(err) == CodeControlTimeout
}

// IsPeerExited checks if the error reports a nonzero child exit.
func IsPeerExited(err error) bool {
	return CodeOf(err) == CodePeerExited
}

// IsMalformedFrame checks if the error reports an unparseable inbound line.
func IsMalformedFrame(err error) bool {
	return CodeOf(err) == CodeMalformedFrame
}

// IsInvalidState checks if the error reports API misuse.
func IsInvalidState(err error) bool {
	return CodeOf(err) == CodeInvalidState
}
