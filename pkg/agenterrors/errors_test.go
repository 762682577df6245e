package agenterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentErrorUnwrap(t *testing.T) {
	cause := errors.New("exec: \"claude\": executable file not found in $PATH")
	err := ExecutableNotFound("claude", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeExecutableNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "claude")
}

func TestCodeOfWrapped(t *testing.T) {
	inner := ControlTimeout("req_3_abc")
	outer := fmt.Errorf("interrupt: %w", inner)

	assert.Equal(t, CodeControlTimeout, CodeOf(outer))
	assert.True(t, IsControlTimeout(outer))

	var agentErr *AgentError
	require.True(t, errors.As(outer, &agentErr))
	assert.Equal(t, "req_3_abc", agentErr.RequestID)
}

func TestPeerExitedCarriesExitCode(t *testing.T) {
	err := PeerExited(2, []string{"boot failed", "fatal: bad flag"})

	assert.True(t, IsPeerExited(err))
	assert.Equal(t, 2, err.ExitCode)
	assert.Contains(t, err.Message, "fatal: bad flag")
}

func TestMalformedFramePreservesRawLine(t *testing.T) {
	err := MalformedFrame("{not json", errors.New("invalid character 'n'"))

	assert.True(t, IsMalformedFrame(err))
	assert.Equal(t, "{not json", err.RawLine)
}

func TestCodeOfNonAgentError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.False(t, IsCancelled(nil))
}
