package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentsdk/pkg/streamjson"
)

func decodeLines(t *testing.T, out *bytes.Buffer) []streamjson.Message {
	t.Helper()
	var msgs []streamjson.Message
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		msg, err := streamjson.Decode([]byte(line))
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestDefaultTurnShape(t *testing.T) {
	var out bytes.Buffer
	agent := newMockAgent(&out, "mock-default")

	agent.runTurn(nil, "hello")

	msgs := decodeLines(t, &out)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].MessageType())
	assert.Equal(t, "assistant", msgs[1].MessageType())
	assert.Equal(t, "result", msgs[2].MessageType())

	result := msgs[2].(*streamjson.ResultMessage)
	assert.Equal(t, streamjson.ResultSuccess, result.Subtype)
	assert.False(t, result.IsError)
}

func TestErrorScenario(t *testing.T) {
	var out bytes.Buffer
	agent := newMockAgent(&out, "mock-default")

	agent.runTurn(nil, "/error")

	msgs := decodeLines(t, &out)
	result := msgs[len(msgs)-1].(*streamjson.ResultMessage)
	assert.Equal(t, streamjson.ResultError, result.Subtype)
	assert.True(t, result.IsError)
}

func TestEditScenarioDenied(t *testing.T) {
	var out bytes.Buffer
	agent := newMockAgent(&out, "mock-default")

	// An empty reply stream means the permission request gets no answer,
	// which counts as a refusal.
	agent.runTurn(bufio.NewScanner(strings.NewReader("")), "/edit")

	msgs := decodeLines(t, &out)
	var sawToolUse bool
	var sawRefusal bool
	for _, msg := range msgs {
		am, ok := msg.(*streamjson.AssistantMessage)
		if !ok {
			continue
		}
		for _, block := range am.Message.Content {
			if block.Type == streamjson.BlockToolUse {
				sawToolUse = true
			}
			if strings.Contains(block.Text, "not permitted") {
				sawRefusal = true
			}
		}
	}
	assert.False(t, sawToolUse)
	assert.True(t, sawRefusal)
}

func TestInitializeAck(t *testing.T) {
	var out bytes.Buffer
	agent := newMockAgent(&out, "mock-default")

	agent.handleControlRequest(streamjson.NewControlRequest("req_1_abc", streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeInitialize,
	}))

	msgs := decodeLines(t, &out)
	require.Len(t, msgs, 1)
	resp := msgs[0].(*streamjson.ControlResponse)
	assert.Equal(t, "req_1_abc", resp.Response.RequestID)
	assert.Equal(t, streamjson.ResponseSuccess, resp.Response.Subtype)
}

func TestParseFlagForms(t *testing.T) {
	assert.Equal(t, "mock-fast", parseFlag([]string{"mock-agent", "--model", "mock-fast"}, "--model", "d"))
	assert.Equal(t, "mock-slow", parseFlag([]string{"mock-agent", "--model=mock-slow"}, "--model", "d"))
	assert.Equal(t, "d", parseFlag([]string{"mock-agent"}, "--model", "d"))
}

func TestParsePrint(t *testing.T) {
	oneShot, prompt := parsePrint([]string{"mock-agent", "--print", "Hello"})
	assert.True(t, oneShot)
	assert.Equal(t, "Hello", prompt)

	oneShot, _ = parsePrint([]string{"mock-agent", "--input-format", "stream-json"})
	assert.False(t, oneShot)
}
