package streamjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentsdk/pkg/agenterrors"
)

func TestDecodeAssistantMessage(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hi!"}],"model":"m"},"session_id":"s1"}`

	msg, err := Decode([]byte(line))
	require.NoError(t, err)

	am, ok := msg.(*AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "m", am.Message.Model)
	require.Len(t, am.Message.Content, 1)
	assert.Equal(t, BlockText, am.Message.Content[0].Type)
	assert.Equal(t, "Hi!", am.Message.Content[0].Text)
}

func TestDecodeSystemInit(t *testing.T) {
	line := `{"type":"system","subtype":"init","session_id":"s1","model":"m","tools":["Bash","Write"],"mcp_servers":[{"name":"calc","status":"connected"}]}`

	msg, err := Decode([]byte(line))
	require.NoError(t, err)

	sm, ok := msg.(*SystemMessage)
	require.True(t, ok)
	assert.Equal(t, SystemInit, sm.Subtype)
	assert.Equal(t, "s1", sm.SessionID)
	assert.Equal(t, []string{"Bash", "Write"}, sm.Tools)
	require.Len(t, sm.MCPServers, 1)
	assert.Equal(t, "connected", sm.MCPServers[0].Status)
}

func TestDecodeResult(t *testing.T) {
	line := `{"type":"result","subtype":"success","is_error":false,"session_id":"s1","duration_ms":100,"duration_api_ms":80,"num_turns":1,"total_cost_usd":0.001}`

	msg, err := Decode([]byte(line))
	require.NoError(t, err)

	rm, ok := msg.(*ResultMessage)
	require.True(t, ok)
	assert.Equal(t, ResultSuccess, rm.Subtype)
	assert.False(t, rm.IsError)
	assert.Equal(t, int64(100), rm.DurationMS)
	require.NotNil(t, rm.TotalCostUSD)
	assert.InDelta(t, 0.001, *rm.TotalCostUSD, 1e-9)
}

func TestDecodeControlRequestHookCallback(t *testing.T) {
	line := `{"type":"control_request","request_id":"r1","request":{"subtype":"hook_callback","callback_id":"hook_0","input":{"hook_event_name":"PreToolUse","tool_name":"Write"}}}`

	msg, err := Decode([]byte(line))
	require.NoError(t, err)

	cr, ok := msg.(*ControlRequest)
	require.True(t, ok)
	assert.Equal(t, "r1", cr.RequestID)
	assert.Equal(t, SubtypeHookCallback, cr.Request.Subtype)
	assert.Equal(t, "hook_0", cr.Request.CallbackID)
	assert.Contains(t, string(cr.Request.Input), "PreToolUse")
}

func TestDecodeControlResponse(t *testing.T) {
	line := `{"type":"control_response","response":{"subtype":"success","request_id":"req_1_ab","response":{"commands":[]}}}`

	msg, err := Decode([]byte(line))
	require.NoError(t, err)

	resp, ok := msg.(*ControlResponse)
	require.True(t, ok)
	assert.Equal(t, ResponseSuccess, resp.Response.Subtype)
	assert.Equal(t, "req_1_ab", resp.Response.RequestID)
}

func TestDecodeMalformedLine(t *testing.T) {
	_, err := Decode([]byte(`{not json}`))
	require.Error(t, err)
	assert.True(t, agenterrors.IsMalformedFrame(err))

	var agentErr *agenterrors.AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, `{not json}`, agentErr.RawLine)
}

func TestDecodeUnknownFrameType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"telemetry","data":1}`))
	require.Error(t, err)

	var unknown *UnknownFrameError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "telemetry", unknown.FrameType)
}

func TestRoundTripFrames(t *testing.T) {
	lines := []string{
		`{"type":"user","message":{"role":"user","content":"Hello"},"session_id":"s1"}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}],"model":"m"}}`,
		`{"type":"system","subtype":"compact_boundary","compact_metadata":{"trigger":"auto","pre_tokens":9000,"post_tokens":1200}}`,
		`{"type":"result","subtype":"error","is_error":true,"session_id":"s1","duration_ms":5,"duration_api_ms":2,"num_turns":1,"result":"boom"}`,
		`{"type":"stream_event","uuid":"u1","session_id":"s1","event":{"type":"content_block_delta"}}`,
		`{"type":"control_request","request_id":"r9","request":{"subtype":"interrupt"}}`,
		`{"type":"control_response","response":{"subtype":"error","request_id":"r9","error":"nope"}}`,
		`{"type":"control_cancel_request","request_id":"r9"}`,
	}

	for _, line := range lines {
		msg, err := Decode([]byte(line))
		require.NoError(t, err, line)

		out, err := Encode(msg)
		require.NoError(t, err, line)

		var want, got map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &want))
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, want, got, line)
	}
}

func TestParsePermissionModeNormalises(t *testing.T) {
	mode, ok := ParsePermissionMode("bypasspermissions")
	require.True(t, ok)
	assert.Equal(t, PermissionBypassPermissions, mode)

	_, ok = ParsePermissionMode("erratic")
	assert.False(t, ok)
}

func TestEnumRoundTrips(t *testing.T) {
	for _, m := range permissionModes {
		parsed, ok := ParsePermissionMode(m.String())
		require.True(t, ok, m)
		assert.Equal(t, m, parsed)
	}
	for _, e := range hookEvents {
		parsed, ok := ParseHookEvent(e.String())
		require.True(t, ok, e)
		assert.Equal(t, e, parsed)
	}
}
