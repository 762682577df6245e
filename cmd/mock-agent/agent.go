package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kandev/agentsdk/pkg/streamjson"
)

// mockAgent emits scripted turns on stdout. Each process serves one session;
// the PID keeps session IDs unique across parallel runs.
type mockAgent struct {
	mu        sync.Mutex
	out       io.Writer
	model     string
	sessionID string
	turns     int
}

func newMockAgent(out io.Writer, model string) *mockAgent {
	return &mockAgent{
		out:       out,
		model:     model,
		sessionID: fmt.Sprintf("mock-session-%d", os.Getpid()),
	}
}

func (a *mockAgent) emit(msg streamjson.Message) {
	line, err := streamjson.Encode(msg)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.out.Write(append(line, '\n'))
}

// handleControlRequest acknowledges SDK-initiated control requests.
func (a *mockAgent) handleControlRequest(req *streamjson.ControlRequest) {
	switch req.Request.Subtype {
	case streamjson.SubtypeSupportedModels:
		a.respond(req.RequestID, map[string]any{
			"models": []string{"mock-default", "mock-fast", "mock-slow"},
		})
	case streamjson.SubtypeSupportedCommands:
		a.respond(req.RequestID, map[string]any{
			"commands": []map[string]string{
				{"name": "error", "description": "Simulate an error result"},
				{"name": "thinking", "description": "Extended thinking blocks"},
				{"name": "edit", "description": "File edit gated by a permission query"},
			},
		})
	default:
		// initialize, interrupt, set_model and the rest just need an ack.
		a.respond(req.RequestID, map[string]any{})
	}
}

// requestPermission asks the SDK whether a tool may run and blocks on the
// reply. The scanner is the shared stdin reader; the main loop is parked in
// runTurn while this waits. A nil scanner (one-shot mode) allows everything.
func (a *mockAgent) requestPermission(scanner *bufio.Scanner, toolName string, input map[string]any) bool {
	if scanner == nil {
		return true
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return false
	}
	requestID := fmt.Sprintf("mock-perm-%d", time.Now().UnixNano())
	a.emit(streamjson.NewControlRequest(requestID, streamjson.ControlRequestBody{
		Subtype:  streamjson.SubtypeCanUseTool,
		ToolName: toolName,
		Input:    raw,
	}))

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := streamjson.Decode(line)
		if err != nil {
			continue
		}
		resp, ok := msg.(*streamjson.ControlResponse)
		if !ok || resp.Response.RequestID != requestID {
			continue
		}
		if resp.Response.Subtype != streamjson.ResponseSuccess {
			return false
		}
		var decision struct {
			Behavior string `json:"behavior"`
		}
		if err := json.Unmarshal(resp.Response.Response, &decision); err != nil {
			return false
		}
		return decision.Behavior == "allow"
	}
	return false
}

func (a *mockAgent) respond(requestID string, payload any) {
	resp, err := streamjson.NewSuccessResponse(requestID, payload)
	if err != nil {
		return
	}
	a.emit(resp)
}

// runTurn plays a scripted exchange for one prompt. Prompts starting with
// "/" select a scenario; anything else gets the default text response.
func (a *mockAgent) runTurn(scanner *bufio.Scanner, prompt string) {
	a.turns++
	a.emitInit()

	prompt = strings.TrimSpace(prompt)
	switch {
	case strings.EqualFold(prompt, "/error"):
		a.emitText("Simulating a failure...")
		a.emitResult(streamjson.ResultError, true, "mock error: something went wrong")
		return
	case strings.EqualFold(prompt, "/thinking"):
		a.emitThinking("Let me reason about this step by step...")
		a.emitThinking("The key constraint is ordering; a channel-based design fits.")
		a.emitText("After careful reasoning the approach is sound.")
	case strings.EqualFold(prompt, "/edit"):
		input := map[string]any{
			"file_path":  "/tmp/demo.go",
			"old_string": "foo",
			"new_string": "bar",
		}
		if a.requestPermission(scanner, "Edit", input) {
			a.emitToolUse("Edit", input)
			a.emitText("Edit applied.")
		} else {
			a.emitText("Edit was not permitted; leaving the file untouched.")
		}
	default:
		a.emitText("Mock response to: " + prompt)
	}

	a.emitResult(streamjson.ResultSuccess, false, "")
}

func (a *mockAgent) emitInit() {
	a.emit(&streamjson.SystemMessage{
		Type:      streamjson.FrameSystem,
		Subtype:   streamjson.SystemInit,
		SessionID: a.sessionID,
		Model:     a.model,
		Tools:     []string{"Bash", "Read", "Edit", "Grep", "Glob"},
		CWD:       mustGetwd(),
	})
}

func (a *mockAgent) emitText(text string) {
	a.emitBlocks(streamjson.ContentBlock{Type: streamjson.BlockText, Text: text})
}

func (a *mockAgent) emitThinking(thought string) {
	a.emitBlocks(streamjson.ContentBlock{Type: streamjson.BlockThinking, Thinking: thought})
}

func (a *mockAgent) emitToolUse(name string, input map[string]any) {
	raw, err := json.Marshal(input)
	if err != nil {
		return
	}
	a.emitBlocks(streamjson.ContentBlock{
		Type:  streamjson.BlockToolUse,
		ID:    fmt.Sprintf("toolu_mock_%d", time.Now().UnixNano()),
		Name:  name,
		Input: raw,
	})
}

func (a *mockAgent) emitBlocks(blocks ...streamjson.ContentBlock) {
	a.emit(&streamjson.AssistantMessage{
		Type:      streamjson.FrameAssistant,
		SessionID: a.sessionID,
		Message: streamjson.AssistantMessageBody{
			Content: blocks,
			Model:   a.model,
		},
	})
}

func (a *mockAgent) emitResult(subtype string, isError bool, errText string) {
	cost := 0.0042
	a.emit(&streamjson.ResultMessage{
		Type:          streamjson.FrameResult,
		Subtype:       subtype,
		IsError:       isError,
		SessionID:     a.sessionID,
		DurationMS:    1500,
		DurationAPIMS: 1200,
		NumTurns:      a.turns,
		TotalCostUSD:  &cost,
		Result:        errText,
	})
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
