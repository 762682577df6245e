// Package main implements a mock agent binary that speaks the stream-json
// protocol over stdin/stdout. Point the SDK at it with Options.CLIPath to
// exercise sessions, hooks and permission flows without a real agent.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kandev/agentsdk/pkg/streamjson"
)

func main() {
	model := parseFlag(os.Args, "--model", "mock-default")
	oneShot, prompt := parsePrint(os.Args)

	agent := newMockAgent(os.Stdout, model)

	if oneShot {
		agent.runTurn(nil, prompt)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := streamjson.Decode(line)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case *streamjson.ControlRequest:
			agent.handleControlRequest(m)
		case *streamjson.UserMessage:
			agent.runTurn(scanner, promptText(m))
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "mock-agent: scanner error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlag extracts a "--name value" or "--name=value" argument.
func parseFlag(args []string, name, fallback string) string {
	for i, arg := range args[1:] {
		if arg == name && i+1 < len(args)-1 {
			return args[i+2]
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"=")
		}
	}
	return fallback
}

// parsePrint reports whether --print was given, and the prompt riding with it.
func parsePrint(args []string) (bool, string) {
	for i, arg := range args[1:] {
		if arg == "--print" {
			if i+1 < len(args)-1 {
				return true, args[i+2]
			}
			return true, ""
		}
	}
	return false, ""
}

// promptText extracts the prompt string from a user frame. Content is either
// a JSON string or a content-block array; only the string form is produced
// by the SDK's Send.
func promptText(m *streamjson.UserMessage) string {
	raw := m.Message.Content
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
