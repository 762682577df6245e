package streamjson

import (
	"encoding/json"
	"fmt"

	"github.com/kandev/agentsdk/pkg/agenterrors"
)

// UnknownFrameError reports a well-formed frame whose type is outside the
// protocol vocabulary. The session logs and drops these rather than
// aborting the stream.
type UnknownFrameError struct {
	FrameType string
}

func (e *UnknownFrameError) Error() string {
	return fmt.Sprintf("unknown frame type %q", e.FrameType)
}

type frameEnvelope struct {
	Type string `json:"type"`
}

// Decode parses one wire line into its tagged frame. Invalid JSON returns
// MalformedFrame carrying the raw line; a missing or unrecognised type
// returns UnknownFrameError wrapped in ProtocolViolation semantics the
// caller can choose to drop.
func Decode(line []byte) (Message, error) {
	var env frameEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, agenterrors.MalformedFrame(string(line), err)
	}

	var msg Message
	switch env.Type {
	case FrameUser:
		msg = &UserMessage{}
	case FrameAssistant:
		msg = &AssistantMessage{}
	case FrameSystem:
		msg = &SystemMessage{}
	case FrameResult:
		msg = &ResultMessage{}
	case FrameStreamEvent:
		msg = &StreamEvent{}
	case FrameControlRequest:
		msg = &ControlRequest{}
	case FrameControlResponse:
		msg = &ControlResponse{}
	case FrameControlCancelRequest:
		msg = &ControlCancelRequest{}
	default:
		return nil, &UnknownFrameError{FrameType: env.Type}
	}

	if err := json.Unmarshal(line, msg); err != nil {
		return nil, agenterrors.MalformedFrame(string(line), err)
	}
	return msg, nil
}

// Encode serialises a frame to one wire line without the trailing newline.
func Encode(msg Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msg.MessageType(), err)
	}
	return b, nil
}
