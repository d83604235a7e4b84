package protocol

import (
	"encoding/json"
	"fmt"
)

// A command name carried in an envelope.
type Command string

// Commands sent by the CLI and the responses returned by the daemon.
const (
	CmdBake            Command = "bake"
	CmdRun             Command = "run"
	CmdImageImport     Command = "image-import"
	CmdImageDestroy    Command = "image-destroy"
	CmdContainerStatus Command = "container-status"
	CmdContainerStop   Command = "container-stop"
	CmdStatus          Command = "status"
	CmdHistory         Command = "history"
	CmdShutdown        Command = "shutdown"

	CmdOK    Command = "ok"
	CmdError Command = "error"
)

// The outer JSON message exchanged over the daemon socket.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into an envelope.
//
// A nil payload produces an envelope with no payload field.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		env.Payload = data
	}

	return json.Marshal(env)
}

// Parses an envelope from raw bytes.
//
// Returns the envelope and its raw payload for subsequent decoding via
// [DecodePayload]. Trailing whitespace, including the newline delimiter,
// is tolerated.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Command == "" {
		return nil, nil, fmt.Errorf("decode envelope: missing command")
	}

	return &env, env.Payload, nil
}

// Parses a raw payload into a concrete payload type.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode payload: missing payload")
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return &v, nil
}
