package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrProtocol = errors.New("protocol error")

// Command names a message type on the daemon socket.
type Command string

const (
	CmdBuild    Command = "build"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"

	CmdOK    Command = "ok"
	CmdError Command = "error"
)

// Frames every message: a command plus an optional payload.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into a JSON envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return data, nil
}

// Parses a JSON envelope, returning it together with its raw payload.
func Decode(line []byte) (Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if env.Command == "" {
		return Envelope{}, nil, fmt.Errorf("%w: missing command", ErrProtocol)
	}
	return env, env.Payload, nil
}

// Unmarshals a raw payload into a typed value.
func DecodePayload[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrProtocol)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return &v, nil
}

// Carries one pipeline invocation: the manifest to execute, parameter
// overrides, the source tree, and where to put the deliverable.
type BuildRequest struct {
	Manifest  string            `json:"manifest"`
	Overrides map[string]string `json:"overrides,omitempty"`
	Source    string            `json:"source"`
	Name      string            `json:"name"`
	Output    string            `json:"output"`
}

// Reported after a successful build.
type BuildResult struct {
	Output string `json:"output"` // Directory containing the deliverable.
}

// Reported when a command fails.
type ErrorResult struct {
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`  // Stage that failed, when known.
	Reason  string `json:"reason,omitempty"` // Pipeline reason code, when known.
}

// Reported for a status command.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"`
}
