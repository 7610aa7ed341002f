package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of a push-channel message.
type Kind string

const (
	AgentStarted     Kind = "agent_started"
	AgentThinking    Kind = "agent_thinking"
	AgentCompleted   Kind = "agent_completed"
	ToolExecuting    Kind = "tool_executing"
	ToolCompleted    Kind = "tool_completed"
	StatusUpdate     Kind = "status_update"
	Error            Kind = "error"
	Ping             Kind = "ping"
	Pong             Kind = "pong"
	ThreadUpdate     Kind = "thread_update"
	MessageCreated   Kind = "message_created"
	UserConnected    Kind = "user_connected"
	UserDisconnected Kind = "user_disconnected"
)

// CriticalSequence is the ordered kind set a conformant backend must emit,
// in this relative order, for one logical agent execution.
var CriticalSequence = []Kind{
	AgentStarted,
	AgentThinking,
	ToolExecuting,
	ToolCompleted,
	AgentCompleted,
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case AgentStarted, AgentThinking, AgentCompleted,
		ToolExecuting, ToolCompleted,
		StatusUpdate, Error, Ping, Pong,
		ThreadUpdate, MessageCreated, UserConnected, UserDisconnected:
		return true
	}
	return false
}

// Envelope is the structured unit of push-channel communication.
type Envelope struct {
	Type      Kind           `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	MessageID string         `json:"message_id"`
	UserID    string         `json:"user_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
}

// New builds an Envelope with a fresh unique message id and the current
// UTC timestamp.
func New(kind Kind, data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UTC(),
		MessageID: uuid.NewString(),
	}
}

// DecodeError reports a malformed or unrecognized inbound payload. It is
// always recoverable: callers skip the message and keep listening.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode envelope: %s: %v", e.Reason, e.Err)
	}
	return "decode envelope: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes an Envelope to its JSON wire form.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses JSON wire bytes into an Envelope. Round-trips exactly with
// Encode. Fails with *DecodeError on malformed JSON or an unknown kind.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed payload", Err: err}
	}
	if !env.Type.Valid() {
		return Envelope{}, &DecodeError{Reason: fmt.Sprintf("unknown kind %q", env.Type)}
	}
	return env, nil
}

// Equal compares two envelopes field by field. Timestamps compare by
// instant, so a decoded envelope equals the one that was encoded.
func Equal(a, b Envelope) bool {
	if a.Type != b.Type ||
		a.MessageID != b.MessageID ||
		a.UserID != b.UserID ||
		a.ThreadID != b.ThreadID ||
		!a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for k, v := range a.Data {
		if fmt.Sprint(b.Data[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
