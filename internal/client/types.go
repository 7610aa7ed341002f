package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/pushprobe/internal/event"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// State is the lifecycle state of a connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
)

// EventTimeoutError reports that awaited event kinds did not arrive in
// time. Missing lists exactly the kinds still absent.
type EventTimeoutError struct {
	Missing []event.Kind
	Timeout time.Duration
}

func (e *EventTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for events %v", e.Timeout, e.Missing)
}

// Handler is invoked synchronously from the receive loop for each inbound
// envelope of its registered kind.
type Handler func(event.Envelope)

// Config configures a push-channel client.
type Config struct {
	URL               string        // WebSocket URL (ws:// or wss://)
	ConnectTimeout    time.Duration // Handshake deadline
	WriteTimeout      time.Duration // Write deadline for sends
	HeartbeatInterval time.Duration // Ping envelope interval (0 = disabled)
	PollInterval      time.Duration // Wait primitive poll interval
	DrainTimeout      time.Duration // Max wait for in-flight messages during Disconnect
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    30 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 0,
		PollInterval:      50 * time.Millisecond,
		DrainTimeout:      250 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = def.PollInterval
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = def.DrainTimeout
	}
}
