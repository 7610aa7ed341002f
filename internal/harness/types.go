package harness

import (
	"time"

	"github.com/rickgao/pushprobe/internal/client"
)

// Config configures a harness session.
type Config struct {
	URL               string        // Push-channel endpoint (ws:// or wss://)
	Client            client.Config // Template for created clients; URL is overridden
	ReconnectWait     time.Duration // Pause between disconnect and reconnect in a resilience cycle
	ReconnectMaxWait  time.Duration // Backoff ceiling for retried reconnects
	ReconnectAttempts int           // Dial attempts per reconnect before the cycle counts as failed
	ExecutionTimeout  time.Duration // Window for one simulated agent execution
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Client:            client.DefaultConfig(),
		ReconnectWait:     100 * time.Millisecond,
		ReconnectMaxWait:  time.Second,
		ReconnectAttempts: 3,
		ExecutionTimeout:  10 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ReconnectWait == 0 {
		c.ReconnectWait = def.ReconnectWait
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = def.ReconnectMaxWait
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = def.ReconnectAttempts
	}
	if c.ExecutionTimeout == 0 {
		c.ExecutionTimeout = def.ExecutionTimeout
	}
}

// ExecutionSummary reports one simulated agent execution.
type ExecutionSummary struct {
	ExecutionID    string
	ThreadID       string
	Duration       time.Duration
	EventsReceived int
	Success        bool
	Err            error // Set when Success is false; never panics out
}

// PerfSummary aggregates a throughput run.
type PerfSummary struct {
	ClientCount           int
	ConnectedClients      int
	TotalMessagesSent     int64
	SendFailures          int64
	Duration              time.Duration
	MessagesPerSecond     float64
	AvgLatency            time.Duration
	MaxLatency            time.Duration
	ConnectionSuccessRate float64 // connected / client_count, in [0,1]
}

// ResilienceSummary aggregates forced disconnect/reconnect cycles.
type ResilienceSummary struct {
	Cycles               int
	SuccessfulReconnects int
	FailedReconnects     int
	AvgReconnectTime     time.Duration
}

// IsolationViolation records a foreign user's envelope in a client's log.
type IsolationViolation struct {
	ClientID      string
	ClientUserID  string
	ForeignUserID string
	MessageID     string
}
