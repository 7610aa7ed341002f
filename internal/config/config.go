package config

import "time"

// HarnessConfig is the root configuration for one harness session.
type HarnessConfig struct {
	Session  SessionConfig  `yaml:"session"`
	Target   TargetConfig   `yaml:"target"`
	Client   ClientConfig   `yaml:"client"`
	Race     RaceConfig     `yaml:"race"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// SessionConfig identifies a harness session.
type SessionConfig struct {
	ID string `yaml:"id"` // Empty means generate one at startup
}

// TargetConfig describes the backend under test.
type TargetConfig struct {
	WSURL          string        `yaml:"ws_url"`           // Push-channel endpoint (ws:// or wss://)
	AuthURL        string        `yaml:"auth_url"`         // Token issuer base URL (empty = synthetic tokens)
	Token          string        `yaml:"token"`            // Pre-issued bearer token (overrides auth_url)
	ConnectTimeout time.Duration `yaml:"connect_timeout"`  // Handshake deadline
	MaxRetries     int           `yaml:"max_retries"`      // Token issuer retries
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`   // Pause inside a resilience cycle
	ExecutionWait  time.Duration `yaml:"execution_window"` // Window for one agent execution
}

// ClientConfig holds per-connection settings.
type ClientConfig struct {
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // 0 disables the heartbeat
	PollInterval      time.Duration `yaml:"poll_interval"`
	DrainTimeout      time.Duration `yaml:"drain_timeout"` // In-flight message drain window on disconnect
}

// RaceConfig holds race-detection settings.
type RaceConfig struct {
	EventWindow       time.Duration `yaml:"event_window"` // Post-probe collection window
	Stagger           time.Duration `yaml:"stagger"`      // Delay between concurrent launches
	Trials            int           `yaml:"trials"`       // Attempts per profile
	Concurrency       int           `yaml:"concurrency"`  // Connections per concurrent run
	SimulateAuthDelay bool          `yaml:"simulate_auth_delay"`
}

// RecorderConfig holds the optional Postgres outcome sink.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
