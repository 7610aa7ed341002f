package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultConnectTimeout   = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultReconnectWait    = 100 * time.Millisecond
	DefaultExecutionWait    = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPollInterval     = 50 * time.Millisecond
	DefaultDrainTimeout     = 250 * time.Millisecond
	DefaultEventWindow      = 5 * time.Second
	DefaultStagger          = 100 * time.Millisecond
	DefaultTrials           = 5
	DefaultConcurrency      = 5
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultDBMaxConns       = 10
	DefaultDBMinConns       = 2
	DefaultRecBatchSize     = 100
	DefaultRecFlushInterval = time.Second
	DefaultRecBufferSize    = 1000
)

func (c *HarnessConfig) applyDefaults() {
	// Target defaults
	if c.Target.ConnectTimeout == 0 {
		c.Target.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Target.MaxRetries == 0 {
		c.Target.MaxRetries = DefaultMaxRetries
	}
	if c.Target.ReconnectWait == 0 {
		c.Target.ReconnectWait = DefaultReconnectWait
	}
	if c.Target.ExecutionWait == 0 {
		c.Target.ExecutionWait = DefaultExecutionWait
	}

	// Client defaults
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = DefaultWriteTimeout
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = DefaultPollInterval
	}
	if c.Client.DrainTimeout == 0 {
		c.Client.DrainTimeout = DefaultDrainTimeout
	}

	// Race defaults
	if c.Race.EventWindow == 0 {
		c.Race.EventWindow = DefaultEventWindow
	}
	if c.Race.Stagger == 0 {
		c.Race.Stagger = DefaultStagger
	}
	if c.Race.Trials == 0 {
		c.Race.Trials = DefaultTrials
	}
	if c.Race.Concurrency == 0 {
		c.Race.Concurrency = DefaultConcurrency
	}

	// Recorder defaults
	applyDBDefaults(&c.Recorder.Postgres)
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultRecBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultRecFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultRecBufferSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultDBMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultDBMinConns
	}
}
