package metrics

import (
	"sync"
	"time"
)

// Collector accumulates counters and timers for one harness session.
// All methods are safe for concurrent use and never return errors.
type Collector struct {
	mu sync.Mutex

	connectionAttempts  int64
	connectionSuccesses int64
	totalConnectTime    time.Duration

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64

	eventCounts map[string]int64

	errors   []string
	warnings []string

	latencyObservations int64
	avgLatency          time.Duration
	maxLatency          time.Duration
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		eventCounts: make(map[string]int64),
	}
}

// RecordConnection records one connection attempt and, on success, its
// connect latency.
func (c *Collector) RecordConnection(success bool, connectTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connectionAttempts++
	if success {
		c.connectionSuccesses++
		c.totalConnectTime += connectTime
	}
}

// RecordSent records one outbound message.
func (c *Collector) RecordSent(kind string, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesSent++
	c.bytesSent += int64(bytes)
	c.eventCounts[kind]++
}

// RecordReceived records one inbound message.
func (c *Collector) RecordReceived(kind string, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesReceived++
	c.bytesReceived += int64(bytes)
	c.eventCounts[kind]++
}

// RecordLatency folds one latency observation into the running average
// and max. Running average: avg' = (avg*(n-1) + x) / n.
func (c *Collector) RecordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencyObservations++
	n := c.latencyObservations
	c.avgLatency = time.Duration((int64(c.avgLatency)*(n-1) + int64(d)) / n)
	if d > c.maxLatency {
		c.maxLatency = d
	}
}

// RecordError appends to the session error list.
func (c *Collector) RecordError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

// RecordWarning appends to the session warning list. Non-fatal findings
// (e.g. event order mismatches) land here rather than failing a run.
func (c *Collector) RecordWarning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, msg)
}

// Snapshot is an immutable view of collector state at one instant.
type Snapshot struct {
	ConnectionAttempts  int64
	ConnectionSuccesses int64
	TotalConnectTime    time.Duration

	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64

	EventCounts map[string]int64

	Errors   []string
	Warnings []string

	LatencyObservations int64
	AvgLatency          time.Duration
	MaxLatency          time.Duration
}

// Snapshot returns a deep copy of the current state. Mutating the returned
// value has no effect on the collector.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int64, len(c.eventCounts))
	for k, v := range c.eventCounts {
		counts[k] = v
	}

	return Snapshot{
		ConnectionAttempts:  c.connectionAttempts,
		ConnectionSuccesses: c.connectionSuccesses,
		TotalConnectTime:    c.totalConnectTime,
		MessagesSent:        c.messagesSent,
		MessagesReceived:    c.messagesReceived,
		BytesSent:           c.bytesSent,
		BytesReceived:       c.bytesReceived,
		EventCounts:         counts,
		Errors:              append([]string(nil), c.errors...),
		Warnings:            append([]string(nil), c.warnings...),
		LatencyObservations: c.latencyObservations,
		AvgLatency:          c.avgLatency,
		MaxLatency:          c.maxLatency,
	}
}
