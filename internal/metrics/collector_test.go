package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_RunningAverage(t *testing.T) {
	c := NewCollector()

	c.RecordLatency(100 * time.Millisecond)
	c.RecordLatency(200 * time.Millisecond)
	c.RecordLatency(300 * time.Millisecond)

	snap := c.Snapshot()
	if snap.AvgLatency != 200*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 200ms", snap.AvgLatency)
	}
	if snap.MaxLatency != 300*time.Millisecond {
		t.Errorf("MaxLatency = %v, want 300ms", snap.MaxLatency)
	}
	if snap.LatencyObservations != 3 {
		t.Errorf("LatencyObservations = %d, want 3", snap.LatencyObservations)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.RecordConnection(true, 50*time.Millisecond)
	c.RecordConnection(false, 0)
	c.RecordSent("ping", 20)
	c.RecordSent("ping", 20)
	c.RecordReceived("pong", 22)
	c.RecordError("boom")
	c.RecordWarning("order mismatch")

	snap := c.Snapshot()
	if snap.ConnectionAttempts != 2 || snap.ConnectionSuccesses != 1 {
		t.Errorf("attempts/successes = %d/%d, want 2/1",
			snap.ConnectionAttempts, snap.ConnectionSuccesses)
	}
	if snap.MessagesSent != 2 || snap.MessagesReceived != 1 {
		t.Errorf("sent/received = %d/%d, want 2/1",
			snap.MessagesSent, snap.MessagesReceived)
	}
	if snap.BytesSent != 40 || snap.BytesReceived != 22 {
		t.Errorf("bytes sent/received = %d/%d, want 40/22",
			snap.BytesSent, snap.BytesReceived)
	}
	if snap.EventCounts["ping"] != 2 || snap.EventCounts["pong"] != 1 {
		t.Errorf("event counts = %v", snap.EventCounts)
	}
	if len(snap.Errors) != 1 || len(snap.Warnings) != 1 {
		t.Errorf("errors/warnings = %d/%d, want 1/1", len(snap.Errors), len(snap.Warnings))
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector()
	c.RecordSent("ping", 10)

	snap := c.Snapshot()
	snap.EventCounts["ping"] = 999
	snap.Errors = append(snap.Errors, "injected")

	fresh := c.Snapshot()
	if fresh.EventCounts["ping"] != 1 {
		t.Errorf("collector state mutated through snapshot: %v", fresh.EventCounts)
	}
	if len(fresh.Errors) != 0 {
		t.Errorf("collector errors mutated through snapshot: %v", fresh.Errors)
	}
}

func TestCollector_ConcurrentUse(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordSent("ping", 1)
				c.RecordLatency(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.MessagesSent != 1000 {
		t.Errorf("MessagesSent = %d, want 1000", snap.MessagesSent)
	}
	if snap.LatencyObservations != 1000 {
		t.Errorf("LatencyObservations = %d, want 1000", snap.LatencyObservations)
	}
}
