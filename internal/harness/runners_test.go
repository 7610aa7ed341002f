package harness

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/pushprobe/internal/event"
)

func TestHarness_RunPerformanceTest(t *testing.T) {
	server := agentBackend(t)
	defer server.Close()

	h := newTestHarness(testWSURL(server))
	defer h.Cleanup()

	summary := h.RunPerformanceTest(context.Background(), 5, 10, 30*time.Second)

	if summary.TotalMessagesSent != 50 {
		t.Errorf("TotalMessagesSent = %d, want 50", summary.TotalMessagesSent)
	}
	if summary.ConnectionSuccessRate < 0 || summary.ConnectionSuccessRate > 1 {
		t.Errorf("ConnectionSuccessRate = %f, want value in [0,1]", summary.ConnectionSuccessRate)
	}
	if summary.ConnectedClients != 5 {
		t.Errorf("ConnectedClients = %d, want 5", summary.ConnectedClients)
	}
	if summary.MessagesPerSecond <= 0 {
		t.Errorf("MessagesPerSecond = %f, want > 0", summary.MessagesPerSecond)
	}
	if summary.AvgLatency > summary.MaxLatency {
		t.Errorf("AvgLatency %v exceeds MaxLatency %v", summary.AvgLatency, summary.MaxLatency)
	}
}

func TestHarness_ConnectionResilience(t *testing.T) {
	server := agentBackend(t)
	defer server.Close()

	h := newTestHarness(testWSURL(server))
	defer h.Cleanup()

	c := h.CreateAuthenticatedClient("user-1", "")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const cycles = 3
	summary := h.TestConnectionResilience(context.Background(), c, cycles)

	if summary.SuccessfulReconnects+summary.FailedReconnects != cycles {
		t.Errorf("reconnect accounting %d+%d != %d cycles",
			summary.SuccessfulReconnects, summary.FailedReconnects, cycles)
	}
	if summary.SuccessfulReconnects != cycles {
		t.Errorf("SuccessfulReconnects = %d, want %d", summary.SuccessfulReconnects, cycles)
	}
	if summary.AvgReconnectTime >= 5*time.Second {
		t.Errorf("AvgReconnectTime = %v, want < 5s", summary.AvgReconnectTime)
	}
}

func TestHarness_ConnectionResilience_FailuresCounted(t *testing.T) {
	server := agentBackend(t)

	h := newTestHarness(testWSURL(server))
	h.cfg.Client.ConnectTimeout = 200 * time.Millisecond
	defer h.Cleanup()

	c := h.CreateAuthenticatedClient("user-1", "")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Take the backend away: every reconnect must fail, none may abort.
	server.Close()

	const cycles = 2
	summary := h.TestConnectionResilience(context.Background(), c, cycles)

	if summary.SuccessfulReconnects+summary.FailedReconnects != cycles {
		t.Errorf("reconnect accounting %d+%d != %d cycles",
			summary.SuccessfulReconnects, summary.FailedReconnects, cycles)
	}
	if summary.FailedReconnects != cycles {
		t.Errorf("FailedReconnects = %d, want %d", summary.FailedReconnects, cycles)
	}
}

// Five concurrently created clients each execute one agent request; every
// client sees the five critical kinds exactly once and no client's log
// contains another client's user id.
func TestHarness_ConcurrentExecutionsStayIsolated(t *testing.T) {
	server := agentBackend(t)
	defer server.Close()

	h := newTestHarness(testWSURL(server))
	defer h.Cleanup()

	clients := h.CreateMultiUserClients(context.Background(), 5)
	for _, c := range clients {
		if !c.IsConnected() {
			t.Fatalf("client %s failed to connect", c.UserID())
		}
	}

	type result struct {
		userID  string
		summary ExecutionSummary
	}
	results := make(chan result, len(clients))
	for _, c := range clients {
		c := c
		go func() {
			results <- result{c.UserID(), h.SimulateAgentExecution(c, "run it")}
		}()
	}
	for range clients {
		r := <-results
		if !r.summary.Success {
			t.Errorf("execution for %s failed: %v", r.userID, r.summary.Err)
		}
	}

	for _, c := range clients {
		for _, kind := range event.CriticalSequence {
			if got := len(c.EventsByKind(kind)); got != 1 {
				t.Errorf("client %s received %d %s events, want 1", c.UserID(), got, kind)
			}
		}
	}

	if violations := h.VerifyIsolation(clients); len(violations) != 0 {
		t.Errorf("isolation violations: %+v", violations)
	}
}

func TestHarness_VerifyIsolation_DetectsForeignEvents(t *testing.T) {
	// A leaky backend that tags every event with somebody else's identity.
	server := leakyBackend(t, "user-b")
	defer server.Close()

	h := newTestHarness(testWSURL(server))
	defer h.Cleanup()

	c := h.CreateAuthenticatedClient("user-a", "")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := c.WaitFor(event.StatusUpdate, 2*time.Second); err != nil {
		t.Fatalf("WaitFor failed: %v", err)
	}

	violations := h.VerifyIsolation(h.Clients())
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].ForeignUserID != "user-b" || violations[0].ClientUserID != "user-a" {
		t.Errorf("violation = %+v", violations[0])
	}
}

func TestHarness_RunPerformanceTest_ZeroClients(t *testing.T) {
	h := newTestHarness("ws://127.0.0.1:1/ws")
	defer h.Cleanup()

	summary := h.RunPerformanceTest(context.Background(), 0, 5, time.Second)

	if summary.ConnectionSuccessRate != 0 {
		t.Errorf("ConnectionSuccessRate = %f, want 0", summary.ConnectionSuccessRate)
	}
	if summary.TotalMessagesSent != 0 {
		t.Errorf("TotalMessagesSent = %d, want 0", summary.TotalMessagesSent)
	}
	if summary.ClientCount != 0 {
		t.Errorf("ClientCount = %d, want 0", summary.ClientCount)
	}
}
