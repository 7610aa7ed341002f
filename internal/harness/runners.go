package harness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/event"
)

// TestAgentEventFlow clears the client's received log, waits for every
// expected kind, then checks the observed relative order against the
// requested order. An order mismatch is recorded as a warning, not a
// failure.
func (h *Harness) TestAgentEventFlow(c *client.Client, expected []event.Kind, timeout time.Duration) (map[event.Kind][]event.Envelope, error) {
	c.ClearReceived()

	flow, err := c.WaitForMany(expected, timeout)
	if err != nil {
		return nil, err
	}

	if !orderMatches(c.Received(), expected) {
		msg := fmt.Sprintf("event order differs from expected %v for user %s", expected, c.UserID())
		h.logger.Warn("agent event flow order mismatch", "user_id", c.UserID(), "expected", expected)
		h.metrics.RecordWarning(msg)
	}

	return flow, nil
}

// orderMatches reports whether the first occurrences of the expected kinds
// appear in the received log in the expected relative order.
func orderMatches(received []event.Envelope, expected []event.Kind) bool {
	first := make(map[event.Kind]int, len(expected))
	for i, env := range received {
		if _, seen := first[env.Type]; !seen {
			first[env.Type] = i
		}
	}

	last := -1
	for _, k := range expected {
		idx, ok := first[k]
		if !ok || idx < last {
			return false
		}
		last = idx
	}
	return true
}

// SimulateAgentExecution sends a synthetic request message and waits for
// the critical event sequence. A timeout produces Success=false with the
// error attached; it never panics out.
func (h *Harness) SimulateAgentExecution(c *client.Client, requestText string) ExecutionSummary {
	summary := ExecutionSummary{
		ExecutionID: uuid.NewString(),
		ThreadID:    uuid.NewString(),
	}

	start := time.Now()

	_, err := c.SendOnThread(event.MessageCreated, map[string]any{
		"text":         requestText,
		"execution_id": summary.ExecutionID,
	}, summary.ThreadID)
	if err != nil {
		summary.Duration = time.Since(start)
		summary.Err = fmt.Errorf("send request: %w", err)
		return summary
	}

	_, err = h.TestAgentEventFlow(c, event.CriticalSequence, h.cfg.ExecutionTimeout)
	summary.Duration = time.Since(start)
	summary.EventsReceived = len(c.Received())
	if err != nil {
		summary.Err = err
		return summary
	}

	summary.Success = true
	return summary
}

// RunPerformanceTest connects clientCount clients and sends
// messagesPerClient pings from each concurrently, within budget.
func (h *Harness) RunPerformanceTest(ctx context.Context, clientCount, messagesPerClient int, budget time.Duration) PerfSummary {
	runCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	clients := h.CreateMultiUserClients(runCtx, clientCount)
	defer func() {
		for _, c := range clients {
			c.Disconnect()
		}
	}()

	connected := 0
	for _, c := range clients {
		if c.IsConnected() {
			connected++
		}
	}

	var sent, failures atomic.Int64
	var totalLatency, maxLatency atomic.Int64

	start := time.Now()

	// Wait-for-all fan-out: every send task finishes or is counted as a
	// failure before the batch completes.
	var g errgroup.Group
	for _, c := range clients {
		if !c.IsConnected() {
			continue
		}
		c := c
		g.Go(func() error {
			for i := 0; i < messagesPerClient; i++ {
				if runCtx.Err() != nil {
					failures.Add(1)
					continue
				}

				sendStart := time.Now()
				if _, err := c.Send(event.Ping, nil); err != nil {
					failures.Add(1)
					continue
				}
				latency := time.Since(sendStart)

				sent.Add(1)
				totalLatency.Add(int64(latency))
				for {
					prev := maxLatency.Load()
					if int64(latency) <= prev || maxLatency.CompareAndSwap(prev, int64(latency)) {
						break
					}
				}
				h.metrics.RecordLatency(latency)
			}
			return nil
		})
	}
	g.Wait()

	duration := time.Since(start)

	summary := PerfSummary{
		ClientCount:       clientCount,
		ConnectedClients:  connected,
		TotalMessagesSent: sent.Load(),
		SendFailures:      failures.Load(),
		Duration:          duration,
		MaxLatency:        time.Duration(maxLatency.Load()),
	}
	if clientCount > 0 {
		summary.ConnectionSuccessRate = float64(connected) / float64(clientCount)
	}
	if sent.Load() > 0 {
		summary.AvgLatency = time.Duration(totalLatency.Load() / sent.Load())
		summary.MessagesPerSecond = float64(sent.Load()) / duration.Seconds()
	}

	h.logger.Info("performance test complete",
		"clients", clientCount,
		"connected", connected,
		"sent", summary.TotalMessagesSent,
		"failures", summary.SendFailures,
		"msgs_per_sec", summary.MessagesPerSecond,
	)

	return summary
}

// TestConnectionResilience repeats disconnect/wait/reconnect cycles.
// Each reconnect retries with exponential backoff up to the configured
// attempt budget; a still-failing reconnect increments the failure
// counter and the loop continues.
func (h *Harness) TestConnectionResilience(ctx context.Context, c *client.Client, cycles int) ResilienceSummary {
	summary := ResilienceSummary{Cycles: cycles}
	var totalReconnect time.Duration

	for i := 0; i < cycles; i++ {
		c.Disconnect()

		select {
		case <-ctx.Done():
			summary.FailedReconnects = cycles - summary.SuccessfulReconnects
			return summary
		case <-time.After(h.cfg.ReconnectWait):
		}

		start := time.Now()
		if err := c.ConnectWithRetry(ctx, h.cfg.ReconnectWait, h.cfg.ReconnectMaxWait, h.cfg.ReconnectAttempts); err != nil {
			h.logger.Warn("reconnect failed", "cycle", i+1, "error", err)
			summary.FailedReconnects++
			continue
		}

		summary.SuccessfulReconnects++
		totalReconnect += time.Since(start)
	}

	if summary.SuccessfulReconnects > 0 {
		summary.AvgReconnectTime = totalReconnect / time.Duration(summary.SuccessfulReconnects)
	}

	return summary
}

// VerifyIsolation scans every client's received log for envelopes tagged
// with another user's identity.
func (h *Harness) VerifyIsolation(clients []*client.Client) []IsolationViolation {
	var violations []IsolationViolation

	for _, c := range clients {
		for _, env := range c.Received() {
			if env.UserID != "" && env.UserID != c.UserID() {
				violations = append(violations, IsolationViolation{
					ClientID:      c.ID(),
					ClientUserID:  c.UserID(),
					ForeignUserID: env.UserID,
					MessageID:     env.MessageID,
				})
			}
		}
	}

	if len(violations) > 0 {
		h.metrics.RecordError(fmt.Sprintf("%d isolation violations detected", len(violations)))
	}

	return violations
}
