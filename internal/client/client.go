package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/pushprobe/internal/auth"
	"github.com/rickgao/pushprobe/internal/event"
	"github.com/rickgao/pushprobe/internal/metrics"
)

// Client manages one authenticated push-channel connection.
type Client struct {
	id      string
	cfg     Config
	creds   auth.Credentials
	logger  *slog.Logger
	metrics *metrics.Collector

	// Write serialization
	writeMu sync.Mutex

	mu           sync.RWMutex
	state        State
	conn         *websocket.Conn
	sent         []event.Envelope
	received     []event.Envelope
	lastActivity time.Time
	handlers     map[event.Kind][]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an unconnected Client.
func New(cfg Config, creds auth.Credentials, collector *metrics.Collector, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	id := uuid.NewString()
	return &Client{
		id:       id,
		cfg:      cfg,
		creds:    creds,
		logger:   logger.With("client_id", id, "user_id", creds.UserID),
		metrics:  collector,
		state:    StateDisconnected,
		handlers: make(map[event.Kind][]Handler),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the identity this client connects as.
func (c *Client) UserID() string { return c.creds.UserID }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// LastActivity returns the time of the most recent send or receive.
func (c *Client) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Connect attaches identification headers and performs the handshake.
// On success the client transitions to Connected and starts the receive
// loop (and heartbeat, if enabled). On failure it returns to Disconnected
// and the error describes the failure. Connect records connect latency.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer dialCancel()

	start := time.Now()
	conn, resp, err := dialer.DialContext(dialCtx, c.cfg.URL, c.creds.Headers())
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.metrics.RecordConnection(false, 0)

		if dialCtx.Err() != nil {
			return fmt.Errorf("connection timeout after %v: %w", c.cfg.ConnectTimeout, err)
		}
		if resp != nil {
			return fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("connect %s: %w", c.cfg.URL, err)
	}

	connectTime := time.Since(start)

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.lastActivity = time.Now()
	c.cancel = cancel
	c.mu.Unlock()

	c.metrics.RecordConnection(true, connectTime)
	c.metrics.RecordLatency(connectTime)

	c.wg.Add(1)
	go c.receiveLoop(loopCtx, conn)

	if c.cfg.HeartbeatInterval > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop(loopCtx)
	}

	c.logger.Debug("connected", "url", c.cfg.URL, "connect_time", connectTime)
	return nil
}

// ConnectWithRetry dials with exponential backoff between failed
// attempts, starting at baseWait and doubling up to maxWait. It stops on
// success, context cancellation, or after maxAttempts failures.
func (c *Client) ConnectWithRetry(ctx context.Context, baseWait, maxWait time.Duration, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	wait := baseWait
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = c.Connect(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		c.logger.Debug("connect attempt failed",
			"attempt", attempt,
			"wait", wait,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}

	return fmt.Errorf("connect failed after %d attempts: %w", maxAttempts, lastErr)
}

// Disconnect cancels background goroutines, drains messages already in
// flight, waits for the loops to unwind, closes the transport and
// transitions to Disconnected. It is idempotent: calling it on a
// disconnected client is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected && c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.state = StateClosing
	}
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		// Bound the drain: the receive loop keeps appending frames that
		// were already on the wire until the close handshake completes
		// or this deadline expires.
		conn.SetReadDeadline(time.Now().Add(c.cfg.DrainTimeout))
	}

	// Disconnect is not complete until background goroutines have unwound.
	c.wg.Wait()

	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	c.logger.Debug("disconnected")
	return nil
}

// Send constructs an envelope with a fresh unique id, transmits it and
// appends it to the sent log. Fails with ErrNotConnected unless the client
// is Connected.
func (c *Client) Send(kind event.Kind, data map[string]any) (event.Envelope, error) {
	return c.SendOnThread(kind, data, "")
}

// SendOnThread is Send with an explicit thread id.
func (c *Client) SendOnThread(kind event.Kind, data map[string]any, threadID string) (event.Envelope, error) {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return event.Envelope{}, ErrNotConnected
	}

	env := event.New(kind, data)
	env.UserID = c.creds.UserID
	env.ThreadID = threadID

	payload, err := event.Encode(env)
	if err != nil {
		return event.Envelope{}, err
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return event.Envelope{}, fmt.Errorf("send %s: %w", kind, err)
	}

	c.mu.Lock()
	c.sent = append(c.sent, env)
	c.lastActivity = time.Now()
	c.mu.Unlock()

	c.metrics.RecordSent(string(kind), len(payload))
	return env, nil
}

// OnEvent registers a handler invoked synchronously from the receive loop
// for every inbound envelope of the given kind.
func (c *Client) OnEvent(kind event.Kind, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

// WaitFor returns the first received envelope of the given kind, checking
// the received log before blocking so an event that arrived earlier is
// never missed. Fails with *EventTimeoutError naming the kind.
func (c *Client) WaitFor(kind event.Kind, timeout time.Duration) (event.Envelope, error) {
	deadline := time.Now().Add(timeout)
	for {
		if env, ok := c.firstOfKind(kind); ok {
			return env, nil
		}
		if time.Now().After(deadline) {
			return event.Envelope{}, &EventTimeoutError{Missing: []event.Kind{kind}, Timeout: timeout}
		}
		time.Sleep(c.cfg.PollInterval)
	}
}

// WaitForAny returns the first envelope in the received log, waiting for
// one to arrive if the log is empty.
func (c *Client) WaitForAny(timeout time.Duration) (event.Envelope, error) {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.RLock()
		if len(c.received) > 0 {
			env := c.received[0]
			c.mu.RUnlock()
			return env, nil
		}
		c.mu.RUnlock()

		if time.Now().After(deadline) {
			return event.Envelope{}, &EventTimeoutError{Timeout: timeout}
		}
		time.Sleep(c.cfg.PollInterval)
	}
}

// WaitForMany waits until every requested kind has at least one received
// envelope or the aggregate timeout elapses. On timeout the error lists
// exactly the kinds still missing.
func (c *Client) WaitForMany(kinds []event.Kind, timeout time.Duration) (map[event.Kind][]event.Envelope, error) {
	deadline := time.Now().Add(timeout)
	for {
		missing := c.missingKinds(kinds)
		if len(missing) == 0 {
			result := make(map[event.Kind][]event.Envelope, len(kinds))
			for _, k := range kinds {
				result[k] = c.EventsByKind(k)
			}
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, &EventTimeoutError{Missing: missing, Timeout: timeout}
		}
		time.Sleep(c.cfg.PollInterval)
	}
}

// EventsByKind returns a copy of all received envelopes of one kind, in
// arrival order.
func (c *Client) EventsByKind(kind event.Kind) []event.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []event.Envelope
	for _, env := range c.received {
		if env.Type == kind {
			out = append(out, env)
		}
	}
	return out
}

// Received returns a copy of the full received log in arrival order.
func (c *Client) Received() []event.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]event.Envelope(nil), c.received...)
}

// Sent returns a copy of the sent log.
func (c *Client) Sent() []event.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]event.Envelope(nil), c.sent...)
}

// ClearReceived empties the received log. Used before scoped event-flow
// checks so earlier traffic cannot satisfy a wait.
func (c *Client) ClearReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = nil
}

func (c *Client) firstOfKind(kind event.Kind) (event.Envelope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, env := range c.received {
		if env.Type == kind {
			return env, true
		}
	}
	return event.Envelope{}, false
}

func (c *Client) missingKinds(kinds []event.Kind) []event.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()

	present := make(map[event.Kind]bool, len(c.received))
	for _, env := range c.received {
		present[env.Type] = true
	}

	var missing []event.Kind
	for _, k := range kinds {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// receiveLoop consumes inbound messages one at a time, decodes each
// (skipping decode failures), appends to the received log in arrival
// order and invokes registered handlers synchronously. It exits only on
// a read error: during a disconnect this keeps frames that were already
// in flight draining into the received log until the close handshake
// completes or the drain deadline set by Disconnect expires.
func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				// Disconnect in progress; it owns the state transition.
			default:
				// Remote drop: close the dead transport, stop the
				// heartbeat so nothing writes to it, and land in
				// Disconnected through Closing, never half-open.
				c.mu.Lock()
				if c.state == StateConnected {
					c.state = StateClosing
				}
				cancel := c.cancel
				c.mu.Unlock()
				if cancel != nil {
					cancel()
				}
				conn.Close()
				c.mu.Lock()
				if c.state == StateClosing {
					c.state = StateDisconnected
				}
				c.mu.Unlock()
				c.logger.Debug("receive loop ended", "error", err)
			}
			return
		}

		env, err := event.Decode(data)
		if err != nil {
			c.logger.Debug("skipping undecodable message", "error", err)
			continue
		}

		c.mu.Lock()
		c.received = append(c.received, env)
		c.lastActivity = time.Now()
		handlers := append([]Handler(nil), c.handlers[env.Type]...)
		c.mu.Unlock()

		c.metrics.RecordReceived(string(env.Type), len(data))

		for _, h := range handlers {
			h(env)
		}
	}
}

// heartbeatLoop sends a ping envelope at a fixed interval.
func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Send(event.Ping, nil); err != nil {
				c.logger.Debug("heartbeat send failed", "error", err)
			}
		}
	}
}
