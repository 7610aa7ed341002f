package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/pushprobe/internal/auth"
	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/metrics"
)

// Harness owns the client registry for one session.
type Harness struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	clients map[string]*client.Client // client id -> client

	userSeq atomic.Int64
}

// New creates a harness session. The caller tears it down with Cleanup.
func New(cfg Config, collector *metrics.Collector, logger *slog.Logger) *Harness {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	return &Harness{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		clients: make(map[string]*client.Client),
	}
}

// Metrics returns the session collector.
func (h *Harness) Metrics() *metrics.Collector { return h.metrics }

// CreateClient builds an unconnected client that presents no credentials.
func (h *Harness) CreateClient(userID string) *client.Client {
	return h.register(auth.Credentials{UserID: userID})
}

// CreateAuthenticatedClient builds an unconnected client with standard
// auth headers. An empty token derives a deterministic synthetic token
// from the user id.
func (h *Harness) CreateAuthenticatedClient(userID, token string) *client.Client {
	return h.register(auth.NewCredentials(userID, token))
}

// register inserts a new client into the registry before returning it, so
// no network call can interleave an unregistered client into a lookup.
func (h *Harness) register(creds auth.Credentials) *client.Client {
	cfg := h.cfg.Client
	cfg.URL = h.cfg.URL

	c := client.New(cfg, creds, h.metrics, h.logger)

	h.mu.Lock()
	h.clients[c.ID()] = c
	h.mu.Unlock()

	return c
}

// Lookup returns a registered client by id.
func (h *Harness) Lookup(id string) (*client.Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	return c, ok
}

// Clients returns all registered clients.
func (h *Harness) Clients() []*client.Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*client.Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// CreateMultiUserClients builds and connects n authenticated clients with
// unique synthetic identities. Individual connection failures are recorded
// but do not abort the batch; callers must check each client's state.
func (h *Harness) CreateMultiUserClients(ctx context.Context, n int) []*client.Client {
	clients := make([]*client.Client, 0, n)

	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("load-user-%d-%s", h.userSeq.Add(1), uuid.NewString()[:8])
		c := h.CreateAuthenticatedClient(userID, "")
		clients = append(clients, c)

		if err := c.Connect(ctx); err != nil {
			h.logger.Warn("client connect failed", "user_id", userID, "error", err)
			h.metrics.RecordError(fmt.Sprintf("connect %s: %v", userID, err))
		}
	}

	return clients
}

// WithConnectedClient runs fn with one connected authenticated client and
// guarantees disconnect on every exit path.
func (h *Harness) WithConnectedClient(ctx context.Context, userID string, fn func(*client.Client) error) error {
	c := h.CreateAuthenticatedClient(userID, "")
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect client for %s: %w", userID, err)
	}
	defer c.Disconnect()

	return fn(c)
}

// Cleanup disconnects every tracked client and clears the registry. Safe
// to call multiple times.
func (h *Harness) Cleanup() {
	h.mu.Lock()
	clients := make([]*client.Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client.Client)
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.Disconnect(); err != nil {
			h.logger.Warn("disconnect during cleanup failed", "client_id", c.ID(), "error", err)
		}
	}

	if len(clients) > 0 {
		h.logger.Info("harness cleaned up", "clients", len(clients))
	}
}
