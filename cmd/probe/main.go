// probe runs a push-channel conformance session against a live backend:
// agent event flow, multi-user isolation, throughput, and reconnect cycles.
// Usage: go run ./cmd/probe --config configs/harness.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pushprobe/internal/auth"
	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/config"
	"github.com/rickgao/pushprobe/internal/harness"
	"github.com/rickgao/pushprobe/internal/metrics"
	"github.com/rickgao/pushprobe/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/harness.example.yaml", "path to config file")
	clients := flag.Int("clients", 5, "clients for the isolation and throughput phases")
	messages := flag.Int("messages", 10, "messages per client in the throughput phase")
	cycles := flag.Int("cycles", 3, "disconnect/reconnect cycles in the resilience phase")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	// Set up structured logging
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting probe",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sessionID := cfg.Session.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	logger.Info("configuration loaded",
		"session_id", sessionID,
		"ws_url", cfg.Target.WSURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	token, err := resolveToken(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to obtain token", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	h := harness.New(harness.Config{
		URL:              cfg.Target.WSURL,
		Client:           clientConfig(cfg),
		ReconnectWait:    cfg.Target.ReconnectWait,
		ExecutionTimeout: cfg.Target.ExecutionWait,
	}, collector, logger)
	defer h.Cleanup()

	failed := false

	// Phase 1: single client, full agent event flow.
	logger.Info("phase 1: agent event flow")
	err = h.WithConnectedClient(ctx, "probe-user-"+shortID, func(c *client.Client) error {
		summary := h.SimulateAgentExecution(c, "conformance probe request")
		if !summary.Success {
			return fmt.Errorf("agent execution: %w", summary.Err)
		}
		logger.Info("agent execution complete",
			"execution_id", summary.ExecutionID,
			"duration", summary.Duration,
			"events", summary.EventsReceived,
		)
		return nil
	})
	if err != nil {
		logger.Error("agent event flow failed", "error", err)
		failed = true
	}

	// Phase 2: multi-user isolation.
	logger.Info("phase 2: multi-user isolation", "clients", *clients)
	batch := h.CreateMultiUserClients(ctx, *clients)
	for _, c := range batch {
		if !c.IsConnected() {
			continue
		}
		summary := h.SimulateAgentExecution(c, "isolation probe request")
		if !summary.Success {
			logger.Warn("execution failed during isolation phase",
				"user_id", c.UserID(), "error", summary.Err)
		}
	}
	violations := h.VerifyIsolation(batch)
	for _, v := range violations {
		logger.Error("isolation violation",
			"client_user", v.ClientUserID,
			"foreign_user", v.ForeignUserID,
			"message_id", v.MessageID,
		)
	}
	if len(violations) > 0 {
		failed = true
	}
	for _, c := range batch {
		c.Disconnect()
	}

	// Phase 3: throughput.
	logger.Info("phase 3: throughput", "clients", *clients, "messages_per_client", *messages)
	perf := h.RunPerformanceTest(ctx, *clients, *messages, 0)
	logger.Info("throughput complete",
		"sent", perf.TotalMessagesSent,
		"failures", perf.SendFailures,
		"msgs_per_sec", fmt.Sprintf("%.1f", perf.MessagesPerSecond),
		"avg_latency", perf.AvgLatency,
		"max_latency", perf.MaxLatency,
		"connection_success_rate", fmt.Sprintf("%.2f", perf.ConnectionSuccessRate),
	)
	if perf.ConnectionSuccessRate < 1.0 {
		logger.Warn("not all throughput clients connected",
			"connected", perf.ConnectedClients, "requested", perf.ClientCount)
	}

	// Phase 4: reconnect resilience.
	logger.Info("phase 4: resilience", "cycles", *cycles)
	c := h.CreateAuthenticatedClient("resilience-user-"+shortID, token)
	if err := c.Connect(ctx); err != nil {
		logger.Error("resilience client connect failed", "error", err)
		failed = true
	} else {
		res := h.TestConnectionResilience(ctx, c, *cycles)
		c.Disconnect()
		logger.Info("resilience complete",
			"cycles", res.Cycles,
			"reconnected", res.SuccessfulReconnects,
			"failed", res.FailedReconnects,
			"avg_reconnect", res.AvgReconnectTime,
		)
		if res.FailedReconnects > 0 {
			failed = true
		}
	}

	printSummary(collector.Snapshot(), logger)

	if failed {
		logger.Error("probe session failed", "session_id", sessionID)
		os.Exit(1)
	}
	logger.Info("probe session passed", "session_id", sessionID)
}

// resolveToken returns the configured token, fetches one from the issuer
// when an auth URL is set, or falls back to synthetic credentials.
func resolveToken(ctx context.Context, cfg *config.HarnessConfig, logger *slog.Logger) (string, error) {
	if cfg.Target.Token != "" {
		return cfg.Target.Token, nil
	}
	if cfg.Target.AuthURL == "" {
		// Empty token makes the harness derive synthetic tokens per user.
		return "", nil
	}

	issuer := auth.NewIssuerClient(cfg.Target.AuthURL,
		auth.WithIssuerTimeout(cfg.Target.ConnectTimeout),
		auth.WithIssuerRetries(cfg.Target.MaxRetries, 500*time.Millisecond),
		auth.WithIssuerLogger(logger),
	)
	return issuer.Token(ctx, "probe-session")
}

func clientConfig(cfg *config.HarnessConfig) client.Config {
	return client.Config{
		ConnectTimeout:    cfg.Target.ConnectTimeout,
		WriteTimeout:      cfg.Client.WriteTimeout,
		HeartbeatInterval: cfg.Client.HeartbeatInterval,
		PollInterval:      cfg.Client.PollInterval,
		DrainTimeout:      cfg.Client.DrainTimeout,
	}
}

func printSummary(snap metrics.Snapshot, logger *slog.Logger) {
	logger.Info("session metrics",
		"connection_attempts", snap.ConnectionAttempts,
		"connection_successes", snap.ConnectionSuccesses,
		"messages_sent", snap.MessagesSent,
		"messages_received", snap.MessagesReceived,
		"bytes_sent", snap.BytesSent,
		"bytes_received", snap.BytesReceived,
		"avg_latency", snap.AvgLatency,
		"max_latency", snap.MaxLatency,
		"errors", len(snap.Errors),
		"warnings", len(snap.Warnings),
	)
	for _, e := range snap.Errors {
		logger.Error("session error", "detail", e)
	}
	for _, w := range snap.Warnings {
		logger.Warn("session warning", "detail", w)
	}
}
