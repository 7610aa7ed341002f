// racetest sweeps simulated latency tiers against a push-channel backend,
// classifies connection failures, and evaluates the result set against the
// acceptance thresholds. Outcomes can optionally be persisted to Postgres.
// Usage: go run ./cmd/racetest --config configs/harness.example.yaml --profile all
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/config"
	"github.com/rickgao/pushprobe/internal/metrics"
	"github.com/rickgao/pushprobe/internal/race"
	"github.com/rickgao/pushprobe/internal/recorder"
	"github.com/rickgao/pushprobe/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/harness.example.yaml", "path to config file")
	profileName := flag.String("profile", "all", "latency tier to sweep (fast, typical, slow, stress, all)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting racetest",
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

	profiles, err := selectProfiles(*profileName)
	if err != nil {
		logger.Error("invalid profile", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to outcome database",
			"host", cfg.Recorder.Postgres.Host,
			"database", cfg.Recorder.Postgres.Name,
		)
		pool, err := recorder.Connect(ctx, cfg.Recorder.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec = recorder.New(cfg.Recorder, sessionID, pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
	}

	detector := race.NewDetector(race.Config{
		URL: cfg.Target.WSURL,
		Client: client.Config{
			WriteTimeout:      cfg.Client.WriteTimeout,
			HeartbeatInterval: cfg.Client.HeartbeatInterval,
			PollInterval:      cfg.Client.PollInterval,
			DrainTimeout:      cfg.Client.DrainTimeout,
		},
		EventWindow:       cfg.Race.EventWindow,
		Stagger:           cfg.Race.Stagger,
		SimulateAuthDelay: cfg.Race.SimulateAuthDelay,
	}, metrics.NewCollector(), logger)

	var results []race.TestResult
	sweepStart := time.Now()

	// Sequential trials per tier, then one concurrent batch per tier.
	for _, profile := range profiles {
		logger.Info("sweeping profile",
			"profile", profile.Name,
			"trials", cfg.Race.Trials,
			"concurrency", cfg.Race.Concurrency,
		)

		for i := 0; i < cfg.Race.Trials; i++ {
			if ctx.Err() != nil {
				break
			}
			userID := fmt.Sprintf("race-%s-%d", profile.Name, i)
			res := detector.RunAttempt(ctx, profile, userID)
			results = append(results, res)
			record(rec, res)
		}

		if ctx.Err() != nil {
			break
		}

		for _, res := range detector.ConcurrentConnections(ctx, profile, cfg.Race.Concurrency) {
			results = append(results, res)
			record(rec, res)
		}
	}

	report := race.EvaluateAcceptance(results)

	if rec != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := rec.Stop(stopCtx); err != nil {
			logger.Warn("recorder stop failed", "error", err)
		}
		if err := rec.WriteSummary(stopCtx, report, time.Since(sweepStart)); err != nil {
			logger.Warn("session summary write failed", "error", err)
		}
		stats := rec.Stats()
		logger.Info("outcomes persisted",
			"inserts", stats.Inserts,
			"flushes", stats.Flushes,
			"errors", stats.Errors,
			"dropped", stats.Dropped,
		)
	}
	logger.Info("acceptance report",
		"session_id", sessionID,
		"attempts", report.Total,
		"succeeded", report.Succeeded,
		"fast_success_rate", fmt.Sprintf("%.2f", report.FastSuccessRate),
		"overall_success_rate", fmt.Sprintf("%.2f", report.OverallSuccessRate),
		"severe_share", fmt.Sprintf("%.2f", report.SevereShare),
		"passed", report.Passed,
	)
	for _, f := range report.Failures {
		logger.Error("acceptance failure", "reason", f)
	}

	printBreakdown(results, logger)

	if !report.Passed {
		os.Exit(1)
	}
}

// selectProfiles resolves a tier name, or every tier in a stable order.
func selectProfiles(name string) ([]race.LatencyProfile, error) {
	if name != "all" {
		p, ok := race.Profiles[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
		return []race.LatencyProfile{p}, nil
	}

	out := make([]race.LatencyProfile, 0, len(race.Profiles))
	for _, p := range race.Profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseDelay < out[j].BaseDelay })
	return out, nil
}

func record(rec *recorder.Recorder, res race.TestResult) {
	if rec != nil {
		rec.Record(res)
	}
}

// printBreakdown logs attempt counts per detected race class.
func printBreakdown(results []race.TestResult, logger *slog.Logger) {
	counts := make(map[race.Type]int)
	for _, r := range results {
		if r.RaceDetected {
			counts[r.RaceType]++
		}
	}
	if len(counts) == 0 {
		logger.Info("no race conditions detected")
		return
	}

	types := make([]race.Type, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		logger.Info("race class observed", "type", string(t), "count", counts[t])
	}
}
