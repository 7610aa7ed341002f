package race

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pushprobe/internal/auth"
	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/event"
	"github.com/rickgao/pushprobe/internal/metrics"
)

// TestResult is the immutable outcome of one connection attempt.
type TestResult struct {
	Success        bool
	RaceDetected   bool
	RaceType       Type
	ConnectionTime time.Duration
	ErrorMessage   string
	EventsReceived []event.Kind
	ProfileName    string
}

// Config configures a Detector.
type Config struct {
	URL               string
	Client            client.Config // Template; URL and ConnectTimeout come from the profile run
	EventWindow       time.Duration // Max wait for inbound events after a successful probe
	Stagger           time.Duration // Delay between concurrent attempt launches
	SimulateAuthDelay bool          // Also sleep the profile's auth-path delay
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Client:      client.DefaultConfig(),
		EventWindow: 5 * time.Second,
		Stagger:     100 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.EventWindow == 0 {
		c.EventWindow = def.EventWindow
	}
	if c.Stagger == 0 {
		c.Stagger = def.Stagger
	}
}

// Detector runs latency-simulated connection attempts and classifies
// their failures.
type Detector struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewDetector creates a Detector.
func NewDetector(cfg Config, collector *metrics.Collector, logger *slog.Logger) *Detector {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	return &Detector{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
	}
}

// RunAttempt performs one latency-simulated connection attempt for the
// given profile and target identity. It never panics and never returns an
// error; every outcome, including an internal panic, resolves to a
// TestResult.
func (d *Detector) RunAttempt(ctx context.Context, profile LatencyProfile, userID string) (result TestResult) {
	result.ProfileName = profile.Name

	defer func() {
		if r := recover(); r != nil {
			result = TestResult{
				ProfileName:  profile.Name,
				ErrorMessage: fmt.Sprintf("attempt panic: %v", r),
			}
			d.logger.Error("attempt panicked", "profile", profile.Name, "panic", r)
		}
	}()

	// Emulate upstream cold-start/network latency before the attempt.
	if !sleepCtx(ctx, profile.EffectiveDelay()) {
		result.ErrorMessage = "attempt canceled: " + ctx.Err().Error()
		return result
	}
	if d.cfg.SimulateAuthDelay {
		if !sleepCtx(ctx, profile.AuthDelay) {
			result.ErrorMessage = "attempt canceled: " + ctx.Err().Error()
			return result
		}
	}

	cfg := d.cfg.Client
	cfg.URL = d.cfg.URL
	cfg.ConnectTimeout = profile.ConnectTimeout

	c := client.New(cfg, auth.NewCredentials(userID, ""), d.metrics, d.logger)
	defer c.Disconnect()

	start := time.Now()
	if err := c.Connect(ctx); err != nil {
		result.ConnectionTime = time.Since(start)
		result.ErrorMessage = err.Error()
		result.RaceType = Classify(err.Error())
		result.RaceDetected = result.RaceType != TypeNone
		d.logger.Debug("attempt failed",
			"profile", profile.Name,
			"race_type", result.RaceType,
			"error", err,
		)
		return result
	}
	result.ConnectionTime = time.Since(start)

	// Probe the channel, then collect events until a terminal kind
	// arrives or the window closes.
	if _, err := c.Send(event.Ping, map[string]any{"probe": true}); err != nil {
		result.ErrorMessage = err.Error()
		result.RaceType = Classify(err.Error())
		result.RaceDetected = result.RaceType != TypeNone
		return result
	}

	d.collectEvents(ctx, c)

	for _, env := range c.Received() {
		result.EventsReceived = append(result.EventsReceived, env.Type)
	}
	result.Success = true
	return result
}

// collectEvents waits for a terminal event (pong or agent_completed) for
// up to the configured window.
func (d *Detector) collectEvents(ctx context.Context, c *client.Client) {
	deadline := time.Now().Add(d.cfg.EventWindow)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if len(c.EventsByKind(event.Pong)) > 0 || len(c.EventsByKind(event.AgentCompleted)) > 0 {
			return
		}
		time.Sleep(d.cfg.Client.PollInterval)
	}
}

// ConcurrentConnections runs n single attempts with a small stagger
// between launches. The batch completes only once every launched attempt
// has produced a result; a task failure becomes a concurrent-conflict
// result rather than aborting the batch.
func (d *Detector) ConcurrentConnections(ctx context.Context, profile LatencyProfile, n int) []TestResult {
	results := make([]TestResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if i > 0 {
			sleepCtx(ctx, d.cfg.Stagger)
		}

		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[slot] = TestResult{
						ProfileName:  profile.Name,
						RaceDetected: true,
						RaceType:     TypeConcurrentConflict,
						ErrorMessage: fmt.Sprintf("concurrent attempt panic: %v", r),
					}
				}
			}()

			userID := fmt.Sprintf("race-user-%d-%s", slot, uuid.NewString()[:8])
			results[slot] = d.RunAttempt(ctx, profile, userID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	d.logger.Info("concurrent connection test complete",
		"profile", profile.Name,
		"attempts", n,
		"succeeded", succeeded,
	)

	return results
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
