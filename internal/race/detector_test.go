package race

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/pushprobe/internal/client"
	"github.com/rickgao/pushprobe/internal/event"
	"github.com/rickgao/pushprobe/internal/metrics"
)

// pongBackend answers every ping envelope with a pong.
func pongBackend(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if env, err := event.Decode(data); err == nil && env.Type == event.Ping {
				payload, _ := event.Encode(event.New(event.Pong, nil))
				conn.WriteMessage(websocket.TextMessage, payload)
			}
		}
	}))
}

func testWSURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestDetector(url string) *Detector {
	cfg := Config{
		URL: url,
		Client: client.Config{
			WriteTimeout: time.Second,
			PollInterval: 5 * time.Millisecond,
		},
		EventWindow: 2 * time.Second,
		Stagger:     10 * time.Millisecond,
	}
	return NewDetector(cfg, metrics.NewCollector(), nil)
}

func TestDetector_RunAttempt_Success(t *testing.T) {
	server := pongBackend(t)
	defer server.Close()

	d := newTestDetector(testWSURL(server))
	result := d.RunAttempt(context.Background(), ProfileFast, "user-1")

	if !result.Success {
		t.Fatalf("attempt failed: %s", result.ErrorMessage)
	}
	if result.RaceDetected {
		t.Errorf("unexpected race classification %q", result.RaceType)
	}
	if result.ProfileName != "fast" {
		t.Errorf("ProfileName = %s, want fast", result.ProfileName)
	}
	if result.ConnectionTime <= 0 {
		t.Error("expected a positive connection time")
	}

	foundPong := false
	for _, k := range result.EventsReceived {
		if k == event.Pong {
			foundPong = true
		}
	}
	if !foundPong {
		t.Errorf("events %v missing terminal pong", result.EventsReceived)
	}
}

func TestDetector_RunAttempt_ClassifiesRejection(t *testing.T) {
	// Handshake always rejected with 503: a service-not-ready signature.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := newTestDetector(testWSURL(server))
	result := d.RunAttempt(context.Background(), ProfileFast, "user-1")

	if result.Success {
		t.Fatal("expected failure against rejecting backend")
	}
	if !result.RaceDetected || result.RaceType != TypeServiceNotReady {
		t.Errorf("classification = %q (detected=%v), want service_not_ready",
			result.RaceType, result.RaceDetected)
	}
	if result.ErrorMessage == "" {
		t.Error("expected a captured error message")
	}
}

func TestDetector_RunAttempt_UnreachableIsGenericFailure(t *testing.T) {
	d := newTestDetector("ws://127.0.0.1:1/ws")
	result := d.RunAttempt(context.Background(), ProfileFast, "user-1")

	if result.Success {
		t.Fatal("expected failure against unreachable endpoint")
	}
	if result.RaceDetected {
		t.Errorf("connection refused should stay generic, got %q", result.RaceType)
	}
}

// Fast profile, five trials: success rate must clear 70% with zero
// accept-first classifications.
func TestDetector_FastProfileTrials(t *testing.T) {
	server := pongBackend(t)
	defer server.Close()

	d := newTestDetector(testWSURL(server))

	const trials = 5
	results := make([]TestResult, 0, trials)
	for i := 0; i < trials; i++ {
		results = append(results, d.RunAttempt(context.Background(), ProfileFast, "trial-user"))
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
		if r.RaceType == TypeAcceptFirst {
			t.Errorf("accept-first classification in fast trial: %s", r.ErrorMessage)
		}
	}
	if rate := float64(succeeded) / trials; rate < 0.70 {
		t.Errorf("fast success rate = %.2f, want >= 0.70", rate)
	}

	report := EvaluateAcceptance(results)
	if !report.Passed {
		t.Errorf("acceptance failed: %v", report.Failures)
	}
}

func TestDetector_ConcurrentConnections(t *testing.T) {
	server := pongBackend(t)
	defer server.Close()

	d := newTestDetector(testWSURL(server))
	results := d.ConcurrentConnections(context.Background(), ProfileFast, 3)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("attempt %d failed: %s", i, r.ErrorMessage)
		}
		if r.ProfileName != "fast" {
			t.Errorf("attempt %d profile = %s, want fast", i, r.ProfileName)
		}
	}
}

func TestDetector_ConcurrentConnections_FailuresDoNotAbortBatch(t *testing.T) {
	d := newTestDetector("ws://127.0.0.1:1/ws")
	results := d.ConcurrentConnections(context.Background(), ProfileFast, 3)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Success {
			t.Errorf("attempt %d unexpectedly succeeded", i)
		}
		if r.ErrorMessage == "" {
			t.Errorf("attempt %d missing error message", i)
		}
	}
}
