// Package metrics accumulates harness counters and timers.
//
// Key metrics:
//   - Connection attempts, successes, and connect latency
//   - Messages and bytes sent/received, per-kind event counts
//   - Error and warning lists for session reporting
//   - Running average and max latency
//
// The collector never resets mid-session; Snapshot returns a deep copy
// safe to hand to reporters.
package metrics
