// Package race reproduces and classifies backend readiness race
// conditions.
//
// A Detector drives connection attempts through the push-channel client
// under simulated Cloud-style latency tiers, then classifies any failure
// against a fixed, ordered error-signature taxonomy. Every attempt is
// isolated: panics and unexpected failures are converted into failing
// results, never propagated out of the detector.
package race
