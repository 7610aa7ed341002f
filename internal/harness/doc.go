// Package harness orchestrates many push-channel clients against one
// target endpoint.
//
// A Harness is an explicit session object: it owns the client registry,
// builds authenticated clients, runs conformance checks (agent event flow,
// isolation), throughput and reconnection-resilience runners, and tears
// everything down in Cleanup. Clients are registered synchronously at
// creation, before any network call, so concurrent creations cannot
// interleave an unregistered client into a later lookup.
package harness
