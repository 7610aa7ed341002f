// Package client implements a single authenticated push-channel connection.
//
// A Client owns one WebSocket connection and its full lifecycle:
//   - Disconnected -> Connecting -> Connected -> Closing -> Disconnected
//   - one background receive goroutine appending decoded envelopes in
//     arrival order
//   - an optional heartbeat goroutine sending ping envelopes
//   - wait primitives that check the received log before blocking
//
// Disconnect is idempotent and does not return until both background
// goroutines have unwound.
package client
