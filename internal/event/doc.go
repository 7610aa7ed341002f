// Package event defines the push-channel wire vocabulary.
//
// Every message on a push channel is an Envelope: a typed JSON object
// carrying a kind, an open data payload, a timestamp and a unique message
// id. The kind set is closed; Decode rejects anything outside it so the
// receive loop can skip malformed traffic without guessing.
package event
