// Package recorder persists harness outcomes to Postgres.
//
// The recorder is optional: the harness core never needs a database. When
// enabled it consumes attempt results through a growable buffer and batch
// inserts them (append-only, never update) on a size or interval trigger.
package recorder
