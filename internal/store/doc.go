// Package store provides SQLite-backed durable storage for analysis runs.
//
// The store keeps an append-only record of:
//   - Runs: one analysis of one module, keyed by run ID
//   - Functions: per-function outcome, including pass errors
//   - Steps: the per-instruction trace with stack snapshots
//   - Hooks: the distinct hook signatures of the run
//
// # Critical Patterns
//
// Idempotent writes:
//   - WriteRun inserts with ON CONFLICT(id) DO NOTHING
//   - Writing the same run twice is a no-op
//
// Deterministic reads:
//   - Runs are ordered by id (UUIDv7, creation order)
//   - Functions by idx, steps by pc, hooks by key COLLATE BINARY
//
// Stack snapshots are stored as canonical CBOR so identical stacks encode to
// identical bytes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
