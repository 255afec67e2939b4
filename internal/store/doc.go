// Package store provides SQLite-backed history for forge runs and recorded
// ActionGate decisions.
//
// The store keeps:
//   - Forge runs: one row per run, keyed by a content-addressed run id
//   - Forge issues: the ordered issues of each run
//   - Decisions: published ActionGate decisions, keyed by ir.DecisionID
//
// # Ordering
//
// Runs are ordered by created_seq and decisions by (seq, id), both logical
// counters. Wall time is never stored, so two histories built from the
// same inputs compare equal.
//
// # Idempotency
//
// Every write uses ON CONFLICT DO NOTHING on a content-addressed id.
// Recording the same run or decision twice leaves one row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
