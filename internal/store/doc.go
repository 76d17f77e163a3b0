// Package store provides SQLite-backed durable storage for integrity graphs.
//
// The store keeps:
//   - Nodes and edges: the current head version of each entity
//   - Versions: an append-only log of every stamped version, for chain audits
//   - Breaker status: the last integrity breaker state per pipeline
//
// Every write is checked before it lands. The entity must verify against its
// own version hash, and its previous_version_hash must name the stored head
// (or be empty for a new entity). A mismatch is ErrConflict and nothing is
// written. Writing the current head again is a no-op.
//
// Bodies are stored as canonical JSON, so reads return exactly what was
// written and equal entities have equal rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Edges must reference stored nodes
//
// All ordering uses the seq column (a logical clock), never timestamps.
package store
