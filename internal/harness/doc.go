// Package harness runs integrity scenarios against the real store, guard,
// breaker and verification engine.
//
// # Scenario Format
//
// Scenarios are YAML files. Nodes, edges and artifacts are named by ref;
// entity ids are derived from refs so every run hashes identically.
//
//	name: pinned_claim_resists_edit
//	description: "A pinned claim refuses edits until it is unpinned"
//	nodes:
//	  - ref: claim
//	    type: claim
//	    content: { statement: "Writes are durable" }
//	    pin: true
//	steps:
//	  - op: modify
//	    node: claim
//	    role: editor
//	    content: { statement: "Writes are mostly durable" }
//	    expect: { allowed: false, code: PINNED }
//	assertions:
//	  - type: final_state
//	    node: claim
//	    expect: { pin: true, versions: 1 }
//
// # Operations
//
// Guarded operations (modify, pin, unpin, seal, archive, relate) are refused
// with outcome "blocked" while the breaker is TRIPPED_CRITICAL, and
// otherwise go through the access guard. Audits (verify_branch,
// verify_artifact) feed the breaker. reset, advance and check_stale drive
// the breaker, the clock and the staleness check.
//
// # Assertion Types
//
//   - trace_contains: a step with op (and outcome or code) appears
//   - trace_order: steps with the given ops appear in order
//   - trace_count: an op or an event kind occurs exactly N times
//   - final_state: the stored node has the expected fields
//
// # Deterministic Testing
//
// The harness uses a fixed clock (testutil.FixedClock), ref-derived ids and
// an in-memory SQLite store per run, so traces compare byte for byte
// against golden files.
package harness
