// Package graph implements the dependency resolution engine at the core of
// the OpenForge build generator.
//
// # Overview
//
// Build descriptions are loaded by parallel workers in no particular order,
// with forward references allowed: a target may name a dependency whose own
// definition has not been seen yet. The resolver tracks one Record per
// declared (kind, label) identity and maintains a pending count of
// unresolved prerequisites for each. When a record's payload has been
// attached and its pending count reaches zero it becomes resolved, and
// resolution is propagated to every record waiting on it.
//
// # Core Types
//
//   - Item: tagged-variant payload for one of the four item kinds
//     (module, config, toolchain, pool)
//   - Record: per-identity graph node with forward and reverse edges
//   - Resolver: the shared table of records, safe for concurrent use by
//     loader workers
//   - StalledRecord: diagnostic entry for a record that never resolved
//
// # Concurrency Model
//
// Declare, AddEdge, and AttachItem may be called concurrently from
// independent loader workers. Mutation is serialized per record through a
// sharded lock table keyed by record index, never through a single global
// lock, so parallel loading of unrelated subgraphs does not contend.
// Resolution propagation runs on the worker that triggered it, iteratively
// through an explicit FIFO queue.
//
// Once Finish succeeds the graph is immutable and may be read from any
// number of goroutines without locking.
//
// # Error Classification
//
// Errors are classified for propagation policy:
//
//   - Config: a programming or configuration fault (late edge, duplicate
//     payload, pending-count underflow); aborts the run
//   - Stalled: one or more records never resolved (cycle or undeclared
//     reference); reported with full diagnostics at Finish
//   - Loader: malformed description content surfaced by a loader worker
//     and propagated as an abort signal
package graph
