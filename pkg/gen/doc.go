// Package gen turns resolved module targets into build-edge descriptions
// for the downstream build executor.
//
// # Overview
//
// Generation runs strictly after graph resolution: the resolver's Finish
// has succeeded and the graph is immutable, so classification and
// synthesis over independent targets may run fully in parallel with no
// locking.
//
// For each module target the pipeline is:
//
//  1. Classifier partitions the target's direct dependencies into four
//     disjoint buckets (linkable, non-linkable, framework, extra objects)
//     and computes the transitive extern set with per-module direct-access
//     flags.
//  2. Synthesizer resolves the artifact kind, gathers flags along the
//     configuration chain in declared precedence order, and assembles the
//     BuildEdge: explicit input, implicit and order-only dependencies,
//     named external references, link search paths, and link arguments.
//  3. BuildEdge.WriteTo renders the edge as "name = value" lines in the
//     fixed section order consumed by the executor.
//
// # Ordering Guarantees
//
// Flag and variable concatenation follows declaration/precedence order,
// never resolution order, and is deliberately not deduplicated: search
// path precedence and intentionally repeated library flags are
// semantically significant. External references are emitted direct deps
// first (in declared order), then transitive modules, then explicitly
// declared externs.
package gen
