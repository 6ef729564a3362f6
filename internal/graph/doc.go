// Package graph implements the tarsiflow incremental computation engine.
//
// A Model owns a table of named fields. Input fields hold externally set
// values; derived fields are pure functions of other fields. The engine
// discovers each derived field's dependencies by executing its rule once
// under a recording Reader, builds a reverse-dependency index from the
// observed reads, and on any input mutation recomputes exactly the
// transitive closure of affected fields, reporting only the ones whose
// value actually changed.
//
// ARCHITECTURE:
//
// Single-Owner Serialized Execution:
// All model operations run under one internal mutex. This ensures:
// - The dependents index is never read mid-append
// - At most one compute rule executes at a time
// - Task-based refreshes cannot interleave with synchronous ones
//
// Operation Flow:
// 1. Register() all fields (inputs with values, derived with rules)
// 2. Initialise() executes every rule once, recording dependencies
// 3. Refresh() walks the dependents index breadth-first on input change
// 4. RefreshTask() awaits a long-running rule, then propagates from it
//
// The dependency set observed during Initialise is FIXED for the life of
// the model. Recomputation during Refresh does not re-record: a rule that
// reads a different set of fields on a later execution silently corrupts
// propagation. Rules must be pure functions of stable dependency sets.
//
// CRITICAL PATTERNS:
//
// Registration Order:
// Initialise executes rules in registration order, so a rule may read a
// derived field only if that field was registered earlier. Iteration is
// never over the raw map.
//
// Change Suppression:
// Propagation through a field stops when its recomputed value compares
// unchanged under its kind's strategy (value.Equal). Vector comparison is
// sum-based and can under-detect change.
//
// Cycle Rejection:
// Initialise validates the completed dependents index is acyclic and
// fails with CycleError otherwise. An unchecked cycle would re-enqueue
// the same names without bound during Refresh.
package graph
