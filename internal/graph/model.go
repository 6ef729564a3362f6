package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tarsiflow/tarsiflow/internal/value"
)

// Delta maps field names to new values for every field that actually
// changed as a consequence of one refresh. The mutated input itself is
// never included.
type Delta map[string]value.Value

// Model owns the field table and the reverse-dependency index.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine (internal mutex)
//   - The mutex is held across task rule awaits in Initialise and
//     RefreshTask, serializing long-running refreshes against everything
//     else by construction
//
// INVARIANTS:
//   - Field iteration always follows registration order (order slice)
//   - The dependents index is only appended to, never removed from
//   - Dependency sets are fixed at the single discovery execution
type Model struct {
	mu         sync.Mutex
	fields     map[string]*Field
	order      []string // Registration order for deterministic Initialise
	dependents map[string][]string
}

// New creates an empty model.
func New() *Model {
	return &Model{
		fields:     make(map[string]*Field),
		dependents: make(map[string][]string),
	}
}

// Register inserts a field by name. Re-registering an existing name
// overwrites the entry in place (last write wins) and keeps its original
// position in registration order.
//
// CALLER HAZARD: overwriting a derived field after Initialise does not
// remove its stale dependents bookkeeping. Registration is intended to
// complete before graph construction; the engine does not support
// redefining fields afterwards.
func (m *Model) Register(f *Field) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.fields[f.name]; !exists {
		m.order = append(m.order, f.name)
	} else {
		slog.Warn("field re-registered, prior dependents bookkeeping retained",
			"field", f.name,
		)
	}
	m.fields[f.name] = f
}

// Set directly mutates a field's value, bypassing tracking and
// propagation. Fails with LookupError for unknown names and KindError
// when the value's kind differs from the field's declared kind.
func (m *Model) Set(name string, v value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(name, v)
}

// set is the lock-held body of Set, shared with Refresh.
func (m *Model) set(name string, v value.Value) error {
	f, ok := m.fields[name]
	if !ok {
		return &LookupError{Name: name}
	}
	if v.Kind() != f.kind {
		return &KindError{Name: name, Want: f.kind.String(), Got: v.Kind().String()}
	}
	f.val = v
	return nil
}

// Get returns a field's current value. Fails with LookupError for unknown
// names. Reads through Get are never recorded as dependencies - only
// Reader.Get inside a rule's discovery execution is.
func (m *Model) Get(name string) (value.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fields[name]
	if !ok {
		return nil, &LookupError{Name: name}
	}
	return f.val, nil
}

// Initialise executes every derived field's rule exactly once, in
// registration order, discovering dependencies and populating initial
// values. Task rules are awaited inline. After all rules have run, the
// completed dependents index is validated to be acyclic.
//
// Initialise is NOT idempotent: re-running appends duplicate dependents
// entries, so each dependent would be recomputed once per extra run
// during Refresh. Call it exactly once after registration.
//
// On a rule failure the error propagates immediately; the dependents
// index is left partially built for that field and no rollback is
// attempted.
func (m *Model) Initialise(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	derived := 0
	for _, name := range m.order {
		f := m.fields[name]
		if !f.IsDerived() {
			continue
		}
		if err := m.discover(ctx, f); err != nil {
			return err
		}
		derived++
	}

	if err := m.checkAcyclic(); err != nil {
		return err
	}

	slog.Info("model initialised",
		"fields", len(m.fields),
		"derived", derived,
		"edges", m.edgeCount(),
	)
	return nil
}

// discover runs one rule under a fresh recorder, stores its value, and
// appends this field to the dependents list of every distinct name it
// read. Lock must be held.
func (m *Model) discover(ctx context.Context, f *Field) error {
	rec := newRecorder(f.name)
	v, err := f.run(ctx, &Reader{model: m, rec: rec})
	if err != nil {
		return &ComputeError{Name: f.name, Err: err}
	}
	if v == nil || v.Kind() != f.kind {
		return &KindError{Name: f.name, Want: f.kind.String(), Got: kindLabel(v)}
	}
	f.val = v

	// Reverse the observed reads: "when X changes, recompute everything
	// that read X". First-read order keeps the index deterministic.
	for _, dep := range rec.reads {
		m.dependents[dep] = append(m.dependents[dep], f.name)
	}

	slog.Debug("dependencies discovered",
		"field", f.name,
		"reads", rec.reads,
		"task", f.IsTask(),
	)
	return nil
}

// Refresh applies a new value to an input and propagates the change
// breadth-first through the dependents index, recomputing only where
// values differ. Returns the delta of fields that actually changed.
//
// Task-based fields are never recomputed by the synchronous walk; they
// are propagation roots reachable only through RefreshTask.
func (m *Model) Refresh(name string, v value.Value) (Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.set(name, v); err != nil {
		return nil, err
	}

	delta := make(Delta)
	queue, pending := m.seed(name)
	if err := m.propagate(context.Background(), queue, pending, delta); err != nil {
		return nil, err
	}

	slog.Debug("refresh complete", "input", name, "changed", len(delta))
	return delta, nil
}

// RefreshTask awaits a task-based field's rule to completion, then applies
// the same change-detection and delta-reporting contract as Refresh with
// that field as the propagation root.
//
// The model mutex is held for the full await: a task refresh is serialized
// against every other model operation. There is no cancellation beyond
// whatever the rule itself does with ctx.
func (m *Model) RefreshTask(ctx context.Context, name string) (Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fields[name]
	if !ok {
		return nil, &LookupError{Name: name}
	}
	if !f.IsTask() {
		return nil, fmt.Errorf("field %q is not task-based", name)
	}

	old := f.val
	v, err := f.run(ctx, &Reader{model: m})
	if err != nil {
		return nil, &ComputeError{Name: f.name, Err: err}
	}
	if v == nil || v.Kind() != f.kind {
		return nil, &KindError{Name: f.name, Want: f.kind.String(), Got: kindLabel(v)}
	}

	delta := make(Delta)
	if value.Equal(old, v) {
		slog.Debug("task refresh unchanged", "field", name)
		return delta, nil
	}
	f.val = v
	delta[name] = v

	queue, pending := m.seed(name)
	if err := m.propagate(ctx, queue, pending, delta); err != nil {
		return nil, err
	}

	slog.Debug("task refresh complete", "field", name, "changed", len(delta))
	return delta, nil
}

// seed builds the initial work queue from a field's direct dependents, in
// the order they were recorded. Task-based fields are excluded - the
// synchronous walk never executes them.
func (m *Model) seed(name string) ([]string, map[string]bool) {
	pending := make(map[string]bool)
	var queue []string
	for _, dep := range m.dependents[name] {
		if m.fields[dep].IsTask() || pending[dep] {
			continue
		}
		pending[dep] = true
		queue = append(queue, dep)
	}
	return queue, pending
}

// propagate drains the work queue, recomputing each field against current
// model state and enqueueing its own dependents when its value changed.
//
// Recomputation runs WITHOUT a recorder: the dependency graph is fixed at
// Initialise and re-execution must not mutate the index.
//
// The pending set deduplicates the queue: a name already awaiting
// recomputation is not enqueued again. In a diamond shape this avoids the
// redundant second recomputation of the join field without changing the
// observable delta - the duplicate entry would have compared unchanged
// against the already-updated value anyway.
func (m *Model) propagate(ctx context.Context, queue []string, pending map[string]bool, delta Delta) error {
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		delete(pending, name)

		f := m.fields[name]
		old := f.val
		v, err := f.run(ctx, &Reader{model: m})
		if err != nil {
			return &ComputeError{Name: name, Err: err}
		}
		if v == nil || v.Kind() != f.kind {
			return &KindError{Name: name, Want: f.kind.String(), Got: kindLabel(v)}
		}

		if value.Equal(old, v) {
			// Unchanged value cannot change anything downstream - rules
			// are pure functions of their tracked dependencies.
			continue
		}

		f.val = v
		delta[name] = v
		for _, dep := range m.dependents[name] {
			if m.fields[dep].IsTask() || pending[dep] {
				continue
			}
			pending[dep] = true
			queue = append(queue, dep)
		}
	}
	return nil
}

// Names returns all field names in registration order.
func (m *Model) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Dependents returns the ordered list of fields whose rule reads the named
// field. The returned slice is a copy. Fails with LookupError for unknown
// names.
func (m *Model) Dependents(name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fields[name]; !ok {
		return nil, &LookupError{Name: name}
	}
	deps := make([]string, len(m.dependents[name]))
	copy(deps, m.dependents[name])
	return deps, nil
}

// Lookup returns the field registered under name, if any. Fields expose
// only read accessors; mutation goes through the model.
func (m *Model) Lookup(name string) (*Field, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fields[name]
	return f, ok
}

// edgeCount returns the total number of dependents edges. Lock must be
// held.
func (m *Model) edgeCount() int {
	n := 0
	for _, deps := range m.dependents {
		n += len(deps)
	}
	return n
}

// checkAcyclic validates the dependents graph with a three-color
// depth-first search. Returns CycleError with a witness path
// on failure. Lock must be held.
func (m *Model) checkAcyclic() error {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(m.fields))
	var path []string

	var visit func(name string) *CycleError
	visit = func(name string) *CycleError {
		color[name] = grey
		path = append(path, name)
		for _, dep := range m.dependents[name] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case grey:
				// Trim the path to the cycle entry point for the witness.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				witness := append([]string{}, path[start:]...)
				witness = append(witness, dep)
				return &CycleError{Path: witness}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, name := range m.order {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
