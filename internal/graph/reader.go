package graph

import "github.com/tarsiflow/tarsiflow/internal/value"

// recorder captures the set of field names read during one compute
// execution. First-read order is preserved so the dependents index is
// appended deterministically; duplicate reads of the same name collapse.
//
// A recorder lives for exactly one discovery execution and is carried by
// the Reader handed to the rule, never shared between executions. This
// replaces the single shared tracking slot of ancestral designs: nested
// tracked executions would each get their own recorder, though compute
// rules triggering graph construction remains unsupported.
type recorder struct {
	field string
	seen  map[string]struct{}
	reads []string
}

func newRecorder(field string) *recorder {
	return &recorder{field: field, seen: make(map[string]struct{})}
}

// read records a dependency, collapsing duplicates.
func (rec *recorder) read(name string) {
	if _, ok := rec.seen[name]; ok {
		return
	}
	rec.seen[name] = struct{}{}
	rec.reads = append(rec.reads, name)
}

// Reader is the read surface handed to compute rules. It wraps the model
// plus an optional recorder; when the recorder is present (only during the
// single discovery execution in Initialise), every Get doubles as a
// dependency declaration.
//
// Reader methods must only be called from within the compute rule they
// were created for - the model's lock is already held by the operation
// driving the rule.
type Reader struct {
	model *Model
	rec   *recorder
}

// Get returns the current value of a field and, during discovery, records
// the read as a dependency. Fails with LookupError for unknown names.
func (r *Reader) Get(name string) (value.Value, error) {
	f, ok := r.model.fields[name]
	if !ok {
		return nil, &LookupError{Name: name}
	}
	if r.rec != nil {
		r.rec.read(name)
	}
	return f.val, nil
}

// Scalar returns a scalar field's value as a float64. Fails with
// LookupError for unknown names and KindError when the field holds a
// vector.
func (r *Reader) Scalar(name string) (float64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	s, ok := v.(value.Scalar)
	if !ok {
		return 0, &KindError{Name: name, Want: "scalar", Got: kindLabel(v)}
	}
	return float64(s), nil
}

// Vector returns a vector field's value. Fails with LookupError for
// unknown names and KindError when the field holds a scalar.
func (r *Reader) Vector(name string) (value.Vector, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	vec, ok := v.(value.Vector)
	if !ok {
		return nil, &KindError{Name: name, Want: "vector", Got: kindLabel(v)}
	}
	return vec, nil
}

// kindLabel names a value's kind for error messages. A nil value - a
// derived field whose rule has not run yet - reports as "unset" rather
// than panicking on the interface call.
func kindLabel(v value.Value) string {
	if v == nil {
		return "unset"
	}
	return v.Kind().String()
}
