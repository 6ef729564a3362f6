package graph

import (
	"context"
	"fmt"

	"github.com/tarsiflow/tarsiflow/internal/value"
)

// ComputeFunc is a synchronous compute rule. It receives a Reader bound to
// the owning model; every Reader.Get it performs during the discovery
// execution is recorded as a dependency.
//
// Rules must be pure functions of the fields they read. The dependency set
// observed during Initialise is fixed for the life of the model - a rule
// that reads a different set of fields on a later call silently corrupts
// propagation.
type ComputeFunc func(r *Reader) (value.Value, error)

// TaskFunc is a long-running compute rule. It is awaited to completion
// through Model.RefreshTask (and once during Initialise) rather than
// re-executed by the synchronous refresh walk.
type TaskFunc func(ctx context.Context, r *Reader) (value.Value, error)

// Field is a named storage cell: a current value, a declared kind, and an
// optional compute rule. A field with no rule is an input, mutated only
// through Model.Set.
//
// At most one of the sync and task rules may be set; the constructors
// enforce this.
type Field struct {
	name    string
	kind    value.Kind
	val     value.Value
	compute ComputeFunc
	task    TaskFunc
}

// Input creates an input field with an initial value. The declared kind is
// taken from the initial value's tag.
func Input(name string, initial value.Value) *Field {
	return &Field{name: name, kind: initial.Kind(), val: initial}
}

// Derived creates a field computed synchronously from other fields.
// Its value is nil until Initialise runs the rule.
func Derived(name string, kind value.Kind, rule ComputeFunc) *Field {
	return &Field{name: name, kind: kind, compute: rule}
}

// DerivedTask creates a field computed by a long-running, awaitable rule.
func DerivedTask(name string, kind value.Kind, rule TaskFunc) *Field {
	return &Field{name: name, kind: kind, task: rule}
}

// Name returns the field's unique identifier.
func (f *Field) Name() string { return f.name }

// Kind returns the declared value kind.
func (f *Field) Kind() value.Kind { return f.kind }

// Value returns the current value. Nil for derived fields before
// Initialise.
func (f *Field) Value() value.Value { return f.val }

// IsDerived reports whether the field has a compute rule of either kind.
func (f *Field) IsDerived() bool { return f.compute != nil || f.task != nil }

// IsTask reports whether the field's rule is task-based.
func (f *Field) IsTask() bool { return f.task != nil }

// run executes the field's rule, dispatching on the rule tag. Task rules
// run inline here; the caller decides when awaiting is acceptable.
func (f *Field) run(ctx context.Context, r *Reader) (value.Value, error) {
	switch {
	case f.compute != nil:
		return f.compute(r)
	case f.task != nil:
		return f.task(ctx, r)
	default:
		return nil, fmt.Errorf("field %q has no compute rule", f.name)
	}
}

// String renders the field for debug output. Vectors print length only,
// not contents.
func (f *Field) String() string {
	if f.kind == value.KindVector {
		if v, ok := f.val.(value.Vector); ok {
			return fmt.Sprintf("<Vector %s, len=%d>", f.name, len(v))
		}
		return fmt.Sprintf("<Vector %s, unset>", f.name)
	}
	return fmt.Sprintf("<Field %s, value=%v>", f.name, f.val)
}
