// Package resolve adapts plain functions into graph compute rules.
//
// A rule author declares the field names a function consumes; Bind produces
// a graph.ComputeFunc that resolves each name through the Reader before
// invoking the function. Because resolution goes through Reader.Get, the
// declared names double as the discovered dependency set during
// Initialise - the graph core never needs to know how arguments map to
// reads.
package resolve

import (
	"context"

	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

// Args holds resolved field values keyed by field name.
type Args map[string]value.Value

// Scalar returns the named argument as a float64. The zero value is
// returned for a missing or non-scalar argument; Bind guarantees presence
// for every declared name.
func (a Args) Scalar(name string) float64 {
	s, _ := a[name].(value.Scalar)
	return float64(s)
}

// Vector returns the named argument as a vector.
func (a Args) Vector(name string) value.Vector {
	v, _ := a[name].(value.Vector)
	return v
}

// Bind wraps fn as a synchronous compute rule that resolves the named
// fields through the Reader before each invocation.
func Bind(fn func(args Args) (value.Value, error), names ...string) graph.ComputeFunc {
	return func(r *graph.Reader) (value.Value, error) {
		args, err := gather(r, names)
		if err != nil {
			return nil, err
		}
		return fn(args)
	}
}

// BindTask wraps fn as a task-based compute rule. Field resolution happens
// before fn runs, so all dependency reads are recorded even if fn consults
// its arguments lazily.
func BindTask(fn func(ctx context.Context, args Args) (value.Value, error), names ...string) graph.TaskFunc {
	return func(ctx context.Context, r *graph.Reader) (value.Value, error) {
		args, err := gather(r, names)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
}

// Scalars wraps an all-scalar formula: the named fields are resolved as
// scalars and passed positionally, and the result is a scalar.
func Scalars(fn func(xs ...float64) float64, names ...string) graph.ComputeFunc {
	return func(r *graph.Reader) (value.Value, error) {
		xs := make([]float64, len(names))
		for i, name := range names {
			x, err := r.Scalar(name)
			if err != nil {
				return nil, err
			}
			xs[i] = x
		}
		return value.Scalar(fn(xs...)), nil
	}
}

// gather resolves each declared name through the Reader, recording the
// reads when the Reader is in discovery mode.
func gather(r *graph.Reader, names []string) (Args, error) {
	args := make(Args, len(names))
	for _, name := range names {
		v, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		args[name] = v
	}
	return args, nil
}
