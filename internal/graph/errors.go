package graph

import (
	"errors"
	"fmt"
)

// LookupError reports an operation against an unregistered field name.
// Surfaced directly to the caller; never retried.
type LookupError struct {
	Name string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("field %q is not registered", e.Name)
}

// IsLookupError returns true if the error is a field lookup failure.
// Uses errors.As to handle wrapped errors.
func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}

// KindError reports a value whose kind does not match the field's
// declared kind.
type KindError struct {
	Name string
	Want string
	Got  string
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return fmt.Sprintf("field %q expects %s value, got %s", e.Name, e.Want, e.Got)
}

// IsKindError returns true if the error is a kind mismatch.
func IsKindError(err error) bool {
	var ke *KindError
	return errors.As(err, &ke)
}

// CycleError reports a cyclic dependents graph detected at the end of
// Initialise. A cycle would re-enqueue the same names without bound during
// Refresh, so it is rejected at construction time instead.
//
// Path holds one witness cycle in dependency order, first name repeated
// at the end (e.g. ["a", "b", "a"]).
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	out := e.Path[0]
	for _, name := range e.Path[1:] {
		out += " -> " + name
	}
	return "dependency cycle detected: " + out
}

// IsCycleError returns true if the error is a dependency cycle.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// ComputeError wraps a failure raised by a field's compute rule during
// Initialise, Refresh, or RefreshTask. The model is left as-is: the
// dependents index may be partially built for the failing field and no
// rollback is attempted.
type ComputeError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying compute failure.
func (e *ComputeError) Unwrap() error {
	return e.Err
}
