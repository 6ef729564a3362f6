// Package value defines the tagged value variant carried by graph fields.
//
// A field value is either a Scalar (single float64) or a Vector (ordered
// sequence of float64). The kind is decided at field declaration time and
// drives the change-comparison strategy during propagation. There is no
// runtime shape inspection - the tag is the source of truth.
package value

import (
	"encoding/json"
	"fmt"
)

// Value is a sealed interface over the two field value kinds.
// Only Scalar and Vector implement it.
type Value interface {
	fieldValue() // Sealed - only these types implement it
	Kind() Kind
}

// Kind classifies a Value and selects its comparison strategy.
type Kind int

const (
	// KindScalar compares by direct inequality.
	KindScalar Kind = iota + 1
	// KindVector compares by element sum (see Equal).
	KindVector
)

// String returns the kind name for logging and error messages.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scalar is a single numeric value.
type Scalar float64

func (Scalar) fieldValue() {}

// Kind returns KindScalar.
func (Scalar) Kind() Kind { return KindScalar }

// Vector is an ordered sequence of numeric values.
type Vector []float64

func (Vector) fieldValue() {}

// Kind returns KindVector.
func (Vector) Kind() Kind { return KindVector }

// Sum returns the sum of all elements.
func (v Vector) Sum() float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	return total
}

// Equal reports whether old and new compare as unchanged under the kind's
// comparison strategy.
//
// Scalars compare by direct equality. Vectors compare by element sum: two
// distinct vectors with equal sums compare as equal. This under-detects
// change and is a deliberate cost/precision trade-off inherited from the
// propagation contract - callers who need exact vector comparison must not
// rely on refresh deltas to surface sum-preserving rearrangements.
//
// Values of different kinds never compare equal. A nil value (uninitialised
// field) compares equal only to another nil.
func Equal(old, new Value) bool {
	if old == nil || new == nil {
		return old == nil && new == nil
	}
	switch o := old.(type) {
	case Scalar:
		n, ok := new.(Scalar)
		return ok && o == n
	case Vector:
		n, ok := new.(Vector)
		return ok && o.Sum() == n.Sum()
	default:
		return false
	}
}

// MarshalJSON encodes a Scalar as a JSON number.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(s))
}

// MarshalJSON encodes a Vector as a JSON array of numbers.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64(v))
}

// Unmarshal decodes a JSON value into the appropriate Value type.
// Numbers become Scalar, arrays of numbers become Vector. Anything else
// is rejected.
func Unmarshal(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	if data[0] == '[' {
		var elems []float64
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("decode vector: %w", err)
		}
		return Vector(elems), nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scalar: %w", err)
	}
	return Scalar(f), nil
}
