package types

import "fmt"

// Fact is the inferred (possibly partial) element type and shape attached
// to a graph edge. The zero Fact carries no information at all.
type Fact struct {
	DType DataType
	Shape Shape
}

// MakeFact returns a fact with both components known-or-partial as given.
func MakeFact(dt DataType, shape Shape) Fact {
	return Fact{DType: dt, Shape: shape}
}

// TypedFact returns a fact with a known element type and no shape info.
func TypedFact(dt DataType) Fact {
	return Fact{DType: dt, Shape: Unranked()}
}

// Equal reports whether two facts carry exactly the same information.
func (f Fact) Equal(other Fact) bool {
	return f.DType == other.DType && f.Shape.Equal(other.Shape)
}

// Unify merges two facts into the most specific fact consistent with both.
// Element types follow the same monotonic rule as dimensions: unknown
// unifies with anything and two distinct definite types conflict; no
// implicit coercion is ever performed. Unify is commutative and idempotent.
func (f Fact) Unify(other Fact) (Fact, error) {
	dt := f.DType
	switch {
	case dt == Invalid:
		dt = other.DType
	case other.DType == Invalid || other.DType == dt:
		// keep dt
	default:
		return Fact{}, &TypeConflictError{A: f.DType, B: other.DType}
	}
	shape, err := f.Shape.Unify(other.Shape)
	if err != nil {
		return Fact{}, err
	}
	return Fact{DType: dt, Shape: shape}, nil
}

// Refine unifies the fact with newer information and reports whether
// anything became more specific. Because unification only ever adds
// information, repeated refinement is monotonic.
func (f Fact) Refine(other Fact) (Fact, bool, error) {
	merged, err := f.Unify(other)
	if err != nil {
		return Fact{}, false, err
	}
	return merged, !merged.Equal(f), nil
}

// String pretty-prints the fact, e.g. "float32[1,?,3]" or "invalid?".
func (f Fact) String() string {
	return f.DType.String() + f.Shape.String()
}

// TypeConflictError reports two definite element types that cannot be
// unified.
type TypeConflictError struct {
	A, B DataType
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("element type conflict: %s vs %s", e.A, e.B)
}

// DimConflictError reports two definite dimensions that cannot be unified.
type DimConflictError struct {
	A, B Dim
}

func (e *DimConflictError) Error() string {
	return fmt.Sprintf("dimension conflict: %s vs %s", e.A, e.B)
}

// RankConflictError reports two ranked shapes of different rank.
type RankConflictError struct {
	A, B Shape
}

func (e *RankConflictError) Error() string {
	return fmt.Sprintf("rank conflict: %s vs %s", e.A, e.B)
}

// AxisConflictError reports a definite extent mismatch on one axis.
type AxisConflictError struct {
	Axis int
	A, B Shape
}

func (e *AxisConflictError) Error() string {
	return fmt.Sprintf("shape conflict on axis %d: %s vs %s", e.Axis, e.A, e.B)
}
