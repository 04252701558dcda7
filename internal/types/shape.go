package types

import (
	"fmt"
	"strings"
)

// Dim is a single tensor dimension. A non-negative value is definite;
// DimUnknown marks a symbolic dimension whose extent is not (yet) known.
type Dim int64

// DimUnknown is the symbolic unknown dimension.
const DimUnknown Dim = -1

// IsKnown reports whether the dimension has a definite extent.
func (d Dim) IsKnown() bool { return d >= 0 }

func (d Dim) String() string {
	if !d.IsKnown() {
		return "?"
	}
	return fmt.Sprintf("%d", int64(d))
}

// unifyDim merges two dimensions. Unknown unifies with anything; two
// definite values must agree.
func unifyDim(a, b Dim) (Dim, error) {
	switch {
	case !a.IsKnown():
		return b, nil
	case !b.IsKnown():
		return a, nil
	case a == b:
		return a, nil
	default:
		return DimUnknown, &DimConflictError{A: a, B: b}
	}
}

// Shape describes the dimensions of a tensor edge. An unranked shape
// (Ranked == false) carries no information at all; a ranked shape fixes the
// number of axes but may leave individual extents unknown.
type Shape struct {
	Dims   []Dim
	Ranked bool
}

// MakeShape returns a ranked shape with the given dimensions.
func MakeShape(dims ...Dim) Shape {
	out := make([]Dim, len(dims))
	copy(out, dims)
	return Shape{Dims: out, Ranked: true}
}

// MakeShapeFromInts returns a ranked shape from int64 extents, mapping
// negatives to DimUnknown.
func MakeShapeFromInts(dims ...int64) Shape {
	out := make([]Dim, len(dims))
	for i, d := range dims {
		if d < 0 {
			out[i] = DimUnknown
		} else {
			out[i] = Dim(d)
		}
	}
	return Shape{Dims: out, Ranked: true}
}

// Unranked returns the shape carrying no rank information.
func Unranked() Shape { return Shape{} }

// Scalar returns the rank-0 shape.
func Scalar() Shape { return Shape{Dims: []Dim{}, Ranked: true} }

// Rank returns the number of axes, or -1 for an unranked shape.
func (s Shape) Rank() int {
	if !s.Ranked {
		return -1
	}
	return len(s.Dims)
}

// IsFullyKnown reports whether the shape is ranked with all extents definite.
func (s Shape) IsFullyKnown() bool {
	if !s.Ranked {
		return false
	}
	for _, d := range s.Dims {
		if !d.IsKnown() {
			return false
		}
	}
	return true
}

// NumElements returns the element count for a fully known shape, or -1.
func (s Shape) NumElements() int64 {
	if !s.IsFullyKnown() {
		return -1
	}
	n := int64(1)
	for _, d := range s.Dims {
		n *= int64(d)
	}
	return n
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	if !s.Ranked {
		return Shape{}
	}
	dims := make([]Dim, len(s.Dims))
	copy(dims, s.Dims)
	return Shape{Dims: dims, Ranked: true}
}

// Equal reports whether two shapes carry exactly the same information.
func (s Shape) Equal(other Shape) bool {
	if s.Ranked != other.Ranked {
		return false
	}
	if !s.Ranked {
		return true
	}
	if len(s.Dims) != len(other.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

// Unify merges two shapes into the most specific shape consistent with
// both. Unranked unifies with anything; ranks must agree; per-axis extents
// merge via unifyDim. Unify is commutative and idempotent.
func (s Shape) Unify(other Shape) (Shape, error) {
	if !s.Ranked {
		return other.Clone(), nil
	}
	if !other.Ranked {
		return s.Clone(), nil
	}
	if len(s.Dims) != len(other.Dims) {
		return Shape{}, &RankConflictError{A: s.Clone(), B: other.Clone()}
	}
	dims := make([]Dim, len(s.Dims))
	for i := range s.Dims {
		d, err := unifyDim(s.Dims[i], other.Dims[i])
		if err != nil {
			return Shape{}, &AxisConflictError{Axis: i, A: s.Clone(), B: other.Clone()}
		}
		dims[i] = d
	}
	return Shape{Dims: dims, Ranked: true}, nil
}

// String pretty-prints the shape: "[1,?,3]", "[]" for scalars, "?" unranked.
func (s Shape) String() string {
	if !s.Ranked {
		return "?"
	}
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// BroadcastShapes merges two input shapes under NumPy-style broadcasting,
// producing the best-known output shape. Axes are compared right-to-left;
// a definite 1 broadcasts against the other extent; an unknown extent
// yields the other extent when that one is definite and not 1, and unknown
// otherwise. Incompatible definite extents are an error.
func BroadcastShapes(a, b Shape) (Shape, error) {
	if !a.Ranked || !b.Ranked {
		return Unranked(), nil
	}
	rank := len(a.Dims)
	if len(b.Dims) > rank {
		rank = len(b.Dims)
	}
	dims := make([]Dim, rank)
	for i := 0; i < rank; i++ {
		da, db := Dim(1), Dim(1)
		if idx := len(a.Dims) - 1 - i; idx >= 0 {
			da = a.Dims[idx]
		}
		if idx := len(b.Dims) - 1 - i; idx >= 0 {
			db = b.Dims[idx]
		}
		out := rank - 1 - i
		switch {
		case da == 1:
			dims[out] = db
		case db == 1:
			dims[out] = da
		case !da.IsKnown() && !db.IsKnown():
			dims[out] = DimUnknown
		case !da.IsKnown():
			dims[out] = db
		case !db.IsKnown():
			dims[out] = da
		case da == db:
			dims[out] = da
		default:
			return Shape{}, &AxisConflictError{Axis: out, A: a.Clone(), B: b.Clone()}
		}
	}
	return Shape{Dims: dims, Ranked: true}, nil
}
