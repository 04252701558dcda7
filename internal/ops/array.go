package ops

import (
	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerArray() {
	r.Register("Reshape", translateReshape)
	r.Register("Transpose", translateTranspose)
	r.Register("Squeeze", translateSqueeze)
	r.Register("ExpandDims", translateExpandDims)
	r.Register("Concat", translateConcat)
	r.Register("ConcatV2", translateConcat)
	r.Register("Pad", translatePad)
	r.Register("PadV2", translatePad)
	r.Register("Pack", translatePack)
	r.Register("Shape", translateShape)
}

// ReshapeOp reinterprets its input under new dimensions. Dims come from a
// constant input when available; -1 marks the single inferred extent.
type ReshapeOp struct {
	Dims  []int64
	Known bool
	T     types.DataType
}

func translateReshape(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	op := &ReshapeOp{T: n.OptionalTypeAttr("T")}
	if lit := n.InputLiteral(1); lit != nil {
		dims, err := lit.Int64s()
		if err != nil {
			return nil, &BadAttributeError{Attr: "shape", Err: err}
		}
		op.Dims = dims
		op.Known = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *ReshapeOp) Kind() string { return "Reshape" }

// NumOutputs returns 1.
func (o *ReshapeOp) NumOutputs() int { return 1 }

// InferFacts fixes the output shape from the target dims, resolving a -1
// wildcard when the input element count is fully known.
func (o *ReshapeOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	if !o.Known {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	dims := make([]types.Dim, len(o.Dims))
	wildcard := -1
	known := int64(1)
	for i, d := range o.Dims {
		if d == -1 {
			if wildcard >= 0 {
				return nil, errors.Errorf("reshape has multiple -1 dims")
			}
			wildcard = i
			dims[i] = types.DimUnknown
			continue
		}
		dims[i] = types.Dim(d)
		known *= d
	}
	if wildcard >= 0 {
		if n := inputs[0].Shape.NumElements(); n >= 0 && known > 0 {
			if n%known != 0 {
				return nil, errors.Errorf("cannot reshape %d elements into %v", n, o.Dims)
			}
			dims[wildcard] = types.Dim(n / known)
		}
	}
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// TransposeOp permutes axes according to a constant permutation.
type TransposeOp struct {
	Perm  []int64
	Known bool
	T     types.DataType
}

func translateTranspose(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	op := &TransposeOp{T: n.OptionalTypeAttr("T")}
	if lit := n.InputLiteral(1); lit != nil {
		perm, err := lit.Int64s()
		if err != nil {
			return nil, &BadAttributeError{Attr: "perm", Err: err}
		}
		op.Perm = perm
		op.Known = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *TransposeOp) Kind() string { return "Transpose" }

// NumOutputs returns 1.
func (o *TransposeOp) NumOutputs() int { return 1 }

// InferFacts permutes the input dimensions; an unknown permutation still
// preserves rank.
func (o *TransposeOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	in := inputs[0].Shape
	if !in.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := in.Rank()
	if !o.Known {
		dims := make([]types.Dim, rank)
		for i := range dims {
			dims[i] = types.DimUnknown
		}
		return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
	}
	if len(o.Perm) != rank {
		return nil, errors.Errorf("permutation %v does not match rank %d", o.Perm, rank)
	}
	dims := make([]types.Dim, rank)
	for i, p := range o.Perm {
		if p < 0 || p >= int64(rank) {
			return nil, errors.Errorf("permutation axis %d out of range for rank %d", p, rank)
		}
		dims[i] = in.Dims[p]
	}
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// SqueezeOp removes size-1 axes: the declared ones, or every definite 1
// when none are declared.
type SqueezeOp struct {
	Axes []int64
	T    types.DataType
}

func translateSqueeze(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	return &SqueezeOp{Axes: n.OptionalIntsAttr("squeeze_dims"), T: n.OptionalTypeAttr("T")}, nil
}

// Kind returns the source operator kind.
func (o *SqueezeOp) Kind() string { return "Squeeze" }

// NumOutputs returns 1.
func (o *SqueezeOp) NumOutputs() int { return 1 }

// InferFacts drops the squeezed axes. A declared axis with a definite
// extent other than 1 is a shape error; squeezing all-1 axes of a shape
// with unknown extents yields an unranked result.
func (o *SqueezeOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	in := inputs[0].Shape
	if !in.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := in.Rank()
	if len(o.Axes) == 0 {
		var dims []types.Dim
		for _, d := range in.Dims {
			if !d.IsKnown() {
				// cannot tell whether this axis squeezes away
				return []types.Fact{types.TypedFact(dt)}, nil
			}
			if d != 1 {
				dims = append(dims, d)
			}
		}
		return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
	}
	drop := make(map[int]bool, len(o.Axes))
	for _, a := range o.Axes {
		if a < 0 {
			a += int64(rank)
		}
		if a < 0 || a >= int64(rank) {
			return nil, errors.Errorf("squeeze axis %d out of range for rank %d", a, rank)
		}
		if d := in.Dims[a]; d.IsKnown() && d != 1 {
			return nil, &types.DimConflictError{A: d, B: 1}
		}
		drop[int(a)] = true
	}
	var dims []types.Dim
	for i, d := range in.Dims {
		if !drop[i] {
			dims = append(dims, d)
		}
	}
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// ExpandDimsOp inserts a size-1 axis at a constant position.
type ExpandDimsOp struct {
	Axis  int64
	Known bool
	T     types.DataType
}

func translateExpandDims(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	op := &ExpandDimsOp{T: n.OptionalTypeAttr("T")}
	if lit := n.InputLiteral(1); lit != nil {
		axes, err := lit.Int64s()
		if err != nil || len(axes) != 1 {
			return nil, &BadAttributeError{Attr: "dim", Err: errors.New("axis must be a scalar integer")}
		}
		op.Axis = axes[0]
		op.Known = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *ExpandDimsOp) Kind() string { return "ExpandDims" }

// NumOutputs returns 1.
func (o *ExpandDimsOp) NumOutputs() int { return 1 }

// InferFacts inserts the new axis.
func (o *ExpandDimsOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	in := inputs[0].Shape
	if !in.Ranked || !o.Known {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := in.Rank()
	axis := o.Axis
	if axis < 0 {
		axis += int64(rank) + 1
	}
	if axis < 0 || axis > int64(rank) {
		return nil, errors.Errorf("expand axis %d out of range for rank %d", o.Axis, rank)
	}
	dims := make([]types.Dim, 0, rank+1)
	dims = append(dims, in.Dims[:axis]...)
	dims = append(dims, 1)
	dims = append(dims, in.Dims[axis:]...)
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// ConcatOp joins N inputs along one axis. The legacy Concat form takes
// the axis input first, ConcatV2 takes it last.
type ConcatOp struct {
	OpKind    string
	N         int
	Axis      int64
	AxisKnown bool
	T         types.DataType
}

func translateConcat(n *TranslateNode) (graph.Op, error) {
	if err := n.requireMinInputs(2); err != nil {
		return nil, err
	}
	axisInput := n.NumInputs - 1
	if n.Kind == "Concat" {
		axisInput = 0
	}
	op := &ConcatOp{OpKind: n.Kind, N: n.NumInputs - 1, T: n.OptionalTypeAttr("T")}
	if lit := n.InputLiteral(axisInput); lit != nil {
		axes, err := lit.Int64s()
		if err != nil || len(axes) != 1 {
			return nil, &BadAttributeError{Attr: "axis", Err: errors.New("axis must be a scalar integer")}
		}
		op.Axis = axes[0]
		op.AxisKnown = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *ConcatOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *ConcatOp) NumOutputs() int { return 1 }

// InferFacts sums extents along the concat axis and unifies the rest.
func (o *ConcatOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	values := inputs[:len(inputs)-1]
	if o.OpKind == "Concat" {
		values = inputs[1:]
	}
	dts := []types.DataType{o.T}
	for _, v := range values {
		dts = append(dts, v.DType)
	}
	dt, err := unifyDTypes(dts...)
	if err != nil {
		return nil, err
	}
	if !o.AxisKnown {
		return []types.Fact{types.TypedFact(dt)}, nil
	}

	out := types.Unranked()
	for _, v := range values {
		if !v.Shape.Ranked {
			return []types.Fact{types.TypedFact(dt)}, nil
		}
		if !out.Ranked {
			out = v.Shape.Clone()
			continue
		}
		if out.Rank() != v.Shape.Rank() {
			return nil, &types.RankConflictError{A: out, B: v.Shape}
		}
	}
	rank := out.Rank()
	axis := o.Axis
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return nil, errors.Errorf("concat axis %d out of range for rank %d", o.Axis, rank)
	}

	dims := make([]types.Dim, rank)
	total := types.Dim(0)
	for i := 0; i < rank; i++ {
		if int64(i) == axis {
			continue
		}
		d := types.DimUnknown
		for _, v := range values {
			d2, err := unifyOffAxis(d, v.Shape.Dims[i])
			if err != nil {
				return nil, &types.AxisConflictError{Axis: i, A: out, B: v.Shape}
			}
			d = d2
		}
		dims[i] = d
	}
	for _, v := range values {
		d := v.Shape.Dims[axis]
		if !d.IsKnown() || !total.IsKnown() {
			total = types.DimUnknown
			continue
		}
		total += d
	}
	dims[axis] = total
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

func unifyOffAxis(a, b types.Dim) (types.Dim, error) {
	switch {
	case !a.IsKnown():
		return b, nil
	case !b.IsKnown():
		return a, nil
	case a == b:
		return a, nil
	default:
		return types.DimUnknown, &types.DimConflictError{A: a, B: b}
	}
}

// PadOp grows each axis by constant before/after amounts.
type PadOp struct {
	Pads  [][2]int64
	Known bool
	T     types.DataType
}

func translatePad(n *TranslateNode) (graph.Op, error) {
	if err := n.requireMinInputs(2); err != nil {
		return nil, err
	}
	op := &PadOp{T: n.OptionalTypeAttr("T")}
	if lit := n.InputLiteral(1); lit != nil {
		flat, err := lit.Int64s()
		if err != nil || len(flat)%2 != 0 {
			return nil, &BadAttributeError{Attr: "paddings", Err: errors.New("paddings must be [n,2] integers")}
		}
		op.Pads = make([][2]int64, len(flat)/2)
		for i := range op.Pads {
			op.Pads[i] = [2]int64{flat[2*i], flat[2*i+1]}
		}
		op.Known = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *PadOp) Kind() string { return "Pad" }

// NumOutputs returns 1.
func (o *PadOp) NumOutputs() int { return 1 }

// InferFacts grows the padded axes.
func (o *PadOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	in := inputs[0].Shape
	if !in.Ranked || !o.Known {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	if len(o.Pads) != in.Rank() {
		return nil, errors.Errorf("paddings cover %d axes, input has rank %d", len(o.Pads), in.Rank())
	}
	dims := make([]types.Dim, in.Rank())
	for i, d := range in.Dims {
		if !d.IsKnown() {
			dims[i] = types.DimUnknown
			continue
		}
		dims[i] = d + types.Dim(o.Pads[i][0]+o.Pads[i][1])
	}
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// PackOp stacks N same-shaped inputs along a new axis.
type PackOp struct {
	N    int
	Axis int64
	T    types.DataType
}

func translatePack(n *TranslateNode) (graph.Op, error) {
	if err := n.requireMinInputs(1); err != nil {
		return nil, err
	}
	return &PackOp{
		N:    n.NumInputs,
		Axis: n.OptionalIntAttr("axis", 0),
		T:    n.OptionalTypeAttr("T"),
	}, nil
}

// Kind returns the source operator kind.
func (o *PackOp) Kind() string { return "Pack" }

// NumOutputs returns 1.
func (o *PackOp) NumOutputs() int { return 1 }

// InferFacts unifies the element shapes and inserts the stacking axis.
func (o *PackOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dts := []types.DataType{o.T}
	for _, in := range inputs {
		dts = append(dts, in.DType)
	}
	dt, err := unifyDTypes(dts...)
	if err != nil {
		return nil, err
	}
	elem := types.Unranked()
	for _, in := range inputs {
		elem, err = elem.Unify(in.Shape)
		if err != nil {
			return nil, err
		}
	}
	if !elem.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := elem.Rank()
	axis := o.Axis
	if axis < 0 {
		axis += int64(rank) + 1
	}
	if axis < 0 || axis > int64(rank) {
		return nil, errors.Errorf("pack axis %d out of range for rank %d", o.Axis, rank)
	}
	dims := make([]types.Dim, 0, rank+1)
	dims = append(dims, elem.Dims[:axis]...)
	dims = append(dims, types.Dim(o.N))
	dims = append(dims, elem.Dims[axis:]...)
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}

// ShapeOp reports its input's shape as a rank-1 integer tensor.
type ShapeOp struct {
	OutT types.DataType
}

func translateShape(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	out := n.OptionalTypeAttr("out_type")
	if out == types.Invalid {
		out = types.Int32
	}
	return &ShapeOp{OutT: out}, nil
}

// Kind returns the source operator kind.
func (o *ShapeOp) Kind() string { return "Shape" }

// NumOutputs returns 1.
func (o *ShapeOp) NumOutputs() int { return 1 }

// InferFacts pins the output to [rank] once the input's rank is known.
func (o *ShapeOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	if !inputs[0].Shape.Ranked {
		return []types.Fact{{DType: o.OutT, Shape: types.MakeShape(types.DimUnknown)}}, nil
	}
	return []types.Fact{{DType: o.OutT, Shape: types.MakeShape(types.Dim(inputs[0].Shape.Rank()))}}, nil
}
