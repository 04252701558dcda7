package ops

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerMath() {
	for _, kind := range []string{
		"Add", "AddV2", "Sub", "Mul", "RealDiv", "Div", "FloorDiv",
		"Maximum", "Minimum", "Pow", "SquaredDifference",
	} {
		r.Register(kind, translateBinary)
	}
	for _, kind := range []string{
		"Neg", "Abs", "Sqrt", "Rsqrt", "Exp", "Log", "Floor", "Ceil",
		"Square", "Relu", "Relu6", "Elu", "Selu", "Sigmoid", "Tanh",
		"Softmax", "LogSoftmax", "LeakyRelu",
	} {
		r.Register(kind, translateUnary)
	}
	r.Register("MatMul", translateMatMul)
	r.Register("BatchMatMul", translateBatchMatMul)
	r.Register("BatchMatMulV2", translateBatchMatMul)
	r.Register("BiasAdd", translateBiasAdd)
}

// unifyDTypes merges known element types; two distinct definite types
// conflict, since no implicit coercion is performed.
func unifyDTypes(dts ...types.DataType) (types.DataType, error) {
	out := types.Invalid
	for _, dt := range dts {
		if dt == types.Invalid {
			continue
		}
		if out == types.Invalid {
			out = dt
			continue
		}
		if out != dt {
			return types.Invalid, &types.TypeConflictError{A: out, B: dt}
		}
	}
	return out, nil
}

// BinaryOp is an elementwise two-input operator with NumPy-style
// broadcasting between its inputs.
type BinaryOp struct {
	OpKind string
	T      types.DataType // declared element type, unknown if undeclared
}

func translateBinary(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	return &BinaryOp{OpKind: n.Kind, T: n.OptionalTypeAttr("T")}, nil
}

// Kind returns the source operator kind.
func (o *BinaryOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *BinaryOp) NumOutputs() int { return 1 }

// InferFacts broadcasts the input shapes and unifies the element types.
func (o *BinaryOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType, inputs[1].DType)
	if err != nil {
		return nil, err
	}
	shape, err := types.BroadcastShapes(inputs[0].Shape, inputs[1].Shape)
	if err != nil {
		return nil, err
	}
	return []types.Fact{{DType: dt, Shape: shape}}, nil
}

// UnaryOp is an elementwise one-input operator; the output fact mirrors
// the input. Alpha carries LeakyRelu's slope, Axis carries the softmax
// axis; both are normalized here so the evaluator never re-reads source
// attributes.
type UnaryOp struct {
	OpKind string
	T      types.DataType
	Alpha  float32
	Axis   int64
}

func translateUnary(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	op := &UnaryOp{
		OpKind: n.Kind,
		T:      n.OptionalTypeAttr("T"),
		Alpha:  n.OptionalFloatAttr("alpha", 0.2),
		Axis:   n.OptionalIntAttr("axis", -1),
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *UnaryOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *UnaryOp) NumOutputs() int { return 1 }

// InferFacts passes the input fact through, reconciled with the declared
// element type.
func (o *UnaryOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	return []types.Fact{{DType: dt, Shape: inputs[0].Shape.Clone()}}, nil
}

// MatMulOp multiplies two matrices, or batches of matrices with broadcast
// leading dimensions when Batch is set.
type MatMulOp struct {
	TransposeA bool
	TransposeB bool
	Batch      bool
	T          types.DataType
}

func translateMatMul(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	return &MatMulOp{
		TransposeA: n.OptionalBoolAttr("transpose_a", false),
		TransposeB: n.OptionalBoolAttr("transpose_b", false),
		T:          n.OptionalTypeAttr("T"),
	}, nil
}

func translateBatchMatMul(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	return &MatMulOp{
		TransposeA: n.OptionalBoolAttr("adj_x", false),
		TransposeB: n.OptionalBoolAttr("adj_y", false),
		Batch:      true,
		T:          n.OptionalTypeAttr("T"),
	}, nil
}

// Kind returns the source operator kind.
func (o *MatMulOp) Kind() string {
	if o.Batch {
		return "BatchMatMul"
	}
	return "MatMul"
}

// NumOutputs returns 1.
func (o *MatMulOp) NumOutputs() int { return 1 }

// InferFacts contracts the inner dimensions and, for the batch form,
// broadcasts the leading ones.
func (o *MatMulOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType, inputs[1].DType)
	if err != nil {
		return nil, err
	}
	a, b := inputs[0].Shape, inputs[1].Shape
	if !a.Ranked || !b.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	if !o.Batch && (a.Rank() != 2 || b.Rank() != 2) {
		return nil, &types.RankConflictError{A: a, B: b}
	}
	if a.Rank() < 2 || b.Rank() < 2 {
		return nil, &types.RankConflictError{A: a, B: b}
	}

	am, ak := a.Dims[a.Rank()-2], a.Dims[a.Rank()-1]
	if o.TransposeA {
		am, ak = ak, am
	}
	bk, bn := b.Dims[b.Rank()-2], b.Dims[b.Rank()-1]
	if o.TransposeB {
		bk, bn = bn, bk
	}
	if ak.IsKnown() && bk.IsKnown() && ak != bk {
		return nil, &types.DimConflictError{A: ak, B: bk}
	}

	lead := types.Scalar()
	if o.Batch {
		la := types.MakeShape(a.Dims[:a.Rank()-2]...)
		lb := types.MakeShape(b.Dims[:b.Rank()-2]...)
		lead, err = types.BroadcastShapes(la, lb)
		if err != nil {
			return nil, err
		}
	}
	out := append(append([]types.Dim{}, lead.Dims...), am, bn)
	return []types.Fact{{DType: dt, Shape: types.MakeShape(out...)}}, nil
}

// BiasAddOp adds a rank-1 bias along the channel dimension.
type BiasAddOp struct {
	Format ChannelPos
	T      types.DataType
}

func translateBiasAdd(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	format, err := parseDataFormat(n.OptionalStringAttr("data_format", "NHWC"))
	if err != nil {
		return nil, &BadAttributeError{Attr: "data_format", Err: err}
	}
	return &BiasAddOp{Format: format, T: n.OptionalTypeAttr("T")}, nil
}

// Kind returns the source operator kind.
func (o *BiasAddOp) Kind() string { return "BiasAdd" }

// NumOutputs returns 1.
func (o *BiasAddOp) NumOutputs() int { return 1 }

// InferFacts keeps the value shape, checking the bias length against the
// channel dimension when both are definite.
func (o *BiasAddOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType, inputs[1].DType)
	if err != nil {
		return nil, err
	}
	value, bias := inputs[0].Shape, inputs[1].Shape
	if value.Ranked && bias.Ranked && bias.Rank() == 1 && value.Rank() > 0 {
		c := o.Format.ChannelAxis(value.Rank())
		cd, bd := value.Dims[c], bias.Dims[0]
		if cd.IsKnown() && bd.IsKnown() && cd != bd {
			return nil, &types.DimConflictError{A: cd, B: bd}
		}
	}
	return []types.Fact{{DType: dt, Shape: value.Clone()}}, nil
}
