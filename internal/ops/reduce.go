package ops

import (
	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerReduce() {
	for _, kind := range []string{"Sum", "Mean", "Max", "Min", "Prod", "All", "Any"} {
		r.Register(kind, translateReduce)
	}
}

// ReduceOp collapses the given axes. Axes usually arrive as a constant
// input; when they are runtime-determined the output stays unranked, which
// is valid, not an error.
type ReduceOp struct {
	OpKind    string
	T         types.DataType
	KeepDims  bool
	Axes      []int64
	AxesKnown bool
}

func translateReduce(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	op := &ReduceOp{
		OpKind:   n.Kind,
		T:        n.OptionalTypeAttr("T"),
		KeepDims: n.OptionalBoolAttr("keep_dims", false),
	}
	if lit := n.InputLiteral(1); lit != nil {
		axes, err := lit.Int64s()
		if err != nil {
			return nil, &BadAttributeError{Attr: "reduction_indices", Err: err}
		}
		op.Axes = axes
		op.AxesKnown = true
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *ReduceOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *ReduceOp) NumOutputs() int { return 1 }

// InferFacts removes (or pins to 1) the reduced axes when they are known.
func (o *ReduceOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	in := inputs[0].Shape
	if !in.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := in.Rank()

	if !o.AxesKnown {
		if !o.KeepDims {
			return []types.Fact{types.TypedFact(dt)}, nil
		}
		dims := make([]types.Dim, rank)
		for i := range dims {
			dims[i] = types.DimUnknown
		}
		return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
	}

	reduced := make(map[int]bool, len(o.Axes))
	for _, a := range o.Axes {
		if a < 0 {
			a += int64(rank)
		}
		if a < 0 || a >= int64(rank) {
			return nil, errors.Errorf("reduction axis %d out of range for rank %d", a, rank)
		}
		reduced[int(a)] = true
	}
	var dims []types.Dim
	for i, d := range in.Dims {
		switch {
		case !reduced[i]:
			dims = append(dims, d)
		case o.KeepDims:
			dims = append(dims, 1)
		}
	}
	return []types.Fact{{DType: dt, Shape: types.MakeShape(dims...)}}, nil
}
