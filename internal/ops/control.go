package ops

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerControl() {
	r.Register("Enter", translateLoopMarker)
	r.Register("Exit", translateLoopMarker)
	r.Register("NextIteration", translateLoopMarker)
	r.Register("LoopCond", translateLoopMarker)
	r.Register("Switch", translateLoopMarker)
	r.Register("Merge", translateLoopMarker)
}

// LoopMarkerOp represents the control-flow constructs that delimit loop
// frames. The assembler keeps loop bodies flattened with an explicit
// back-edge; these markers only forward facts and carry the frame name.
type LoopMarkerOp struct {
	OpKind string
	Frame  string // set on Enter
	T      types.DataType
}

func translateLoopMarker(n *TranslateNode) (graph.Op, error) {
	op := &LoopMarkerOp{OpKind: n.Kind, T: n.OptionalTypeAttr("T")}
	switch n.Kind {
	case "Enter":
		frame, err := n.StringAttr("frame_name")
		if err != nil {
			return nil, err
		}
		op.Frame = frame
		if err := n.requireInputs(1); err != nil {
			return nil, err
		}
	case "Exit", "NextIteration", "LoopCond":
		if err := n.requireInputs(1); err != nil {
			return nil, err
		}
	case "Switch":
		if err := n.requireInputs(2); err != nil {
			return nil, err
		}
	case "Merge":
		if err := n.requireMinInputs(1); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// Kind returns the source operator kind.
func (o *LoopMarkerOp) Kind() string { return o.OpKind }

// NumOutputs returns 2 for Switch (the two branches) and Merge (value plus
// taken-index), 1 otherwise.
func (o *LoopMarkerOp) NumOutputs() int {
	if o.OpKind == "Switch" || o.OpKind == "Merge" {
		return 2
	}
	return 1
}

// InferFacts forwards facts through the marker. Merge joins its inputs
// leniently: iterations may disagree on extents, so disagreeing dimensions
// degrade to unknown instead of conflicting, while element types must
// still agree.
func (o *LoopMarkerOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	switch o.OpKind {
	case "LoopCond":
		if _, err := unifyDTypes(types.Bool, inputs[0].DType); err != nil {
			return nil, err
		}
		return []types.Fact{{DType: types.Bool, Shape: types.Scalar()}}, nil
	case "Switch":
		if _, err := unifyDTypes(types.Bool, inputs[1].DType); err != nil {
			return nil, err
		}
		dt, err := unifyDTypes(o.T, inputs[0].DType)
		if err != nil {
			return nil, err
		}
		out := types.Fact{DType: dt, Shape: inputs[0].Shape.Clone()}
		return []types.Fact{out, out}, nil
	case "Merge":
		dts := []types.DataType{o.T}
		for _, in := range inputs {
			dts = append(dts, in.DType)
		}
		dt, err := unifyDTypes(dts...)
		if err != nil {
			return nil, err
		}
		shape := inputs[0].Shape.Clone()
		for _, in := range inputs[1:] {
			shape = lenientMerge(shape, in.Shape)
		}
		return []types.Fact{
			{DType: dt, Shape: shape},
			{DType: types.Int32, Shape: types.Scalar()},
		}, nil
	default: // Enter, Exit, NextIteration
		dt, err := unifyDTypes(o.T, inputs[0].DType)
		if err != nil {
			return nil, err
		}
		return []types.Fact{{DType: dt, Shape: inputs[0].Shape.Clone()}}, nil
	}
}

// lenientMerge keeps only the shape information both sides agree on. An
// unranked side carries no information yet (the back-edge before its first
// refinement) and defers to the other, which lets loop facts settle.
func lenientMerge(a, b types.Shape) (out types.Shape) {
	if !a.Ranked {
		return b.Clone()
	}
	if !b.Ranked {
		return a.Clone()
	}
	if a.Rank() != b.Rank() {
		return types.Unranked()
	}
	dims := make([]types.Dim, a.Rank())
	for i := range dims {
		if a.Dims[i] == b.Dims[i] {
			dims[i] = a.Dims[i]
		} else {
			dims[i] = types.DimUnknown
		}
	}
	return types.MakeShape(dims...)
}
