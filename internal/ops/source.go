package ops

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerSource() {
	r.Register("Const", translateConst)
	r.Register("Placeholder", translatePlaceholder)
	r.Register("PlaceholderV2", translatePlaceholder)
	r.Register("PlaceholderWithDefault", translatePlaceholderWithDefault)
	for _, kind := range []string{"Identity", "StopGradient", "PreventGradient", "CheckNumerics", "Snapshot"} {
		r.Register(kind, translateIdentity)
	}
	r.Register("NoOp", translateNoOp)
	r.Register("Cast", translateCast)
}

// ConstOp owns a materialized tensor literal. Its fact is fully determined
// from the start and seeds propagation.
type ConstOp struct {
	Value *types.Literal
}

func translateConst(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(0); err != nil {
		return nil, err
	}
	tensor, err := n.TensorAttr("value")
	if err != nil {
		return nil, err
	}
	lit, err := graphdef.LiteralFromTensor(tensor)
	if err != nil {
		return nil, &BadAttributeError{Attr: "value", Err: err}
	}
	if dt := n.OptionalTypeAttr("dtype"); dt.IsKnown() && dt != lit.DType() {
		return nil, &BadAttributeError{
			Attr: "dtype",
			Err:  &types.TypeConflictError{A: dt, B: lit.DType()},
		}
	}
	return &ConstOp{Value: lit}, nil
}

// Kind returns the source operator kind.
func (o *ConstOp) Kind() string { return "Const" }

// NumOutputs returns 1.
func (o *ConstOp) NumOutputs() int { return 1 }

// InferFacts pins the literal's exact type and shape.
func (o *ConstOp) InferFacts([]types.Fact) ([]types.Fact, error) {
	return []types.Fact{o.Value.Fact()}, nil
}

// PlaceholderOp is an externally fed graph input with a declared element
// type and an optional partial shape.
type PlaceholderOp struct {
	DType types.DataType
	Shape types.Shape
}

func translatePlaceholder(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(0); err != nil {
		return nil, err
	}
	dt, err := n.TypeAttr("dtype")
	if err != nil {
		return nil, err
	}
	return &PlaceholderOp{DType: dt, Shape: n.OptionalShapeAttr("shape")}, nil
}

func translatePlaceholderWithDefault(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	dt, err := n.TypeAttr("dtype")
	if err != nil {
		return nil, err
	}
	return &PlaceholderOp{DType: dt, Shape: n.OptionalShapeAttr("shape")}, nil
}

// Kind returns the source operator kind.
func (o *PlaceholderOp) Kind() string { return "Placeholder" }

// NumOutputs returns 1.
func (o *PlaceholderOp) NumOutputs() int { return 1 }

// InferFacts declares the fed type and whatever shape was promised.
func (o *PlaceholderOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	f := types.Fact{DType: o.DType, Shape: o.Shape.Clone()}
	if len(inputs) == 1 { // PlaceholderWithDefault refines from its default
		merged, err := f.Unify(inputs[0])
		if err != nil {
			return nil, err
		}
		f = merged
	}
	return []types.Fact{f}, nil
}

// IdentityOp forwards its input unchanged. Several source kinds reduce to
// it at inference time.
type IdentityOp struct {
	OpKind string
	T      types.DataType
}

func translateIdentity(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	return &IdentityOp{OpKind: n.Kind, T: n.OptionalTypeAttr("T")}, nil
}

// Kind returns the source operator kind.
func (o *IdentityOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *IdentityOp) NumOutputs() int { return 1 }

// InferFacts passes the input fact through.
func (o *IdentityOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dt, err := unifyDTypes(o.T, inputs[0].DType)
	if err != nil {
		return nil, err
	}
	return []types.Fact{{DType: dt, Shape: inputs[0].Shape.Clone()}}, nil
}

// NoOp anchors control dependencies and produces nothing.
type NoOp struct{}

func translateNoOp(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(0); err != nil {
		return nil, err
	}
	return &NoOp{}, nil
}

// Kind returns the source operator kind.
func (o *NoOp) Kind() string { return "NoOp" }

// NumOutputs returns 0.
func (o *NoOp) NumOutputs() int { return 0 }

// InferFacts has nothing to infer.
func (o *NoOp) InferFacts([]types.Fact) ([]types.Fact, error) {
	return nil, nil
}

// CastOp changes the element type explicitly. This is the only sanctioned
// element-type transition in the graph.
type CastOp struct {
	SrcT types.DataType
	DstT types.DataType
}

func translateCast(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	src, err := n.TypeAttr("SrcT")
	if err != nil {
		return nil, err
	}
	dst, err := n.TypeAttr("DstT")
	if err != nil {
		return nil, err
	}
	return &CastOp{SrcT: src, DstT: dst}, nil
}

// Kind returns the source operator kind.
func (o *CastOp) Kind() string { return "Cast" }

// NumOutputs returns 1.
func (o *CastOp) NumOutputs() int { return 1 }

// InferFacts checks the input against SrcT and retypes the output to DstT.
func (o *CastOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	if _, err := unifyDTypes(o.SrcT, inputs[0].DType); err != nil {
		return nil, err
	}
	return []types.Fact{{DType: o.DstT, Shape: inputs[0].Shape.Clone()}}, nil
}
