package ops

import "github.com/loom-ml/loom/internal/types"

// OpaqueOp stands in for an unrecognized operator kind when loading is
// not strict. It contributes an element type when the node declared one
// and nothing else; downstream shapes degrade to unranked.
type OpaqueOp struct {
	OpKind  string
	Outputs int
	T       types.DataType
}

func (o *OpaqueOp) Kind() string { return o.OpKind }

func (o *OpaqueOp) NumOutputs() int { return o.Outputs }

func (o *OpaqueOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	out := make([]types.Fact, o.Outputs)
	for i := range out {
		out[i] = types.Fact{DType: o.T, Shape: types.Unranked()}
	}
	return out, nil
}
