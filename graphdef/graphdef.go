// Package graphdef imports serialized TensorFlow GraphDef graphs and
// translates them into typed, shape-annotated models for evaluation.
//
// The importer decodes the protobuf wire format directly, resolves the
// flat node list into a dataflow graph, maps every operator kind onto an
// internal operator set, and runs shape and element-type inference to a
// fixed point before handing back an immutable Model.
//
// # Supported Features
//
//   - GraphDef protobuf parsing, no generated code required
//   - 70+ operator kinds: arithmetic, reductions, convolution, pooling,
//     shape manipulation, loop control flow
//   - Partial shapes: unknown dimensions and unranked tensors survive
//     translation and are refined as far as the graph allows
//   - Named input/output selection and caller-pinned input shapes
//
// # Example Usage
//
//	import "github.com/loom-ml/loom/graphdef"
//
//	model, err := graphdef.Load("frozen_graph.pb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, name := range model.OutputNames() {
//	    o, _ := model.Output(name)
//	    fmt.Println(name, model.Fact(o))
//	}
//
// For custom options:
//
//	opts := graphdef.DefaultOptions()
//	opts.Strict = false
//	opts.InputShapes = map[string]graphdef.Shape{
//	    "input": graphdef.MakeShapeFromInts(1, 224, 224, 3),
//	}
//	model, err := graphdef.Load("frozen_graph.pb", opts)
//
// Use [ListSupportedOps] for the complete operator list.
package graphdef

import (
	"github.com/loom-ml/loom/internal/model"
	"github.com/loom-ml/loom/internal/ops"
	"github.com/loom-ml/loom/internal/types"
)

// Options configures loading behavior.
type Options = model.Options

// DefaultOptions returns the default loading options: strict operator
// checking and the default propagation bound.
func DefaultOptions() Options {
	return model.DefaultOptions()
}

// Load reads a serialized GraphDef from a file and translates it.
func Load(path string, opts ...Options) (*Model, error) {
	return model.Load(path, opts...)
}

// LoadFromBytes translates a serialized GraphDef held in memory.
func LoadFromBytes(data []byte, opts ...Options) (*Model, error) {
	return model.LoadFromBytes(data, opts...)
}

// GraphInfo summarizes a serialized graph without translating it.
type GraphInfo = model.GraphInfo

// ReadGraphInfo decodes a graph file and reports node count, operator
// kinds and likely inputs/outputs without running translation.
func ReadGraphInfo(path string) (*GraphInfo, error) {
	return model.ReadGraphInfo(path)
}

// ListSupportedOps returns every operator kind the importer translates,
// sorted.
func ListSupportedOps() []string {
	return ops.NewRegistry().SupportedKinds()
}

// Re-exported fact vocabulary, so callers can inspect results and pin
// input shapes without importing internal packages.
type (
	// Model is the immutable translation result.
	Model = model.Model
	// OutletID addresses one output edge of a model operator.
	OutletID = model.OutletID
	// Fact is the inferred element type and shape of an edge.
	Fact = types.Fact
	// Shape is a possibly-partial tensor shape.
	Shape = types.Shape
	// Dim is one dimension extent, DimUnknown when open.
	Dim = types.Dim
	// DataType is a tensor element type.
	DataType = types.DataType
)

// DimUnknown marks a dimension whose extent is not known.
const DimUnknown = types.DimUnknown

// Element types, for inspecting Fact.DType.
const (
	Float32  = types.Float32
	Float64  = types.Float64
	Float16  = types.Float16
	BFloat16 = types.BFloat16
	Int8     = types.Int8
	Int16    = types.Int16
	Int32    = types.Int32
	Int64    = types.Int64
	Uint8    = types.Uint8
	Uint16   = types.Uint16
	Uint32   = types.Uint32
	Uint64   = types.Uint64
	Bool     = types.Bool
	String   = types.String
)

// MakeShapeFromInts builds a ranked shape from int extents; negatives
// become DimUnknown.
func MakeShapeFromInts(dims ...int64) Shape {
	return types.MakeShapeFromInts(dims...)
}

// Unranked returns the shape about which nothing is known.
func Unranked() Shape {
	return types.Unranked()
}
