package graphdef

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/types"
)

// Record is one decoded node handed to the assembler: raw name-based input
// references plus attributes normalized to internal types. Tensor-valued
// attributes stay in wire form; the constant translator materializes them
// so a bad literal fails per-node, not for the whole decode.
type Record struct {
	Name   string
	OpKind string
	Inputs []string
	Attrs  map[string]Attr
}

// Attr is a normalized attribute value; Kind discriminates.
type Attr struct {
	Kind AttrKind

	S      string
	I      int64
	F      float32
	B      bool
	Type   types.DataType
	Shape  types.Shape
	Tensor *TensorProto

	Strings []string
	Ints    []int64
	Floats  []float32
	Bools   []bool
	Types   []types.DataType
	Shapes  []types.Shape
}

// Records flattens a decoded graph into assembler input records.
func Records(g *GraphDef) []Record {
	out := make([]Record, len(g.Nodes))
	for i := range g.Nodes {
		nd := &g.Nodes[i]
		rec := Record{
			Name:   nd.Name,
			OpKind: nd.Op,
			Inputs: append([]string(nil), nd.Inputs...),
		}
		if len(nd.Attrs) > 0 {
			rec.Attrs = make(map[string]Attr, len(nd.Attrs))
			for name, av := range nd.Attrs {
				rec.Attrs[name] = normalizeAttr(av)
			}
		}
		out[i] = rec
	}
	return out
}

func normalizeAttr(av AttrValue) Attr {
	a := Attr{Kind: av.Kind}
	switch av.Kind {
	case AttrString:
		a.S = string(av.S)
	case AttrInt:
		a.I = av.I
	case AttrFloat:
		a.F = av.F
	case AttrBool:
		a.B = av.B
	case AttrType:
		a.Type = types.DataTypeFromProto(av.Type)
	case AttrShape:
		a.Shape = ShapeFromProto(av.Shape)
	case AttrTensor:
		a.Tensor = av.Tensor
	case AttrList:
		for _, s := range av.List.S {
			a.Strings = append(a.Strings, string(s))
		}
		a.Ints = append(a.Ints, av.List.I...)
		a.Floats = append(a.Floats, av.List.F...)
		a.Bools = append(a.Bools, av.List.B...)
		for _, t := range av.List.Type {
			a.Types = append(a.Types, types.DataTypeFromProto(t))
		}
		for i := range av.List.Shape {
			a.Shapes = append(a.Shapes, ShapeFromProto(&av.List.Shape[i]))
		}
	}
	return a
}

// ShapeFromProto converts a serialized shape, mapping unknown_rank to the
// unranked shape and negative extents to unknown dimensions.
func ShapeFromProto(s *TensorShapeProto) types.Shape {
	if s == nil || s.UnknownRank {
		return types.Unranked()
	}
	return types.MakeShapeFromInts(s.Dims...)
}

// LiteralFromTensor materializes a serialized tensor literal. The payload
// comes from tensor_content when present, otherwise from the typed value
// fields; a single typed value splat-fills the whole shape, matching the
// serialized format's convention.
func LiteralFromTensor(t *TensorProto) (*types.Literal, error) {
	dtype := types.DataTypeFromProto(t.DType)
	if !dtype.IsKnown() {
		return nil, errors.Errorf("unsupported literal element type %d", t.DType)
	}
	shape := ShapeFromProto(t.Shape)
	if !shape.IsFullyKnown() {
		return nil, errors.Errorf("literal shape %s is not fully known", shape)
	}
	n := shape.NumElements()
	if len(t.TensorContent) > 0 {
		return types.NewLiteral(dtype, shape, t.TensorContent)
	}
	data, err := bytesFromTyped(dtype, n, t)
	if err != nil {
		return nil, err
	}
	return types.NewLiteral(dtype, shape, data)
}

func bytesFromTyped(dtype types.DataType, n int64, t *TensorProto) ([]byte, error) {
	size := dtype.Size()
	data := make([]byte, int(n)*size)
	put := func(i int, v uint64) {
		switch size {
		case 1:
			data[i] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(data[8*i:], v)
		}
	}
	fill := func(count int, at func(int) uint64) error {
		switch {
		case count == int(n):
			for i := 0; i < count; i++ {
				put(i, at(i))
			}
		case count == 1: // splat
			for i := 0; i < int(n); i++ {
				put(i, at(0))
			}
		default:
			return errors.Errorf("literal has %d values for %d elements", count, n)
		}
		return nil
	}

	switch dtype {
	case types.Float32:
		return data, fill(len(t.FloatVal), func(i int) uint64 { return uint64(math.Float32bits(t.FloatVal[i])) })
	case types.Float64:
		return data, fill(len(t.DoubleVal), func(i int) uint64 { return math.Float64bits(t.DoubleVal[i]) })
	case types.Float16, types.BFloat16:
		return data, fill(len(t.HalfVal), func(i int) uint64 { return uint64(uint16(t.HalfVal[i])) })
	case types.Int32, types.Int16, types.Int8, types.Uint8, types.Uint16, types.Uint32:
		return data, fill(len(t.IntVal), func(i int) uint64 { return uint64(uint32(t.IntVal[i])) })
	case types.Int64, types.Uint64:
		return data, fill(len(t.Int64Val), func(i int) uint64 { return uint64(t.Int64Val[i]) })
	case types.Bool:
		return data, fill(len(t.BoolVal), func(i int) uint64 {
			if t.BoolVal[i] {
				return 1
			}
			return 0
		})
	default:
		return nil, errors.Errorf("literal element type %s is not storable", dtype)
	}
}
