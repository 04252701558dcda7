package graphdef

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeError reports malformed serialized bytes. It is fatal: no partial
// graph is returned.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "malformed graph: " + e.Err.Error() }

// Unwrap exposes the underlying wire-level failure.
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a serialized GraphDef.
func Decode(data []byte) (*GraphDef, error) {
	g := &GraphDef{}
	if err := decodeGraphDef(data, g); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return g, nil
}

// fields reads the wire stream tag by tag, handing each field's payload to
// fn. Unrecognized fields are skipped by fn returning without error.
func fields(data []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.WithStack(protowire.ParseError(n))
		}
		data = data[n:]
		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return errors.WithStack(protowire.ParseError(m))
		}
		if err := fn(num, typ, data[:m]); err != nil {
			return errors.Wrapf(err, "field %d", num)
		}
		data = data[m:]
	}
	return nil
}

// unbytes strips the length prefix from a length-delimited payload.
func unbytes(payload []byte) ([]byte, error) {
	v, n := protowire.ConsumeBytes(payload)
	if n < 0 {
		return nil, errors.WithStack(protowire.ParseError(n))
	}
	return v, nil
}

func unvarint(payload []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(payload)
	if n < 0 {
		return 0, errors.WithStack(protowire.ParseError(n))
	}
	return v, nil
}

func unfixed32(payload []byte) (uint32, error) {
	v, n := protowire.ConsumeFixed32(payload)
	if n < 0 {
		return 0, errors.WithStack(protowire.ParseError(n))
	}
	return v, nil
}

func unfixed64(payload []byte) (uint64, error) {
	v, n := protowire.ConsumeFixed64(payload)
	if n < 0 {
		return 0, errors.WithStack(protowire.ParseError(n))
	}
	return v, nil
}

// packedVarints decodes a repeated varint field that may arrive packed or
// as a lone value.
func packedVarints(typ protowire.Type, payload []byte) ([]uint64, error) {
	if typ == protowire.VarintType {
		v, err := unvarint(payload)
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	}
	data, err := unbytes(payload)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		out = append(out, v)
		data = data[n:]
	}
	return out, nil
}

// packedFixed32s decodes a repeated fixed32 field, packed or lone.
func packedFixed32s(typ protowire.Type, payload []byte) ([]uint32, error) {
	if typ == protowire.Fixed32Type {
		v, err := unfixed32(payload)
		if err != nil {
			return nil, err
		}
		return []uint32{v}, nil
	}
	data, err := unbytes(payload)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for len(data) > 0 {
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		out = append(out, v)
		data = data[n:]
	}
	return out, nil
}

func packedFixed64s(typ protowire.Type, payload []byte) ([]uint64, error) {
	if typ == protowire.Fixed64Type {
		v, err := unfixed64(payload)
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	}
	data, err := unbytes(payload)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for len(data) > 0 {
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		out = append(out, v)
		data = data[n:]
	}
	return out, nil
}

func decodeGraphDef(data []byte, g *GraphDef) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1: // node
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			var nd NodeDef
			if err := decodeNodeDef(raw, &nd); err != nil {
				return errors.Wrapf(err, "node %d", len(g.Nodes))
			}
			g.Nodes = append(g.Nodes, nd)
		case 4: // versions
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			if err := decodeVersionDef(raw, &g.Versions); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeNodeDef(data []byte, nd *NodeDef) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1: // name
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			nd.Name = string(raw)
		case 2: // op
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			nd.Op = string(raw)
		case 3: // input
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			nd.Inputs = append(nd.Inputs, string(raw))
		case 4: // device
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			nd.Device = string(raw)
		case 5: // attr map entry
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			key, value, err := decodeAttrEntry(raw)
			if err != nil {
				return errors.Wrapf(err, "attr of %q", nd.Name)
			}
			if nd.Attrs == nil {
				nd.Attrs = make(map[string]AttrValue)
			}
			nd.Attrs[key] = value
		}
		return nil
	})
}

func decodeAttrEntry(data []byte) (string, AttrValue, error) {
	var key string
	var value AttrValue
	err := fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1:
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			key = string(raw)
		case 2:
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			if err := decodeAttrValue(raw, &value); err != nil {
				return err
			}
		}
		return nil
	})
	return key, value, err
}

func decodeAttrValue(data []byte, a *AttrValue) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1: // list
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			a.Kind = AttrList
			return decodeAttrList(raw, &a.List)
		case 2: // s
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			a.Kind, a.S = AttrString, raw
		case 3: // i
			v, err := unvarint(payload)
			if err != nil {
				return err
			}
			a.Kind, a.I = AttrInt, int64(v)
		case 4: // f
			v, err := unfixed32(payload)
			if err != nil {
				return err
			}
			a.Kind, a.F = AttrFloat, math.Float32frombits(v)
		case 5: // b
			v, err := unvarint(payload)
			if err != nil {
				return err
			}
			a.Kind, a.B = AttrBool, v != 0
		case 6: // type
			v, err := unvarint(payload)
			if err != nil {
				return err
			}
			a.Kind, a.Type = AttrType, int32(v)
		case 7: // shape
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			a.Kind = AttrShape
			a.Shape = &TensorShapeProto{}
			return decodeTensorShape(raw, a.Shape)
		case 8: // tensor
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			a.Kind = AttrTensor
			a.Tensor = &TensorProto{}
			return decodeTensorProto(raw, a.Tensor)
		case 9: // placeholder
			a.Kind = AttrPlaceholder
		case 10: // func
			a.Kind = AttrFunc
		}
		return nil
	})
}

func decodeAttrList(data []byte, l *AttrListValue) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 2: // s
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			l.S = append(l.S, raw)
		case 3: // i
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				l.I = append(l.I, int64(v))
			}
		case 4: // f
			vs, err := packedFixed32s(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				l.F = append(l.F, math.Float32frombits(v))
			}
		case 5: // b
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				l.B = append(l.B, v != 0)
			}
		case 6: // type
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				l.Type = append(l.Type, int32(v))
			}
		case 7: // shape
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			var sh TensorShapeProto
			if err := decodeTensorShape(raw, &sh); err != nil {
				return err
			}
			l.Shape = append(l.Shape, sh)
		}
		return nil
	})
}

func decodeTensorShape(data []byte, s *TensorShapeProto) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 2: // dim
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			// Absent size field means 0 under proto3 defaults; unknown
			// dims arrive as an explicit -1.
			size := int64(0)
			err = fields(raw, func(dnum protowire.Number, _ protowire.Type, dpayload []byte) error {
				if dnum == 1 {
					v, err := unvarint(dpayload)
					if err != nil {
						return err
					}
					size = int64(v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			s.Dims = append(s.Dims, size)
		case 3: // unknown_rank
			v, err := unvarint(payload)
			if err != nil {
				return err
			}
			s.UnknownRank = v != 0
		}
		return nil
	})
}

func decodeTensorProto(data []byte, t *TensorProto) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1: // dtype
			v, err := unvarint(payload)
			if err != nil {
				return err
			}
			t.DType = int32(v)
		case 2: // tensor_shape
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			t.Shape = &TensorShapeProto{}
			return decodeTensorShape(raw, t.Shape)
		case 4: // tensor_content
			raw, err := unbytes(payload)
			if err != nil {
				return err
			}
			t.TensorContent = raw
		case 5: // float_val
			vs, err := packedFixed32s(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.FloatVal = append(t.FloatVal, math.Float32frombits(v))
			}
		case 6: // double_val
			vs, err := packedFixed64s(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.DoubleVal = append(t.DoubleVal, math.Float64frombits(v))
			}
		case 7: // int_val
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.IntVal = append(t.IntVal, int32(v))
			}
		case 10: // int64_val
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.Int64Val = append(t.Int64Val, int64(v))
			}
		case 11: // bool_val
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.BoolVal = append(t.BoolVal, v != 0)
			}
		case 13: // half_val
			vs, err := packedVarints(typ, payload)
			if err != nil {
				return err
			}
			for _, v := range vs {
				t.HalfVal = append(t.HalfVal, int32(v))
			}
		}
		return nil
	})
}

func decodeVersionDef(data []byte, v *VersionDef) error {
	return fields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case 1:
			raw, err := unvarint(payload)
			if err != nil {
				return err
			}
			v.Producer = int32(raw)
		case 2:
			raw, err := unvarint(payload)
			if err != nil {
				return err
			}
			v.MinConsumer = int32(raw)
		}
		return nil
	})
}
