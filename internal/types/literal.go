package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Literal is a concrete tensor value embedded in the graph, such as a
// constant node's payload. Data is stored as little-endian raw bytes with
// typed accessors; shapes are always fully known.
type Literal struct {
	dtype DataType
	shape Shape
	data  []byte
}

// NewLiteral builds a literal from raw little-endian bytes. The byte length
// must match the shape's element count times the element size.
func NewLiteral(dtype DataType, shape Shape, data []byte) (*Literal, error) {
	if !shape.IsFullyKnown() {
		return nil, fmt.Errorf("literal shape %s is not fully known", shape)
	}
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("literal element type %s is not storable", dtype)
	}
	want := shape.NumElements() * int64(dtype.Size())
	if int64(len(data)) != want {
		return nil, fmt.Errorf("literal %s%s needs %d bytes, got %d", dtype, shape, want, len(data))
	}
	return &Literal{dtype: dtype, shape: shape.Clone(), data: data}, nil
}

// LiteralFromFloat32s builds a float32 literal from a value slice.
func LiteralFromFloat32s(shape Shape, values []float32) (*Literal, error) {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return NewLiteral(Float32, shape, data)
}

// LiteralFromInt32s builds an int32 literal from a value slice.
func LiteralFromInt32s(shape Shape, values []int32) (*Literal, error) {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
	}
	return NewLiteral(Int32, shape, data)
}

// LiteralFromInt64s builds an int64 literal from a value slice.
func LiteralFromInt64s(shape Shape, values []int64) (*Literal, error) {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(v))
	}
	return NewLiteral(Int64, shape, data)
}

// LiteralFromBools builds a bool literal from a value slice.
func LiteralFromBools(shape Shape, values []bool) (*Literal, error) {
	data := make([]byte, len(values))
	for i, v := range values {
		if v {
			data[i] = 1
		}
	}
	return NewLiteral(Bool, shape, data)
}

// DType returns the element type.
func (l *Literal) DType() DataType { return l.dtype }

// Shape returns the (fully known) shape.
func (l *Literal) Shape() Shape { return l.shape.Clone() }

// Fact returns the fact this literal pins on its edge.
func (l *Literal) Fact() Fact { return Fact{DType: l.dtype, Shape: l.shape.Clone()} }

// NumElements returns the element count.
func (l *Literal) NumElements() int64 { return l.shape.NumElements() }

// Bytes returns the raw little-endian payload.
func (l *Literal) Bytes() []byte { return l.data }

// Float32s decodes the payload as float32 values. Half and bfloat16
// payloads are widened; other types return an error.
func (l *Literal) Float32s() ([]float32, error) {
	n := int(l.NumElements())
	out := make([]float32, n)
	switch l.dtype {
	case Float32:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(l.data[4*i:]))
		}
	case Float16:
		for i := 0; i < n; i++ {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(l.data[2*i:])).Float32()
		}
	case BFloat16:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(l.data[2*i:])) << 16)
		}
	default:
		return nil, fmt.Errorf("literal is %s, not a float32-convertible type", l.dtype)
	}
	return out, nil
}

// Int64s decodes the payload as int64 values; int32 payloads are widened.
func (l *Literal) Int64s() ([]int64, error) {
	n := int(l.NumElements())
	out := make([]int64, n)
	switch l.dtype {
	case Int64:
		for i := 0; i < n; i++ {
			out[i] = int64(binary.LittleEndian.Uint64(l.data[8*i:]))
		}
	case Int32:
		for i := 0; i < n; i++ {
			out[i] = int64(int32(binary.LittleEndian.Uint32(l.data[4*i:])))
		}
	default:
		return nil, fmt.Errorf("literal is %s, not an integer type", l.dtype)
	}
	return out, nil
}

// Bools decodes the payload as bool values.
func (l *Literal) Bools() ([]bool, error) {
	if l.dtype != Bool {
		return nil, fmt.Errorf("literal is %s, not bool", l.dtype)
	}
	out := make([]bool, len(l.data))
	for i, b := range l.data {
		out[i] = b != 0
	}
	return out, nil
}

// String summarises the literal without dumping its payload.
func (l *Literal) String() string {
	return fmt.Sprintf("literal %s%s (%d bytes)", l.dtype, l.shape, len(l.data))
}
