// Package types provides the element types, shapes and inference facts
// that annotate edges of a translated computation graph.
package types

// DataType represents the element type of a tensor edge.
type DataType int

// Supported element types. Invalid doubles as "not yet known" during
// propagation; it is only an error if it survives until finalization.
const (
	Invalid DataType = iota
	Float32
	Float64
	Float16
	BFloat16
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
	String
)

// TensorFlow DataType enum values as they appear in serialized graphs.
const (
	protoInvalid  = 0
	protoFloat    = 1
	protoDouble   = 2
	protoInt32    = 3
	protoUint8    = 4
	protoInt16    = 5
	protoInt8     = 6
	protoString   = 7
	protoInt64    = 9
	protoBool     = 10
	protoBFloat16 = 14
	protoUint16   = 17
	protoHalf     = 19
	protoUint32   = 22
	protoUint64   = 23
)

// DataTypeFromProto maps a serialized DataType enum value to a DataType.
// Unrecognized values (quantized, complex, resource, variant) map to Invalid;
// translators reject them per-node rather than guessing.
func DataTypeFromProto(v int32) DataType {
	switch v {
	case protoFloat:
		return Float32
	case protoDouble:
		return Float64
	case protoHalf:
		return Float16
	case protoBFloat16:
		return BFloat16
	case protoInt8:
		return Int8
	case protoInt16:
		return Int16
	case protoInt32:
		return Int32
	case protoInt64:
		return Int64
	case protoUint8:
		return Uint8
	case protoUint16:
		return Uint16
	case protoUint32:
		return Uint32
	case protoUint64:
		return Uint64
	case protoBool:
		return Bool
	case protoString:
		return String
	default:
		return Invalid
	}
}

// Size returns the byte size of one element, or 0 for Invalid and String.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	case Float16, BFloat16, Int16, Uint16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		return 0
	}
}

// IsKnown reports whether the element type has been determined.
func (dt DataType) IsKnown() bool {
	return dt != Invalid
}

// IsFloat reports whether the type is a floating-point type.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float32, Float64, Float16, BFloat16:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Invalid:
		return "invalid"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return "unknown"
	}
}
