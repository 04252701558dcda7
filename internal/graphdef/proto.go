// Package graphdef decodes serialized TensorFlow GraphDef graphs and
// flattens them into the node records consumed by the assembler.
package graphdef

// GraphDef mirrors the subset of tensorflow.GraphDef the importer needs:
// the flat node list and version stamps. The function library and any
// fields irrelevant to forward inference are skipped during decoding.
type GraphDef struct {
	Nodes    []NodeDef
	Versions VersionDef
}

// NodeDef is one operator occurrence in the serialized graph.
type NodeDef struct {
	Name   string
	Op     string
	Inputs []string // "name", "name:k", or "^name" for control inputs
	Device string
	Attrs  map[string]AttrValue
}

// VersionDef carries the graph's producer/consumer version stamps.
type VersionDef struct {
	Producer    int32
	MinConsumer int32
}

// AttrValue is one typed attribute value. Exactly one field is set,
// indicated by Kind.
type AttrValue struct {
	Kind AttrKind

	S      []byte
	I      int64
	F      float32
	B      bool
	Type   int32 // DataType enum value as serialized
	Shape  *TensorShapeProto
	Tensor *TensorProto
	List   AttrListValue
}

// AttrKind discriminates the populated field of an AttrValue.
type AttrKind int

// Attribute kinds, following the serialized oneof.
const (
	AttrNone AttrKind = iota
	AttrString
	AttrInt
	AttrFloat
	AttrBool
	AttrType
	AttrShape
	AttrTensor
	AttrList
	AttrFunc        // function-valued, recorded but not interpreted
	AttrPlaceholder // placeholder-valued, recorded but not interpreted
)

func (k AttrKind) String() string {
	switch k {
	case AttrString:
		return "string"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrBool:
		return "bool"
	case AttrType:
		return "type"
	case AttrShape:
		return "shape"
	case AttrTensor:
		return "tensor"
	case AttrList:
		return "list"
	case AttrFunc:
		return "func"
	case AttrPlaceholder:
		return "placeholder"
	default:
		return "none"
	}
}

// AttrListValue is the list(...) arm of an attribute.
type AttrListValue struct {
	S     [][]byte
	I     []int64
	F     []float32
	B     []bool
	Type  []int32
	Shape []TensorShapeProto
}

// TensorShapeProto is a serialized shape: ranked dims (size < 0 means
// unknown) or unknown_rank.
type TensorShapeProto struct {
	Dims        []int64
	UnknownRank bool
}

// TensorProto is a serialized tensor literal.
type TensorProto struct {
	DType         int32
	Shape         *TensorShapeProto
	TensorContent []byte

	// Typed value fields; a single value may splat-fill the whole shape.
	HalfVal   []int32
	FloatVal  []float32
	DoubleVal []float64
	IntVal    []int32
	Int64Val  []int64
	BoolVal   []bool
}
