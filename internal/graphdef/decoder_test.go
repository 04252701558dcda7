package graphdef

import (
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/loom-ml/loom/internal/types"
)

// Wire-level builders for test graphs. Field numbers follow the
// serialized GraphDef format.

func appendMsg(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendStr(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func attrEntry(key string, value []byte) []byte {
	var e []byte
	e = appendStr(e, 1, key)
	e = appendMsg(e, 2, value)
	return e
}

func typeAttr(dt int32) []byte {
	var a []byte
	a = protowire.AppendTag(a, 6, protowire.VarintType)
	return protowire.AppendVarint(a, uint64(dt))
}

func intAttr(v int64) []byte {
	var a []byte
	a = protowire.AppendTag(a, 3, protowire.VarintType)
	return protowire.AppendVarint(a, uint64(v))
}

func floatAttr(v float32) []byte {
	var a []byte
	a = protowire.AppendTag(a, 4, protowire.Fixed32Type)
	return protowire.AppendFixed32(a, math.Float32bits(v))
}

func shapeAttr(dims ...int64) []byte {
	var sh []byte
	for _, d := range dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		sh = appendMsg(sh, 2, dim)
	}
	var a []byte
	return appendMsg(a, 7, sh)
}

func tensorAttr(tensor []byte) []byte {
	var a []byte
	return appendMsg(a, 8, tensor)
}

func floatTensor(dims []int64, values []float32) []byte {
	var sh []byte
	for _, d := range dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		sh = appendMsg(sh, 2, dim)
	}
	var tp []byte
	tp = protowire.AppendTag(tp, 1, protowire.VarintType)
	tp = protowire.AppendVarint(tp, 1) // DT_FLOAT
	tp = appendMsg(tp, 2, sh)
	for _, v := range values {
		tp = protowire.AppendTag(tp, 5, protowire.Fixed32Type)
		tp = protowire.AppendFixed32(tp, math.Float32bits(v))
	}
	return tp
}

func nodeDef(name, op string, inputs []string, attrs map[string][]byte) []byte {
	var nd []byte
	nd = appendStr(nd, 1, name)
	nd = appendStr(nd, 2, op)
	for _, in := range inputs {
		nd = appendStr(nd, 3, in)
	}
	for key, value := range attrs {
		nd = appendMsg(nd, 5, attrEntry(key, value))
	}
	return nd
}

func graphBytes(nodes ...[]byte) []byte {
	var g []byte
	for _, nd := range nodes {
		g = appendMsg(g, 1, nd)
	}
	var versions []byte
	versions = protowire.AppendTag(versions, 1, protowire.VarintType)
	versions = protowire.AppendVarint(versions, 27)
	return appendMsg(g, 4, versions)
}

func TestDecodeGraph(t *testing.T) {
	data := graphBytes(
		nodeDef("x", "Placeholder", nil, map[string][]byte{
			"dtype": typeAttr(1),
			"shape": shapeAttr(2, 3),
		}),
		nodeDef("y", "Relu", []string{"x"}, map[string][]byte{
			"T": typeAttr(1),
		}),
	)

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Versions.Producer != 27 {
		t.Errorf("producer = %d, want 27", g.Versions.Producer)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(g.Nodes))
	}
	x := g.Nodes[0]
	if x.Name != "x" || x.Op != "Placeholder" {
		t.Errorf("node 0 = %q %q", x.Name, x.Op)
	}
	if a, ok := x.Attrs["dtype"]; !ok || a.Kind != AttrType || a.Type != 1 {
		t.Errorf("dtype attr = %+v", x.Attrs["dtype"])
	}
	sh, ok := x.Attrs["shape"]
	if !ok || sh.Kind != AttrShape || sh.Shape == nil {
		t.Fatalf("shape attr = %+v", x.Attrs["shape"])
	}
	if len(sh.Shape.Dims) != 2 || sh.Shape.Dims[0] != 2 || sh.Shape.Dims[1] != 3 {
		t.Errorf("shape dims = %v", sh.Shape.Dims)
	}
	y := g.Nodes[1]
	if len(y.Inputs) != 1 || y.Inputs[0] != "x" {
		t.Errorf("y inputs = %v", y.Inputs)
	}
}

func TestDecodeUnknownDim(t *testing.T) {
	// An unknown extent arrives as -1, a ten-byte varint.
	data := graphBytes(nodeDef("x", "Placeholder", nil, map[string][]byte{
		"shape": shapeAttr(-1, 3),
	}))
	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sh := g.Nodes[0].Attrs["shape"].Shape
	if sh.Dims[0] != -1 || sh.Dims[1] != 3 {
		t.Errorf("dims = %v", sh.Dims)
	}
}

func TestDecodeUnknownRank(t *testing.T) {
	var shp []byte
	shp = protowire.AppendTag(shp, 3, protowire.VarintType)
	shp = protowire.AppendVarint(shp, 1)
	var a []byte
	a = appendMsg(a, 7, shp)
	data := graphBytes(nodeDef("x", "Placeholder", nil, map[string][]byte{"shape": a}))

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !g.Nodes[0].Attrs["shape"].Shape.UnknownRank {
		t.Error("unknown_rank not decoded")
	}
}

func TestDecodeTensorValues(t *testing.T) {
	data := graphBytes(nodeDef("c", "Const", nil, map[string][]byte{
		"dtype": typeAttr(1),
		"value": tensorAttr(floatTensor([]int64{2}, []float32{1.5, -2.5})),
	}))
	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tp := g.Nodes[0].Attrs["value"].Tensor
	if tp == nil {
		t.Fatal("tensor attr missing")
	}
	if tp.DType != 1 {
		t.Errorf("dtype = %d", tp.DType)
	}
	if len(tp.FloatVal) != 2 || tp.FloatVal[0] != 1.5 || tp.FloatVal[1] != -2.5 {
		t.Errorf("float_val = %v", tp.FloatVal)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	nd := nodeDef("x", "NoOp", nil, nil)
	// A field number the decoder does not know about.
	nd = appendStr(nd, 12, "experimental")
	data := graphBytes(nd)

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Nodes[0].Name != "x" {
		t.Errorf("name = %q", g.Nodes[0].Name)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	if err == nil {
		t.Fatal("malformed bytes accepted")
	}
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Errorf("want DecodeError, got %T", err)
	}
}

func TestRecords(t *testing.T) {
	data := graphBytes(
		nodeDef("x", "Placeholder", nil, map[string][]byte{
			"dtype": typeAttr(1),
			"shape": shapeAttr(-1, 4),
		}),
		nodeDef("alpha", "LeakyRelu", []string{"x"}, map[string][]byte{
			"alpha": floatAttr(0.2),
			"T":     typeAttr(1),
		}),
	)
	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	recs := Records(g)
	if len(recs) != 2 {
		t.Fatalf("record count = %d", len(recs))
	}
	x := recs[0]
	if x.Attrs["dtype"].Type != types.Float32 {
		t.Errorf("dtype = %s", x.Attrs["dtype"].Type)
	}
	want := types.MakeShape(types.DimUnknown, 4)
	if !x.Attrs["shape"].Shape.Equal(want) {
		t.Errorf("shape = %s, want %s", x.Attrs["shape"].Shape, want)
	}
	if recs[1].Attrs["alpha"].F != 0.2 {
		t.Errorf("alpha = %v", recs[1].Attrs["alpha"].F)
	}
}

func TestLiteralFromTensorContent(t *testing.T) {
	var tp []byte
	tp = protowire.AppendTag(tp, 1, protowire.VarintType)
	tp = protowire.AppendVarint(tp, 3) // DT_INT32
	var sh []byte
	var dim []byte
	dim = protowire.AppendTag(dim, 1, protowire.VarintType)
	dim = protowire.AppendVarint(dim, 2)
	sh = appendMsg(sh, 2, dim)
	tp = appendMsg(tp, 2, sh)
	tp = appendMsg(tp, 4, []byte{7, 0, 0, 0, 9, 0, 0, 0})

	var raw TensorProto
	if err := decodeTensorProto(tp, &raw); err != nil {
		t.Fatalf("decodeTensorProto: %v", err)
	}
	l, err := LiteralFromTensor(&raw)
	if err != nil {
		t.Fatalf("LiteralFromTensor: %v", err)
	}
	got, err := l.Int64s()
	if err != nil {
		t.Fatalf("Int64s: %v", err)
	}
	if got[0] != 7 || got[1] != 9 {
		t.Errorf("values = %v", got)
	}
}

func TestLiteralSplatFill(t *testing.T) {
	l, err := LiteralFromTensor(&TensorProto{
		DType:    1, // DT_FLOAT
		Shape:    &TensorShapeProto{Dims: []int64{2, 2}},
		FloatVal: []float32{3},
	})
	if err != nil {
		t.Fatalf("LiteralFromTensor: %v", err)
	}
	got, err := l.Float32s()
	if err != nil {
		t.Fatalf("Float32s: %v", err)
	}
	for i, v := range got {
		if v != 3 {
			t.Errorf("value[%d] = %v, want 3", i, v)
		}
	}
}

func TestLiteralPartialShapeRejected(t *testing.T) {
	_, err := LiteralFromTensor(&TensorProto{
		DType:    1,
		Shape:    &TensorShapeProto{Dims: []int64{-1}},
		FloatVal: []float32{1},
	})
	if err == nil {
		t.Error("partial-shape literal accepted")
	}
}
