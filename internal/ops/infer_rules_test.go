package ops

import (
	"errors"
	"testing"

	"github.com/loom-ml/loom/internal/types"
)

func fact(dt types.DataType, dims ...int64) types.Fact {
	return types.MakeFact(dt, types.MakeShapeFromInts(dims...))
}

func inferOne(t *testing.T, op interface {
	InferFacts([]types.Fact) ([]types.Fact, error)
}, inputs ...types.Fact) types.Fact {
	t.Helper()
	outs, err := op.InferFacts(inputs)
	if err != nil {
		t.Fatalf("InferFacts: %v", err)
	}
	if len(outs) == 0 {
		t.Fatal("InferFacts returned no facts")
	}
	return outs[0]
}

func TestBinaryOpBroadcast(t *testing.T) {
	op := &BinaryOp{OpKind: "Add", T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 1), fact(types.Float32, 1, 3))
	want := fact(types.Float32, 2, 3)
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestBinaryOpTypeConflict(t *testing.T) {
	op := &BinaryOp{OpKind: "Add"}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 2), fact(types.Int32, 2)})
	var conflict *types.TypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want TypeConflictError, got %v", err)
	}
}

func TestBinaryOpUnknownInputs(t *testing.T) {
	op := &BinaryOp{OpKind: "Mul", T: types.Float32}
	got := inferOne(t, op, types.Fact{}, fact(types.Invalid, 5))
	if got.DType != types.Float32 {
		t.Errorf("dtype = %s", got.DType)
	}
	if got.Shape.Ranked {
		t.Errorf("shape = %s, want unranked", got.Shape)
	}
}

func TestMatMul(t *testing.T) {
	op := &MatMulOp{T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 3), fact(types.Float32, 3, 5))
	if !got.Equal(fact(types.Float32, 2, 5)) {
		t.Errorf("got %s", got)
	}

	op = &MatMulOp{TransposeB: true, T: types.Float32}
	got = inferOne(t, op, fact(types.Float32, 2, 3), fact(types.Float32, 5, 3))
	if !got.Equal(fact(types.Float32, 2, 5)) {
		t.Errorf("transposed got %s", got)
	}
}

func TestMatMulContractionMismatch(t *testing.T) {
	op := &MatMulOp{}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 2, 3), fact(types.Float32, 4, 5)})
	var conflict *types.DimConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want DimConflictError, got %v", err)
	}
}

func TestBatchMatMulBroadcastsLeadingDims(t *testing.T) {
	op := &MatMulOp{Batch: true, T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 8, 1, 2, 3), fact(types.Float32, 4, 3, 5))
	if !got.Equal(fact(types.Float32, 8, 4, 2, 5)) {
		t.Errorf("got %s", got)
	}
}

func TestBiasAddChannelMismatch(t *testing.T) {
	op := &BiasAddOp{Format: ChannelsLast}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 1, 4, 4, 8), fact(types.Float32, 16)})
	var conflict *types.DimConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want DimConflictError, got %v", err)
	}

	got := inferOne(t, op, fact(types.Float32, 1, 4, 4, 8), fact(types.Float32, 8))
	if !got.Equal(fact(types.Float32, 1, 4, 4, 8)) {
		t.Errorf("got %s", got)
	}
}

func TestConv2DSamePadding(t *testing.T) {
	op := &WindowOp{
		OpKind:  "Conv2D",
		Format:  ChannelsLast,
		Pad:     PadSpec{Mode: PadSame},
		Strides: []int64{1, 2, 2, 1},
		T:       types.Float32,
	}
	got := inferOne(t, op,
		fact(types.Float32, 1, 28, 28, 3),
		fact(types.Float32, 5, 5, 3, 32),
	)
	if !got.Equal(fact(types.Float32, 1, 14, 14, 32)) {
		t.Errorf("got %s", got)
	}
}

func TestConv2DValidPadding(t *testing.T) {
	op := &WindowOp{
		OpKind:  "Conv2D",
		Format:  ChannelsLast,
		Pad:     PadSpec{Mode: PadValid},
		Strides: []int64{1, 1, 1, 1},
		T:       types.Float32,
	}
	got := inferOne(t, op,
		fact(types.Float32, 1, 28, 28, 3),
		fact(types.Float32, 5, 5, 3, 32),
	)
	if !got.Equal(fact(types.Float32, 1, 24, 24, 32)) {
		t.Errorf("got %s", got)
	}
}

func TestConv2DChannelMismatch(t *testing.T) {
	op := &WindowOp{OpKind: "Conv2D", Format: ChannelsLast, Pad: PadSpec{Mode: PadSame}, Strides: []int64{1, 1, 1, 1}}
	_, err := op.InferFacts([]types.Fact{
		fact(types.Float32, 1, 8, 8, 3),
		fact(types.Float32, 3, 3, 4, 16),
	})
	var conflict *types.DimConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want DimConflictError, got %v", err)
	}
}

func TestDepthwiseConvChannels(t *testing.T) {
	op := &WindowOp{
		OpKind:    "DepthwiseConv2dNative",
		Format:    ChannelsLast,
		Pad:       PadSpec{Mode: PadSame},
		Strides:   []int64{1, 1, 1, 1},
		Depthwise: true,
		T:         types.Float32,
	}
	got := inferOne(t, op,
		fact(types.Float32, 1, 8, 8, 3),
		fact(types.Float32, 3, 3, 3, 2),
	)
	if !got.Equal(fact(types.Float32, 1, 8, 8, 6)) {
		t.Errorf("got %s", got)
	}
}

func TestMaxPool(t *testing.T) {
	op := &WindowOp{
		OpKind:  "MaxPool",
		Format:  ChannelsLast,
		Pad:     PadSpec{Mode: PadValid},
		Strides: []int64{1, 2, 2, 1},
		Ksize:   []int64{1, 2, 2, 1},
		T:       types.Float32,
	}
	got := inferOne(t, op, fact(types.Float32, 1, 28, 28, 16))
	if !got.Equal(fact(types.Float32, 1, 14, 14, 16)) {
		t.Errorf("got %s", got)
	}
}

func TestPoolUnknownSpatialDim(t *testing.T) {
	op := &WindowOp{
		OpKind:  "AvgPool",
		Format:  ChannelsLast,
		Pad:     PadSpec{Mode: PadSame},
		Strides: []int64{1, 2, 2, 1},
		Ksize:   []int64{1, 2, 2, 1},
		T:       types.Float32,
	}
	got := inferOne(t, op, fact(types.Float32, 1, -1, 28, 16))
	want := types.MakeFact(types.Float32, types.MakeShape(1, types.DimUnknown, 14, 16))
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestReduce(t *testing.T) {
	op := &ReduceOp{OpKind: "Mean", T: types.Float32, Axes: []int64{1}, AxesKnown: true}
	got := inferOne(t, op, fact(types.Float32, 2, 3, 4), types.Fact{})
	if !got.Equal(fact(types.Float32, 2, 4)) {
		t.Errorf("got %s", got)
	}

	op.KeepDims = true
	got = inferOne(t, op, fact(types.Float32, 2, 3, 4), types.Fact{})
	if !got.Equal(fact(types.Float32, 2, 1, 4)) {
		t.Errorf("keep_dims got %s", got)
	}

	op = &ReduceOp{OpKind: "Sum", T: types.Float32, Axes: []int64{-1}, AxesKnown: true}
	got = inferOne(t, op, fact(types.Float32, 2, 3), types.Fact{})
	if !got.Equal(fact(types.Float32, 2)) {
		t.Errorf("negative axis got %s", got)
	}
}

func TestReduceUnknownAxes(t *testing.T) {
	op := &ReduceOp{OpKind: "Sum", T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 3), types.Fact{})
	if got.Shape.Ranked {
		t.Errorf("got %s, want unranked", got)
	}

	op.KeepDims = true
	got = inferOne(t, op, fact(types.Float32, 2, 3), types.Fact{})
	if got.Shape.Rank() != 2 {
		t.Errorf("keep_dims rank = %d, want 2", got.Shape.Rank())
	}
}

func TestReshapeWildcard(t *testing.T) {
	op := &ReshapeOp{Dims: []int64{-1, 4}, Known: true, T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 2, 3), types.Fact{})
	if !got.Equal(fact(types.Float32, 3, 4)) {
		t.Errorf("got %s", got)
	}
}

func TestReshapeIndivisible(t *testing.T) {
	op := &ReshapeOp{Dims: []int64{-1, 5}, Known: true}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 2, 3), {}})
	if err == nil {
		t.Error("6 elements reshaped into multiples of 5")
	}
}

func TestTranspose(t *testing.T) {
	op := &TransposeOp{Perm: []int64{0, 2, 1}, Known: true, T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 3, 4), types.Fact{})
	if !got.Equal(fact(types.Float32, 2, 4, 3)) {
		t.Errorf("got %s", got)
	}

	// Unknown permutation still preserves rank.
	op = &TransposeOp{T: types.Float32}
	got = inferOne(t, op, fact(types.Float32, 2, 3), types.Fact{})
	if got.Shape.Rank() != 2 {
		t.Errorf("rank = %d, want 2", got.Shape.Rank())
	}
}

func TestSqueeze(t *testing.T) {
	op := &SqueezeOp{T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 1, 3, 1, 4))
	if !got.Equal(fact(types.Float32, 3, 4)) {
		t.Errorf("got %s", got)
	}

	op = &SqueezeOp{Axes: []int64{0}, T: types.Float32}
	got = inferOne(t, op, fact(types.Float32, 1, 3, 1))
	if !got.Equal(fact(types.Float32, 3, 1)) {
		t.Errorf("declared-axis got %s", got)
	}
}

func TestSqueezeDeclaredAxisNotOne(t *testing.T) {
	op := &SqueezeOp{Axes: []int64{1}}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 1, 3)})
	var conflict *types.DimConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want DimConflictError, got %v", err)
	}
}

func TestExpandDims(t *testing.T) {
	op := &ExpandDimsOp{Axis: -1, Known: true, T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 2, 3), types.Fact{})
	if !got.Equal(fact(types.Float32, 2, 3, 1)) {
		t.Errorf("got %s", got)
	}
}

func TestConcat(t *testing.T) {
	op := &ConcatOp{N: 2, Axis: 0, AxisKnown: true, T: types.Float32}
	got := inferOne(t, op,
		fact(types.Float32, 2, 3),
		fact(types.Float32, 4, 3),
		types.Fact{}, // axis input
	)
	if !got.Equal(fact(types.Float32, 6, 3)) {
		t.Errorf("got %s", got)
	}
}

func TestConcatUnknownAxisExtent(t *testing.T) {
	op := &ConcatOp{N: 2, Axis: 0, AxisKnown: true, T: types.Float32}
	got := inferOne(t, op,
		fact(types.Float32, -1, 3),
		fact(types.Float32, 4, 3),
		types.Fact{},
	)
	want := types.MakeFact(types.Float32, types.MakeShape(types.DimUnknown, 3))
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestConcatOffAxisMismatch(t *testing.T) {
	op := &ConcatOp{N: 2, Axis: 0, AxisKnown: true}
	_, err := op.InferFacts([]types.Fact{
		fact(types.Float32, 2, 3),
		fact(types.Float32, 4, 5),
		{},
	})
	var conflict *types.AxisConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want AxisConflictError, got %v", err)
	}
}

func TestPack(t *testing.T) {
	op := &PackOp{N: 3, Axis: 0, T: types.Float32}
	got := inferOne(t, op,
		fact(types.Float32, 2, 4),
		fact(types.Float32, 2, 4),
		fact(types.Float32, 2, 4),
	)
	if !got.Equal(fact(types.Float32, 3, 2, 4)) {
		t.Errorf("got %s", got)
	}
}

func TestPad(t *testing.T) {
	op := &PadOp{Pads: [][2]int64{{1, 1}, {0, 2}}, Known: true, T: types.Float32}
	got := inferOne(t, op, fact(types.Float32, 4, 5), types.Fact{})
	if !got.Equal(fact(types.Float32, 6, 7)) {
		t.Errorf("got %s", got)
	}
}

func TestShapeOp(t *testing.T) {
	op := &ShapeOp{OutT: types.Int32}
	got := inferOne(t, op, fact(types.Float32, 2, 3, 4))
	if !got.Equal(fact(types.Int32, 3)) {
		t.Errorf("got %s", got)
	}
}

func TestCast(t *testing.T) {
	op := &CastOp{SrcT: types.Float32, DstT: types.Int32}
	got := inferOne(t, op, fact(types.Float32, 2, 3))
	if !got.Equal(fact(types.Int32, 2, 3)) {
		t.Errorf("got %s", got)
	}

	_, err := op.InferFacts([]types.Fact{fact(types.Int64, 2)})
	var conflict *types.TypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want TypeConflictError, got %v", err)
	}
}

func TestPlaceholderWithDefaultRefines(t *testing.T) {
	op := &PlaceholderOp{DType: types.Float32, Shape: types.MakeShape(types.DimUnknown, 3)}
	got := inferOne(t, op, fact(types.Float32, 2, 3))
	if !got.Equal(fact(types.Float32, 2, 3)) {
		t.Errorf("got %s", got)
	}
}

func TestMergeLenientJoin(t *testing.T) {
	op := &LoopMarkerOp{OpKind: "Merge", T: types.Float32}
	outs, err := op.InferFacts([]types.Fact{
		fact(types.Float32, 2, 3),
		fact(types.Float32, 2, 5),
	})
	if err != nil {
		t.Fatalf("InferFacts: %v", err)
	}
	want := types.MakeShape(2, types.DimUnknown)
	if !outs[0].Shape.Equal(want) {
		t.Errorf("merged shape = %s, want %s", outs[0].Shape, want)
	}
	if outs[1].DType != types.Int32 || outs[1].Shape.Rank() != 0 {
		t.Errorf("taken-index fact = %s", outs[1])
	}
}

func TestMergeTypeStillStrict(t *testing.T) {
	op := &LoopMarkerOp{OpKind: "Merge"}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32, 2), fact(types.Int32, 2)})
	var conflict *types.TypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want TypeConflictError, got %v", err)
	}
}

func TestSwitchForwardsBothBranches(t *testing.T) {
	op := &LoopMarkerOp{OpKind: "Switch", T: types.Float32}
	outs, err := op.InferFacts([]types.Fact{
		fact(types.Float32, 2, 3),
		types.MakeFact(types.Bool, types.Scalar()),
	})
	if err != nil {
		t.Fatalf("InferFacts: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("output count = %d", len(outs))
	}
	for i, out := range outs {
		if !out.Equal(fact(types.Float32, 2, 3)) {
			t.Errorf("branch %d = %s", i, out)
		}
	}
}

func TestLoopCondRequiresBool(t *testing.T) {
	op := &LoopMarkerOp{OpKind: "LoopCond"}
	_, err := op.InferFacts([]types.Fact{fact(types.Float32)})
	var conflict *types.TypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want TypeConflictError, got %v", err)
	}
}
