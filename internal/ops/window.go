package ops

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/types"
)

func (r *Registry) registerWindow() {
	r.Register("Conv2D", translateConv)
	r.Register("DepthwiseConv2dNative", translateConv)
	r.Register("MaxPool", translatePool)
	r.Register("AvgPool", translatePool)
}

// WindowOp slides a window over the spatial axes: convolution when a
// filter input is present, pooling otherwise. Padding and data format are
// stored in canonical form only.
type WindowOp struct {
	OpKind    string
	Format    ChannelPos
	Pad       PadSpec
	Strides   []int64 // per tensor axis, source order
	Ksize     []int64 // pooling window per tensor axis; nil for convolution
	Depthwise bool
	T         types.DataType
}

func translateConv(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(2); err != nil {
		return nil, err
	}
	op, err := windowCommon(n)
	if err != nil {
		return nil, err
	}
	op.Depthwise = n.Kind == "DepthwiseConv2dNative"
	return op, nil
}

func translatePool(n *TranslateNode) (graph.Op, error) {
	if err := n.requireInputs(1); err != nil {
		return nil, err
	}
	op, err := windowCommon(n)
	if err != nil {
		return nil, err
	}
	op.Ksize, err = n.IntsAttr("ksize")
	if err != nil {
		return nil, err
	}
	return op, nil
}

func windowCommon(n *TranslateNode) (*WindowOp, error) {
	strides, err := n.IntsAttr("strides")
	if err != nil {
		return nil, err
	}
	padding, err := n.StringAttr("padding")
	if err != nil {
		return nil, err
	}
	pad, err := parsePadding(padding, n.OptionalIntsAttr("explicit_paddings"))
	if err != nil {
		return nil, &BadAttributeError{Attr: "padding", Err: err}
	}
	format, err := parseDataFormat(n.OptionalStringAttr("data_format", "NHWC"))
	if err != nil {
		return nil, &BadAttributeError{Attr: "data_format", Err: err}
	}
	return &WindowOp{
		OpKind:  n.Kind,
		Format:  format,
		Pad:     pad,
		Strides: strides,
		T:       n.OptionalTypeAttr("T"),
	}, nil
}

// Kind returns the source operator kind.
func (o *WindowOp) Kind() string { return o.OpKind }

// NumOutputs returns 1.
func (o *WindowOp) NumOutputs() int { return 1 }

// IsPooling reports whether the op pools rather than convolves.
func (o *WindowOp) IsPooling() bool { return o.Ksize != nil }

func dimVal(d types.Dim) int64 {
	if !d.IsKnown() {
		return -1
	}
	return int64(d)
}

func mkDim(v int64) types.Dim {
	if v < 0 {
		return types.DimUnknown
	}
	return types.Dim(v)
}

// InferFacts computes the windowed output shape. Filter layout for
// convolution is [h, w, in, out] ([h, w, in, multiplier] depthwise).
func (o *WindowOp) InferFacts(inputs []types.Fact) ([]types.Fact, error) {
	dts := []types.DataType{o.T, inputs[0].DType}
	if !o.IsPooling() {
		dts = append(dts, inputs[1].DType)
	}
	dt, err := unifyDTypes(dts...)
	if err != nil {
		return nil, err
	}

	data := inputs[0].Shape
	if !data.Ranked {
		return []types.Fact{types.TypedFact(dt)}, nil
	}
	rank := data.Rank()
	if rank != 4 {
		return nil, &types.RankConflictError{A: data, B: types.MakeShape(types.DimUnknown, types.DimUnknown, types.DimUnknown, types.DimUnknown)}
	}

	var filter types.Shape
	if !o.IsPooling() {
		filter = inputs[1].Shape
		if filter.Ranked && filter.Rank() != 4 {
			return nil, &types.RankConflictError{A: filter, B: data}
		}
	}

	out := make([]types.Dim, rank)
	out[0] = data.Dims[0] // batch

	for si, axis := range o.Format.SpatialAxes(rank) {
		window := int64(-1)
		if o.IsPooling() {
			if axis < len(o.Ksize) {
				window = o.Ksize[axis]
			}
		} else if filter.Ranked {
			window = dimVal(filter.Dims[si])
		}
		stride := int64(1)
		if axis < len(o.Strides) {
			stride = o.Strides[axis]
		}
		out[axis] = mkDim(outputExtent(dimVal(data.Dims[axis]), window, stride, o.Pad, axis))
	}

	c := o.Format.ChannelAxis(rank)
	switch {
	case o.IsPooling():
		out[c] = data.Dims[c]
	case !filter.Ranked:
		out[c] = types.DimUnknown
	case o.Depthwise:
		ic, mult := filter.Dims[2], filter.Dims[3]
		if ic.IsKnown() && mult.IsKnown() {
			out[c] = ic * mult
		} else {
			out[c] = types.DimUnknown
		}
	default:
		out[c] = filter.Dims[3]
	}

	// The filter's input-channel extent must agree with the data's.
	if !o.IsPooling() && filter.Ranked {
		dc, fc := data.Dims[c], filter.Dims[2]
		if dc.IsKnown() && fc.IsKnown() && dc != fc {
			return nil, &types.DimConflictError{A: dc, B: fc}
		}
	}

	return []types.Fact{{DType: dt, Shape: types.MakeShape(out...)}}, nil
}
