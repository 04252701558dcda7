package ops

import "github.com/pkg/errors"

// ChannelPos is the canonical channel-position tag normalized from the
// source data_format attribute.
type ChannelPos int

// Channel positions.
const (
	ChannelsLast  ChannelPos = iota // NHWC
	ChannelsFirst                   // NCHW
)

func (c ChannelPos) String() string {
	if c == ChannelsFirst {
		return "channels_first"
	}
	return "channels_last"
}

// ChannelAxis returns the channel axis for a tensor of the given rank.
func (c ChannelPos) ChannelAxis(rank int) int {
	if c == ChannelsFirst {
		return 1
	}
	return rank - 1
}

// SpatialAxes returns the spatial axes (height, width, ...) in order.
func (c ChannelPos) SpatialAxes(rank int) []int {
	out := make([]int, 0, rank-2)
	if c == ChannelsFirst {
		for a := 2; a < rank; a++ {
			out = append(out, a)
		}
	} else {
		for a := 1; a < rank-1; a++ {
			out = append(out, a)
		}
	}
	return out
}

func parseDataFormat(s string) (ChannelPos, error) {
	switch s {
	case "NHWC", "NWC", "NDHWC":
		return ChannelsLast, nil
	case "NCHW", "NCW", "NCDHW":
		return ChannelsFirst, nil
	default:
		return ChannelsLast, errors.Errorf("unknown data format %q", s)
	}
}

// PadMode distinguishes the padding policies of windowed operators.
type PadMode int

// Padding policies.
const (
	PadValid PadMode = iota
	PadSame
	PadExplicit
)

func (m PadMode) String() string {
	switch m {
	case PadSame:
		return "same"
	case PadExplicit:
		return "explicit"
	default:
		return "valid"
	}
}

// PadSpec is the canonical per-dimension padding form: a mode plus, for
// explicit padding, before/after amounts per input axis in source order.
type PadSpec struct {
	Mode     PadMode
	Explicit [][2]int64
}

// parsePadding normalizes the padding attribute string and, for EXPLICIT
// mode, the flat explicit_paddings list into before/after pairs.
func parsePadding(mode string, explicit []int64) (PadSpec, error) {
	switch mode {
	case "VALID":
		return PadSpec{Mode: PadValid}, nil
	case "SAME":
		return PadSpec{Mode: PadSame}, nil
	case "EXPLICIT":
		if len(explicit) == 0 || len(explicit)%2 != 0 {
			return PadSpec{}, errors.Errorf("explicit padding needs before/after pairs, got %d values", len(explicit))
		}
		pairs := make([][2]int64, len(explicit)/2)
		for i := range pairs {
			pairs[i] = [2]int64{explicit[2*i], explicit[2*i+1]}
		}
		return PadSpec{Mode: PadExplicit, Explicit: pairs}, nil
	default:
		return PadSpec{}, errors.Errorf("unknown padding mode %q", mode)
	}
}

// outputExtent computes one spatial output extent for a windowed operator.
// Unknown inputs stay unknown.
func outputExtent(in int64, window, stride int64, spec PadSpec, axis int) int64 {
	if in < 0 || stride <= 0 {
		return -1
	}
	switch spec.Mode {
	case PadSame:
		return (in + stride - 1) / stride
	case PadExplicit:
		padded := in
		if axis < len(spec.Explicit) {
			padded += spec.Explicit[axis][0] + spec.Explicit[axis][1]
		}
		if window < 0 {
			return -1
		}
		return (padded-window)/stride + 1
	default: // valid
		if window < 0 {
			return -1
		}
		return (in-window)/stride + 1
	}
}
