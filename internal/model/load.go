package model

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/infer"
	"github.com/loom-ml/loom/internal/ops"
	"github.com/loom-ml/loom/internal/types"
)

// Options configures translation.
type Options struct {
	// Strict fails on unsupported operator kinds. When false, unknown
	// kinds become opaque single-output operators with unranked shapes.
	Strict bool

	// MaxPasses bounds fact propagation; 0 means the default.
	MaxPasses int

	// Inputs and Outputs name the model's external edges, as "name" or
	// "name:k". Empty means derive: placeholders in, unconsumed edges out.
	Inputs  []string
	Outputs []string

	// InputShapes pins shapes onto named nodes before propagation.
	InputShapes map[string]types.Shape

	// CustomOps extends or overrides the operator registry.
	CustomOps map[string]ops.Translator
}

// DefaultOptions returns the default translation options.
func DefaultOptions() Options {
	return Options{
		Strict:    true,
		MaxPasses: infer.DefaultMaxPasses,
	}
}

// Load reads and translates a serialized graph from a file.
func Load(path string, opts ...Options) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading graph %q", path)
	}
	return LoadFromBytes(data, opts...)
}

// LoadFromBytes decodes and translates a serialized graph.
func LoadFromBytes(data []byte, opts ...Options) (*Model, error) {
	g, err := graphdef.Decode(data)
	if err != nil {
		return nil, err
	}
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	return Translate(g, opt)
}

// Translate runs the full pipeline over a decoded graph: assemble,
// translate operators, propagate facts, finalize.
func Translate(def *graphdef.GraphDef, opt Options) (*Model, error) {
	g, err := graph.Assemble(graphdef.Records(def))
	if err != nil {
		return nil, err
	}

	reg := ops.NewRegistry()
	for kind, tr := range opt.CustomOps {
		reg.Register(kind, tr)
	}
	if err := ops.TranslateGraph(g, reg); err != nil {
		nerrs, ok := err.(ops.NodeErrors)
		if !ok || opt.Strict {
			return nil, err
		}
		rest := nerrs[:0]
		for _, ne := range nerrs {
			var unsup *ops.UnsupportedOperatorError
			if !errors.As(ne.Err, &unsup) {
				rest = append(rest, ne)
				continue
			}
			i, _ := g.Index(ne.Node)
			node := g.Node(i)
			t := types.Invalid
			if a, ok := node.Attrs["T"]; ok && a.Kind == graphdef.AttrType {
				t = a.Type
			} else if a, ok := node.Attrs["dtype"]; ok && a.Kind == graphdef.AttrType {
				t = a.Type
			}
			klog.Warningf("unsupported operator %q (%s), treating as opaque", ne.Node, ne.Kind)
			g.SetOp(i, &ops.OpaqueOp{OpKind: node.OpKind, Outputs: maxReferencedSlot(g, i) + 1, T: t})
		}
		if len(rest) > 0 {
			return nil, rest
		}
		// Opaque nodes had no operator during the translation pass, so
		// edges touching them were never range-checked.
		if errs := ops.CheckSlotRanges(g); len(errs) > 0 {
			return nil, errs
		}
	}

	for name, shape := range opt.InputShapes {
		i, ok := g.Index(name)
		if !ok {
			return nil, &UnknownEndpointError{Name: name}
		}
		o := graph.OutletID{Node: i, Slot: 0}
		if _, err := g.RefineFact(o, types.Fact{Shape: shape}); err != nil {
			return nil, &infer.ShapeConflictError{Node: name, Err: err}
		}
	}

	maxPasses := opt.MaxPasses
	if maxPasses <= 0 {
		maxPasses = infer.DefaultMaxPasses
	}
	if err := infer.Propagate(g, maxPasses); err != nil {
		return nil, err
	}

	return Finalize(g, opt.Inputs, opt.Outputs)
}

// maxReferencedSlot returns the highest output slot of node i any data
// edge consumes, 0 when nothing consumes it. An opaque stand-in sized
// from it satisfies every consumer.
func maxReferencedSlot(g *graph.Graph, i int) int {
	max := 0
	for j := 0; j < g.NumNodes(); j++ {
		for _, o := range g.Node(j).Inputs {
			if o.Node == i && o.Slot > max {
				max = o.Slot
			}
		}
	}
	return max
}

// GraphInfo summarizes a serialized graph without translating it.
type GraphInfo struct {
	ProducerVersion int32
	NodeCount       int
	OpKinds         []string // distinct kinds, sorted
	InputNames      []string // placeholder nodes
	OutputNames     []string // nodes never consumed
}

// ReadGraphInfo decodes a graph file and reports its structure. Useful
// for inspecting a graph before committing to a full translation.
func ReadGraphInfo(path string) (*GraphInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading graph %q", path)
	}
	def, err := graphdef.Decode(data)
	if err != nil {
		return nil, err
	}

	info := &GraphInfo{
		ProducerVersion: def.Versions.Producer,
		NodeCount:       len(def.Nodes),
	}
	kinds := make(map[string]bool)
	consumed := make(map[string]bool)
	for i := range def.Nodes {
		n := &def.Nodes[i]
		kinds[n.Op] = true
		for _, ref := range n.Inputs {
			name := ref
			if len(name) > 0 && name[0] == '^' {
				name = name[1:]
			}
			if idx := lastColon(name); idx >= 0 {
				if _, ok := atoiSlot(name[idx+1:]); ok {
					name = name[:idx]
				}
			}
			consumed[name] = true
		}
	}
	for k := range kinds {
		info.OpKinds = append(info.OpKinds, k)
	}
	sort.Strings(info.OpKinds)
	for i := range def.Nodes {
		n := &def.Nodes[i]
		switch n.Op {
		case "Placeholder", "PlaceholderV2", "PlaceholderWithDefault":
			info.InputNames = append(info.InputNames, n.Name)
		}
		if !consumed[n.Name] {
			info.OutputNames = append(info.OutputNames, n.Name)
		}
	}
	return info, nil
}
