// Package graph assembles decoded node records into an indexed dataflow
// graph: name references resolved to dense indices, structural errors
// detected, topological order fixed. Later stages address nodes and edges
// by index only.
package graph

import (
	"fmt"

	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/types"
)

// OutletID addresses the Slot-th output of a node.
type OutletID struct {
	Node int
	Slot int
}

func (o OutletID) String() string {
	return fmt.Sprintf("%d:%d", o.Node, o.Slot)
}

// Op is the translated operator attached to a node. Implementations live in
// the ops package; the graph only needs arity and the local inference rule.
type Op interface {
	// Kind returns the source operator kind this op was translated from.
	Kind() string
	// NumOutputs returns the number of output slots.
	NumOutputs() int
	// InferFacts produces the best-known output facts given the current
	// input facts. It must be monotonic: called again with more specific
	// inputs it may only return more specific outputs.
	InferFacts(inputs []types.Fact) ([]types.Fact, error)
}

// Node is one graph node. Attrs are carried from decoding until translation
// attaches an Op, then dropped.
type Node struct {
	Name        string
	OpKind      string
	Inputs      []OutletID // data inputs, in declared order
	ControlDeps []int      // control-only predecessors
	Frame       string     // enclosing control-flow frame, "" outside loops
	Attrs       map[string]graphdef.Attr

	Op Op // nil until translated
}

// Graph owns the assembled nodes, the producer→consumer adjacency and the
// per-outlet facts refined during propagation.
type Graph struct {
	nodes     []Node
	byName    map[string]int
	consumers [][]int // node → consumer node indices (data edges only)
	backEdges map[[2]int]bool
	order     []int // topological order, back-edges excluded

	facts [][]types.Fact // node → slot → fact
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Node returns the i-th node.
func (g *Graph) Node(i int) *Node { return &g.nodes[i] }

// Index resolves a node name to its index.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// Order returns node indices in topological order (loop back-edges
// excluded from the ordering constraint).
func (g *Graph) Order() []int { return g.order }

// Consumers returns the indices of nodes consuming any output of node i.
func (g *Graph) Consumers(i int) []int { return g.consumers[i] }

// IsBackEdge reports whether the edge from producer to consumer closes a
// loop frame.
func (g *Graph) IsBackEdge(producer, consumer int) bool {
	return g.backEdges[[2]int{producer, consumer}]
}

// SetOp attaches the translated operator to node i and allocates its output
// fact slots. The node's raw attributes are dropped: they are fully
// consumed by translation.
func (g *Graph) SetOp(i int, op Op) {
	g.nodes[i].Op = op
	g.nodes[i].Attrs = nil
	g.facts[i] = make([]types.Fact, op.NumOutputs())
}

// Fact returns the current fact on an outlet. Outlets of untranslated
// nodes have no facts.
func (g *Graph) Fact(o OutletID) types.Fact {
	if g.facts[o.Node] == nil || o.Slot >= len(g.facts[o.Node]) {
		return types.Fact{}
	}
	return g.facts[o.Node][o.Slot]
}

// RefineFact unifies new information into an outlet's fact and reports
// whether the fact became more specific. Refinement is monotonic; a
// conflict means the graph cannot be soundly typed.
func (g *Graph) RefineFact(o OutletID, f types.Fact) (bool, error) {
	merged, changed, err := g.facts[o.Node][o.Slot].Refine(f)
	if err != nil {
		return false, err
	}
	g.facts[o.Node][o.Slot] = merged
	return changed, nil
}

// InputFacts collects the current facts on a node's data inputs.
func (g *Graph) InputFacts(i int) []types.Fact {
	in := make([]types.Fact, len(g.nodes[i].Inputs))
	for k, o := range g.nodes[i].Inputs {
		in[k] = g.Fact(o)
	}
	return in
}
