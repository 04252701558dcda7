// Package model freezes a translated, propagated graph into the immutable
// artifact handed to the evaluator: operators in topological order, a fact
// per edge, and named input/output lookup. Nothing mutates past Finalize.
package model

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/ops"
	"github.com/loom-ml/loom/internal/types"
)

// OutletID addresses the Slot-th output of the Node-th model operator.
// Indices refer to the finalized operator list, not the source graph.
type OutletID = graph.OutletID

// Node is one finalized operator.
type Node struct {
	Name   string
	Op     graph.Op
	Inputs []OutletID
}

// Model is the finalized, immutable translation result.
type Model struct {
	nodes       []Node
	facts       [][]types.Fact
	inputs      map[string]OutletID
	outputs     map[string]OutletID
	inputNames  []string
	outputNames []string
}

// UnknownEndpointError reports a requested input/output name that does not
// resolve to exactly one edge.
type UnknownEndpointError struct {
	Name string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("no edge for endpoint %q", e.Name)
}

// MissingProducerError reports a data edge whose producer translates to an
// operator with no data outputs, so the edge cannot survive finalization.
type MissingProducerError struct {
	Node     string // consumer
	Producer string
}

func (e *MissingProducerError) Error() string {
	return fmt.Sprintf("node %q consumes data from %q, which produces none", e.Node, e.Producer)
}

// IndeterminateElementTypeError reports an edge whose element type is
// still unknown after propagation. A fully unranked shape is tolerated;
// an unknown element type is not, since the evaluator cannot allocate for
// it.
type IndeterminateElementTypeError struct {
	Node string
	Slot int
}

func (e *IndeterminateElementTypeError) Error() string {
	return fmt.Sprintf("edge %s:%d has indeterminate element type", e.Node, e.Slot)
}

// Finalize validates and freezes the graph. Control-only nodes (those with
// no data outputs) are removed; every surviving edge must carry a definite
// element type. Empty inputs/outputs derive defaults: placeholders feed
// the model, unconsumed data outputs leave it.
func Finalize(g *graph.Graph, inputs, outputs []string) (*Model, error) {
	remap := make([]int, g.NumNodes())
	m := &Model{
		inputs:  make(map[string]OutletID),
		outputs: make(map[string]OutletID),
	}

	for _, i := range g.Order() {
		node := g.Node(i)
		if node.Op == nil || node.Op.NumOutputs() == 0 {
			remap[i] = -1
			continue
		}
		remap[i] = len(m.nodes)
		facts := make([]types.Fact, node.Op.NumOutputs())
		for slot := range facts {
			f := g.Fact(OutletID{Node: i, Slot: slot})
			if !f.DType.IsKnown() {
				return nil, &IndeterminateElementTypeError{Node: node.Name, Slot: slot}
			}
			facts[slot] = f
		}
		m.nodes = append(m.nodes, Node{Name: node.Name, Op: node.Op})
		m.facts = append(m.facts, facts)
	}

	// Rewrite data edges into the compacted index space.
	for _, i := range g.Order() {
		ni := remap[i]
		if ni < 0 {
			continue
		}
		src := g.Node(i).Inputs
		ins := make([]OutletID, len(src))
		for k, o := range src {
			if remap[o.Node] < 0 {
				return nil, &MissingProducerError{
					Node:     g.Node(i).Name,
					Producer: g.Node(o.Node).Name,
				}
			}
			ins[k] = OutletID{Node: remap[o.Node], Slot: o.Slot}
		}
		m.nodes[ni].Inputs = ins
	}

	if len(inputs) == 0 {
		inputs = defaultInputs(m)
	}
	if len(outputs) == 0 {
		outputs = defaultOutputs(m)
	}
	byName := make(map[string]int, len(m.nodes))
	for i := range m.nodes {
		byName[m.nodes[i].Name] = i
	}
	for _, name := range inputs {
		o, err := resolveEndpoint(m, byName, name)
		if err != nil {
			return nil, err
		}
		m.inputs[name] = o
		m.inputNames = append(m.inputNames, name)
	}
	for _, name := range outputs {
		o, err := resolveEndpoint(m, byName, name)
		if err != nil {
			return nil, err
		}
		m.outputs[name] = o
		m.outputNames = append(m.outputNames, name)
	}

	klog.V(1).Infof("finalized model: %d operators, %d inputs, %d outputs",
		len(m.nodes), len(m.inputNames), len(m.outputNames))
	return m, nil
}

func defaultInputs(m *Model) []string {
	var names []string
	for i := range m.nodes {
		if _, ok := m.nodes[i].Op.(*ops.PlaceholderOp); ok {
			names = append(names, m.nodes[i].Name)
		}
	}
	return names
}

func defaultOutputs(m *Model) []string {
	consumed := make([]bool, len(m.nodes))
	for i := range m.nodes {
		for _, o := range m.nodes[i].Inputs {
			consumed[o.Node] = true
		}
	}
	var names []string
	for i := range m.nodes {
		if !consumed[i] {
			names = append(names, m.nodes[i].Name)
		}
	}
	return names
}

// resolveEndpoint maps "name" or "name:k" to one edge.
func resolveEndpoint(m *Model, byName map[string]int, ref string) (OutletID, error) {
	name, slot := ref, 0
	if idx := lastColon(ref); idx >= 0 {
		if k, ok := atoiSlot(ref[idx+1:]); ok {
			name, slot = ref[:idx], k
		}
	}
	i, ok := byName[name]
	if !ok {
		return OutletID{}, &UnknownEndpointError{Name: ref}
	}
	if slot >= m.nodes[i].Op.NumOutputs() {
		return OutletID{}, &UnknownEndpointError{Name: ref}
	}
	return OutletID{Node: i, Slot: slot}, nil
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

func atoiSlot(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// NumNodes returns the operator count.
func (m *Model) NumNodes() int { return len(m.nodes) }

// Node returns the i-th operator in topological order.
func (m *Model) Node(i int) Node {
	n := m.nodes[i]
	n.Inputs = append([]OutletID(nil), n.Inputs...)
	return n
}

// Fact returns the inferred fact on an edge.
func (m *Model) Fact(o OutletID) types.Fact {
	return m.facts[o.Node][o.Slot]
}

// InputNames returns the external input names, in declaration order.
func (m *Model) InputNames() []string {
	return append([]string(nil), m.inputNames...)
}

// OutputNames returns the external output names, in declaration order.
func (m *Model) OutputNames() []string {
	return append([]string(nil), m.outputNames...)
}

// Input resolves an external input name to its edge.
func (m *Model) Input(name string) (OutletID, bool) {
	o, ok := m.inputs[name]
	return o, ok
}

// Output resolves an external output name to its edge.
func (m *Model) Output(name string) (OutletID, bool) {
	o, ok := m.outputs[name]
	return o, ok
}
