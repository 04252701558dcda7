// Package infer runs fixed-point shape/type propagation over a translated
// graph: each operator's local inference rule is applied along a worklist
// until no edge's fact changes, within a bounded number of passes.
package infer

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/graph"
)

// DefaultMaxPasses bounds fixed-point iteration. Well-formed graphs settle
// in a handful of passes; the bound guards against oscillation.
const DefaultMaxPasses = 16

// ShapeConflictError reports facts that cannot be reconciled at a node:
// either definite shapes that disagree or definite element types that
// would need an implicit coercion. Fatal for the whole model.
type ShapeConflictError struct {
	Node string
	Err  error
}

func (e *ShapeConflictError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *ShapeConflictError) Unwrap() error { return e.Err }

// ConvergenceError reports propagation still changing facts after the
// maximum pass count. Fatal for the whole model.
type ConvergenceError struct {
	Passes int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("shape propagation did not converge after %d passes", e.Passes)
}

// Propagate refines every outlet's fact to a fixed point. Nodes are
// processed in topological order, revisiting only those whose inputs
// changed, so the result is deterministic and the per-node rule stays
// pure. maxPasses <= 0 selects DefaultMaxPasses.
func Propagate(g *graph.Graph, maxPasses int) error {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	dirty := make([]bool, g.NumNodes())
	for i := range dirty {
		dirty[i] = true
	}

	for pass := 1; pass <= maxPasses; pass++ {
		changed := 0
		for _, i := range g.Order() {
			if !dirty[i] {
				continue
			}
			dirty[i] = false
			node := g.Node(i)
			if node.Op == nil {
				continue
			}
			outs, err := node.Op.InferFacts(g.InputFacts(i))
			if err != nil {
				return &ShapeConflictError{Node: node.Name, Err: err}
			}
			for slot, f := range outs {
				refined, err := g.RefineFact(graph.OutletID{Node: i, Slot: slot}, f)
				if err != nil {
					return &ShapeConflictError{Node: node.Name, Err: err}
				}
				if refined {
					changed++
					for _, c := range g.Consumers(i) {
						dirty[c] = true
					}
				}
			}
		}
		klog.V(1).Infof("propagation pass %d refined %d facts", pass, changed)
		if changed == 0 {
			return nil
		}
	}
	return &ConvergenceError{Passes: maxPasses}
}
