package graph

import (
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/types"
)

// Operator kinds with structural meaning to the assembler. Enter opens a
// loop frame, Exit leaves it, and NextIteration produces the frame's
// back-edge.
const (
	kindEnter         = "Enter"
	kindExit          = "Exit"
	kindNextIteration = "NextIteration"
)

// Assemble resolves name-based input references into an indexed graph.
// It fails with a structural error on duplicate names, unknown references
// or cycles outside loop frames; no partial graph is returned on failure.
func Assemble(records []graphdef.Record) (*Graph, error) {
	g := &Graph{
		nodes:     make([]Node, len(records)),
		byName:    make(map[string]int, len(records)),
		consumers: make([][]int, len(records)),
		backEdges: make(map[[2]int]bool),
		facts:     make([][]types.Fact, len(records)),
	}

	for i, rec := range records {
		if _, dup := g.byName[rec.Name]; dup {
			return nil, &DuplicateNodeNameError{Name: rec.Name}
		}
		g.byName[rec.Name] = i
		g.nodes[i] = Node{Name: rec.Name, OpKind: rec.OpKind, Attrs: rec.Attrs}
	}

	// Resolve input references and build the successor adjacency.
	succ := make([][]int, len(records))
	for i, rec := range records {
		node := &g.nodes[i]
		for _, ref := range rec.Inputs {
			name, slot, control := parseInputRef(ref)
			p, ok := g.byName[name]
			if !ok {
				return nil, &UnknownInputReferenceError{Node: rec.Name, Ref: ref}
			}
			if control {
				node.ControlDeps = append(node.ControlDeps, p)
			} else {
				node.Inputs = append(node.Inputs, OutletID{Node: p, Slot: slot})
				g.consumers[p] = appendUnique(g.consumers[p], i)
			}
			succ[p] = appendUnique(succ[p], i)
		}
	}

	g.assignFrames(succ)
	g.markBackEdges()

	if err := g.checkAcyclic(succ); err != nil {
		return nil, err
	}
	g.order = g.topoOrder(succ)

	klog.V(1).Infof("assembled graph: %d nodes, %d back-edges", len(g.nodes), len(g.backEdges))
	return g, nil
}

// parseInputRef splits a declared input reference into node name, output
// slot and control flag. References read "name", "name:k" or "^name".
func parseInputRef(ref string) (name string, slot int, control bool) {
	if strings.HasPrefix(ref, "^") {
		return ref[1:], 0, true
	}
	if idx := strings.LastIndexByte(ref, ':'); idx >= 0 {
		if k, err := strconv.Atoi(ref[idx+1:]); err == nil && k >= 0 {
			return ref[:idx], k, false
		}
	}
	return ref, 0, false
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// assignFrames propagates loop-frame membership forward from every Enter
// node, stopping at the frame's Exit nodes. Nodes outside any loop keep
// the empty frame.
func (g *Graph) assignFrames(succ [][]int) {
	frameOf := func(i int) string {
		if a, ok := g.nodes[i].Attrs["frame_name"]; ok && a.Kind == graphdef.AttrString {
			return a.S
		}
		return g.nodes[i].Name // fallback when the attribute is missing
	}
	// Every Enter claims its own frame first, so an inner loop's Enter is
	// never swallowed by the enclosing frame's sweep.
	for i := range g.nodes {
		if g.nodes[i].OpKind == kindEnter {
			g.nodes[i].Frame = frameOf(i)
		}
	}
	for i := range g.nodes {
		if g.nodes[i].OpKind != kindEnter {
			continue
		}
		frame := g.nodes[i].Frame
		queue := append([]int(nil), succ[i]...)
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if g.nodes[n].Frame != "" {
				continue
			}
			g.nodes[n].Frame = frame
			if g.nodes[n].OpKind == kindExit {
				continue
			}
			queue = append(queue, succ[n]...)
		}
	}
}

// markBackEdges records every data edge produced by an in-frame
// NextIteration node. A NextIteration outside any frame keeps its edges,
// so the cycle it closes is reported as illegal.
func (g *Graph) markBackEdges() {
	for i := range g.nodes {
		if g.nodes[i].OpKind != kindNextIteration || g.nodes[i].Frame == "" {
			continue
		}
		for _, c := range g.consumers[i] {
			g.backEdges[[2]int{i, c}] = true
		}
	}
}

// checkAcyclic runs an iterative DFS over the successor adjacency with
// back-edges removed. Any remaining cycle is structural corruption.
func (g *Graph) checkAcyclic(succ [][]int) error {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))

	for root := range g.nodes {
		if color[root] != white {
			continue
		}
		parent[root] = -1
		stack := []int{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			if color[n] == white {
				color[n] = gray
			} else {
				color[n] = black
				stack = stack[:len(stack)-1]
				continue
			}
			for _, s := range succ[n] {
				if g.backEdges[[2]int{n, s}] {
					continue
				}
				switch color[s] {
				case white:
					parent[s] = n
					stack = append(stack, s)
				case gray:
					return &IllegalCycleError{Nodes: g.cyclePath(parent, n, s)}
				}
			}
		}
	}
	return nil
}

// cyclePath names the nodes on the cycle closed by the edge from → to.
func (g *Graph) cyclePath(parent []int, from, to int) []string {
	var path []string
	for n := from; n != -1; n = parent[n] {
		path = append([]string{g.nodes[n].Name}, path...)
		if n == to {
			break
		}
	}
	return append(path, g.nodes[to].Name)
}

// topoOrder returns a topological order over the acyclic graph (back-edges
// excluded). Insertion order breaks ties, keeping the result deterministic.
func (g *Graph) topoOrder(succ [][]int) []int {
	indegree := make([]int, len(g.nodes))
	for n, ss := range succ {
		for _, s := range ss {
			if g.backEdges[[2]int{n, s}] {
				continue
			}
			indegree[s]++
		}
	}
	var queue, order []int
	for i := range g.nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, s := range succ[n] {
			if g.backEdges[[2]int{n, s}] {
				continue
			}
			indegree[s]--
			if indegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return order
}
