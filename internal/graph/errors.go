package graph

import (
	"fmt"
	"strings"
)

// DuplicateNodeNameError reports two nodes declared under the same name.
type DuplicateNodeNameError struct {
	Name string
}

func (e *DuplicateNodeNameError) Error() string {
	return fmt.Sprintf("duplicate node name %q", e.Name)
}

// UnknownInputReferenceError reports an input reference that resolves to no
// node.
type UnknownInputReferenceError struct {
	Node string // consuming node
	Ref  string // unresolved reference as written
}

func (e *UnknownInputReferenceError) Error() string {
	return fmt.Sprintf("node %q references unknown input %q", e.Node, e.Ref)
}

// IllegalCycleError reports a dependency cycle outside any loop frame.
type IllegalCycleError struct {
	Nodes []string // node names on the cycle, in edge order
}

func (e *IllegalCycleError) Error() string {
	return fmt.Sprintf("illegal cycle: %s", strings.Join(e.Nodes, " -> "))
}
