package ops

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loom-ml/loom/internal/graphdef"
)

// UnsupportedOperatorError reports an operator kind with no registered
// translator. Recoverable per-node: translation continues so a caller can
// enumerate every unsupported operator in one pass.
type UnsupportedOperatorError struct {
	Kind string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q", e.Kind)
}

// MissingAttributeError reports a required attribute absent from a node.
type MissingAttributeError struct {
	Attr string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q", e.Attr)
}

// AttributeTypeMismatchError reports an attribute present with the wrong
// value kind.
type AttributeTypeMismatchError struct {
	Attr string
	Want graphdef.AttrKind
	Got  graphdef.AttrKind
}

func (e *AttributeTypeMismatchError) Error() string {
	return fmt.Sprintf("attribute %q is %s, want %s", e.Attr, e.Got, e.Want)
}

// ArityMismatchError reports a node whose input count does not match the
// operator's semantics.
type ArityMismatchError struct {
	Kind    string
	Want    int
	AtLeast bool
	Got     int
}

func (e *ArityMismatchError) Error() string {
	rel := ""
	if e.AtLeast {
		rel = "at least "
	}
	return fmt.Sprintf("%s expects %s%d inputs, got %d", e.Kind, rel, e.Want, e.Got)
}

// BadAttributeError reports an attribute whose value is present and of the
// right kind but semantically invalid (e.g. an undecodable tensor literal
// or an unknown padding mode).
type BadAttributeError struct {
	Attr string
	Err  error
}

func (e *BadAttributeError) Error() string {
	return fmt.Sprintf("invalid attribute %q: %v", e.Attr, e.Err)
}

func (e *BadAttributeError) Unwrap() error { return e.Err }

// NodeError ties a per-node translation failure to the node it occurred on.
type NodeError struct {
	Node string
	Kind string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// NodeErrors aggregates every per-node failure from one translation pass.
type NodeErrors []*NodeError

func (e NodeErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, ne := range e {
		parts[i] = ne.Error()
	}
	return fmt.Sprintf("%d nodes failed translation: %s", len(e), strings.Join(parts, "; "))
}

// UnsupportedKinds lists the distinct unsupported operator kinds in the
// aggregate, in first-seen order.
func (e NodeErrors) UnsupportedKinds() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ne := range e {
		var ue *UnsupportedOperatorError
		if errors.As(ne.Err, &ue) && !seen[ue.Kind] {
			seen[ue.Kind] = true
			out = append(out, ue.Kind)
		}
	}
	return out
}
