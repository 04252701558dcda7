// Package ops maps source operator kinds onto the closed set of internal
// operator variants. Each variant owns only the attributes it needs,
// normalized from the source encoding, and colocates its shape/type
// inference rule with its translation rule.
package ops

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/types"
)

// TranslateNode is the translator's view of one assembled node: its
// attributes, input arity, and access to input literals that are already
// translated constants (needed by ops that take axes or shapes as inputs).
type TranslateNode struct {
	Name      string
	Kind      string
	Attrs     map[string]graphdef.Attr
	NumInputs int

	inputLiteral func(i int) *types.Literal
}

// InputLiteral returns the literal feeding input i when its producer is a
// translated constant, nil otherwise.
func (n *TranslateNode) InputLiteral(i int) *types.Literal {
	if n.inputLiteral == nil {
		return nil
	}
	return n.inputLiteral(i)
}

// Translator builds one operator instance from a node, or fails with a
// typed per-node error.
type Translator func(n *TranslateNode) (graph.Op, error)

// TranslateGraph runs the registry over every node in topological order,
// attaching operator instances. Per-node failures are collected, not
// stopping the pass, so one call reports every unsupported or malformed
// node; a non-nil error is always a NodeErrors aggregate.
func TranslateGraph(g *graph.Graph, reg *Registry) error {
	var errs NodeErrors
	for _, i := range g.Order() {
		node := g.Node(i)
		tr, ok := reg.Get(node.OpKind)
		if !ok {
			errs = append(errs, &NodeError{
				Node: node.Name,
				Kind: node.OpKind,
				Err:  &UnsupportedOperatorError{Kind: node.OpKind},
			})
			continue
		}
		idx := i
		tn := &TranslateNode{
			Name:      node.Name,
			Kind:      node.OpKind,
			Attrs:     node.Attrs,
			NumInputs: len(node.Inputs),
			inputLiteral: func(k int) *types.Literal {
				ins := g.Node(idx).Inputs
				if k < 0 || k >= len(ins) {
					return nil
				}
				o := ins[k]
				if c, ok := g.Node(o.Node).Op.(*ConstOp); ok && o.Slot == 0 {
					return c.Value
				}
				return nil
			},
		}
		op, err := tr(tn)
		if err != nil {
			errs = append(errs, &NodeError{Node: node.Name, Kind: node.OpKind, Err: err})
			continue
		}
		klog.V(2).Infof("translated %q (%s)", node.Name, node.OpKind)
		g.SetOp(i, op)
	}
	// Output arities are only known once ops are attached, so slot ranges
	// on data edges are checked last.
	errs = append(errs, CheckSlotRanges(g)...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CheckSlotRanges validates every data edge against its producer's output
// arity, skipping nodes without an attached operator. Callers that attach
// operators after the translation pass must re-run it.
func CheckSlotRanges(g *graph.Graph) NodeErrors {
	var errs NodeErrors
	for _, i := range g.Order() {
		node := g.Node(i)
		if node.Op == nil {
			continue
		}
		for _, o := range node.Inputs {
			p := g.Node(o.Node)
			if p.Op == nil {
				continue
			}
			if o.Slot >= p.Op.NumOutputs() {
				errs = append(errs, &NodeError{
					Node: node.Name,
					Kind: node.OpKind,
					Err: &graph.UnknownInputReferenceError{
						Node: node.Name,
						Ref:  fmt.Sprintf("%s:%d", p.Name, o.Slot),
					},
				})
			}
		}
	}
	return errs
}

// requireInputs validates exact input arity.
func (n *TranslateNode) requireInputs(want int) error {
	if n.NumInputs != want {
		return &ArityMismatchError{Kind: n.Kind, Want: want, Got: n.NumInputs}
	}
	return nil
}

// requireMinInputs validates a lower arity bound.
func (n *TranslateNode) requireMinInputs(min int) error {
	if n.NumInputs < min {
		return &ArityMismatchError{Kind: n.Kind, Want: min, AtLeast: true, Got: n.NumInputs}
	}
	return nil
}

func (n *TranslateNode) attr(name string, kind graphdef.AttrKind) (graphdef.Attr, error) {
	a, ok := n.Attrs[name]
	if !ok {
		return graphdef.Attr{}, &MissingAttributeError{Attr: name}
	}
	if a.Kind != kind {
		return graphdef.Attr{}, &AttributeTypeMismatchError{Attr: name, Want: kind, Got: a.Kind}
	}
	return a, nil
}

// TypeAttr reads a required type attribute, e.g. "T".
func (n *TranslateNode) TypeAttr(name string) (types.DataType, error) {
	a, err := n.attr(name, graphdef.AttrType)
	if err != nil {
		return types.Invalid, err
	}
	return a.Type, nil
}

// OptionalTypeAttr reads a type attribute, defaulting to unknown.
func (n *TranslateNode) OptionalTypeAttr(name string) types.DataType {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrType {
		return a.Type
	}
	return types.Invalid
}

// IntAttr reads a required int attribute.
func (n *TranslateNode) IntAttr(name string) (int64, error) {
	a, err := n.attr(name, graphdef.AttrInt)
	if err != nil {
		return 0, err
	}
	return a.I, nil
}

// OptionalIntAttr reads an int attribute with a default.
func (n *TranslateNode) OptionalIntAttr(name string, def int64) int64 {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrInt {
		return a.I
	}
	return def
}

// IntsAttr reads a required int-list attribute.
func (n *TranslateNode) IntsAttr(name string) ([]int64, error) {
	a, err := n.attr(name, graphdef.AttrList)
	if err != nil {
		return nil, err
	}
	return a.Ints, nil
}

// OptionalIntsAttr reads an int-list attribute, nil when absent.
func (n *TranslateNode) OptionalIntsAttr(name string) []int64 {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrList {
		return a.Ints
	}
	return nil
}

// StringAttr reads a required string attribute.
func (n *TranslateNode) StringAttr(name string) (string, error) {
	a, err := n.attr(name, graphdef.AttrString)
	if err != nil {
		return "", err
	}
	return a.S, nil
}

// OptionalStringAttr reads a string attribute with a default.
func (n *TranslateNode) OptionalStringAttr(name, def string) string {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrString {
		return a.S
	}
	return def
}

// OptionalFloatAttr reads a float attribute with a default.
func (n *TranslateNode) OptionalFloatAttr(name string, def float32) float32 {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrFloat {
		return a.F
	}
	return def
}

// OptionalBoolAttr reads a bool attribute with a default.
func (n *TranslateNode) OptionalBoolAttr(name string, def bool) bool {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrBool {
		return a.B
	}
	return def
}

// ShapeAttr reads a required shape attribute.
func (n *TranslateNode) ShapeAttr(name string) (types.Shape, error) {
	a, err := n.attr(name, graphdef.AttrShape)
	if err != nil {
		return types.Shape{}, err
	}
	return a.Shape, nil
}

// OptionalShapeAttr reads a shape attribute, unranked when absent.
func (n *TranslateNode) OptionalShapeAttr(name string) types.Shape {
	if a, ok := n.Attrs[name]; ok && a.Kind == graphdef.AttrShape {
		return a.Shape
	}
	return types.Unranked()
}

// TensorAttr reads a required tensor attribute in wire form.
func (n *TranslateNode) TensorAttr(name string) (*graphdef.TensorProto, error) {
	a, err := n.attr(name, graphdef.AttrTensor)
	if err != nil {
		return nil, err
	}
	return a.Tensor, nil
}
