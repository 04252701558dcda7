package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/graphdef"
	"github.com/loom-ml/loom/internal/infer"
	"github.com/loom-ml/loom/internal/ops"
	"github.com/loom-ml/loom/internal/types"
)

func placeholder(name string, dt types.DataType, shape types.Shape) graphdef.Record {
	return graphdef.Record{
		Name:   name,
		OpKind: "Placeholder",
		Attrs: map[string]graphdef.Attr{
			"dtype": {Kind: graphdef.AttrType, Type: dt},
			"shape": {Kind: graphdef.AttrShape, Shape: shape},
		},
	}
}

func relu(name, input string) graphdef.Record {
	return graphdef.Record{
		Name:   name,
		OpKind: "Relu",
		Inputs: []string{input},
		Attrs:  map[string]graphdef.Attr{"T": {Kind: graphdef.AttrType, Type: types.Float32}},
	}
}

func propagated(t *testing.T, recs ...graphdef.Record) *graph.Graph {
	t.Helper()
	g, err := graph.Assemble(recs)
	require.NoError(t, err)
	require.NoError(t, ops.TranslateGraph(g, ops.NewRegistry()))
	require.NoError(t, infer.Propagate(g, 0))
	return g
}

func TestFinalizeDefaults(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(1, 4)),
		relu("hidden", "in"),
		relu("out", "hidden"),
	)
	m, err := Finalize(g, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumNodes())
	assert.Equal(t, []string{"in"}, m.InputNames())
	assert.Equal(t, []string{"out"}, m.OutputNames())

	o, ok := m.Output("out")
	require.True(t, ok)
	want := types.MakeFact(types.Float32, types.MakeShapeFromInts(1, 4))
	assert.True(t, m.Fact(o).Equal(want), "fact = %s", m.Fact(o))
}

// Control-only nodes carry no data and are dropped from the finalized
// operator list.
func TestFinalizeDropsControlOnlyNodes(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(2)),
		graphdef.Record{Name: "barrier", OpKind: "NoOp"},
		graphdef.Record{Name: "out", OpKind: "Relu", Inputs: []string{"in", "^barrier"},
			Attrs: map[string]graphdef.Attr{"T": {Kind: graphdef.AttrType, Type: types.Float32}}},
	)
	m, err := Finalize(g, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumNodes())
	for i := 0; i < m.NumNodes(); i++ {
		assert.NotEqual(t, "barrier", m.Node(i).Name)
	}
}

func TestFinalizeExplicitEndpoints(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(2)),
		relu("a", "in"),
		relu("b", "a"),
	)
	m, err := Finalize(g, []string{"in"}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, m.OutputNames())
	_, ok := m.Output("b")
	assert.False(t, ok)
}

func TestFinalizeSlotEndpoint(t *testing.T) {
	g := propagated(t,
		placeholder("v", types.Float32, types.MakeShapeFromInts(2)),
		placeholder("p", types.Bool, types.Scalar()),
		graphdef.Record{Name: "sw", OpKind: "Switch", Inputs: []string{"v", "p"},
			Attrs: map[string]graphdef.Attr{"T": {Kind: graphdef.AttrType, Type: types.Float32}}},
	)
	m, err := Finalize(g, []string{"v", "p"}, []string{"sw:1"})
	require.NoError(t, err)
	o, ok := m.Output("sw:1")
	require.True(t, ok)
	assert.Equal(t, 1, o.Slot)
}

func TestFinalizeUnknownEndpoint(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(2)),
	)
	_, err := Finalize(g, nil, []string{"ghost"})
	var unknown *UnknownEndpointError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)

	// A slot past the producer's arity is just as unresolvable.
	_, err = Finalize(g, nil, []string{"in:3"})
	require.ErrorAs(t, err, &unknown)
}

func TestFinalizeIndeterminateElementType(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(2)),
		// No T attribute anywhere downstream of an untyped edge.
		graphdef.Record{Name: "mystery", OpKind: "Snapshot", Inputs: []string{"in"}},
	)
	// Break the type chain by attaching an opaque op with no declared type.
	i, _ := g.Index("mystery")
	g.SetOp(i, &ops.OpaqueOp{OpKind: "Snapshot", Outputs: 1})
	require.NoError(t, infer.Propagate(g, 0))

	_, err := Finalize(g, nil, nil)
	var indet *IndeterminateElementTypeError
	require.ErrorAs(t, err, &indet)
	assert.Equal(t, "mystery", indet.Node)
}

// A data edge whose producer has no data outputs names both ends of the
// broken edge, not a missing endpoint.
func TestFinalizeDataEdgeFromControlOnlyProducer(t *testing.T) {
	g, err := graph.Assemble([]graphdef.Record{
		{Name: "src", OpKind: "NoOp"},
		{Name: "use", OpKind: "Relu", Inputs: []string{"src"}},
	})
	require.NoError(t, err)
	si, _ := g.Index("src")
	ui, _ := g.Index("use")
	g.SetOp(si, &ops.NoOp{})
	g.SetOp(ui, &ops.IdentityOp{OpKind: "Relu", T: types.Float32})
	require.NoError(t, infer.Propagate(g, 0))

	_, err = Finalize(g, nil, nil)
	var missing *MissingProducerError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "use", missing.Node)
	assert.Equal(t, "src", missing.Producer)
}

func TestModelImmutableAccessors(t *testing.T) {
	g := propagated(t,
		placeholder("in", types.Float32, types.MakeShapeFromInts(2)),
		relu("out", "in"),
	)
	m, err := Finalize(g, nil, nil)
	require.NoError(t, err)

	names := m.InputNames()
	names[0] = "mutated"
	assert.Equal(t, []string{"in"}, m.InputNames())

	n := m.Node(1)
	require.Len(t, n.Inputs, 1)
	n.Inputs[0] = OutletID{Node: 99, Slot: 9}
	assert.Equal(t, OutletID{Node: 0, Slot: 0}, m.Node(1).Inputs[0])
}
