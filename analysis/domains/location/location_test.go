package location

import (
	"context"
	"testing"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/stretchr/testify/require"
)

// program builds main calling f from two call sites.
func program(t *testing.T) (g *cfa.Graph, main, f *cfa.Function, sites [2]*cfa.Node) {
	g = cfa.NewGraph()
	var err error
	main, err = g.NewFunction("main")
	require.NoError(t, err)
	f, err = g.NewFunction("f")
	require.NoError(t, err)
	require.NoError(t, g.Blank(f.Entry, f.Exit))

	call1, ret1 := g.NewLocation("main", "call1"), g.NewLocation("main", "ret1")
	ret2 := g.NewLocation("main", "ret2")
	require.NoError(t, g.Blank(main.Entry, call1))
	require.NoError(t, g.Call(call1, "f", ret1))
	require.NoError(t, g.Call(ret1, "f", ret2))
	require.NoError(t, g.Blank(ret2, main.Exit))
	return g, main, f, [2]*cfa.Node{ret1, ret2}
}

func succs(t *testing.T, tr Transfer, s cpa.State, e cfa.Edge) []cpa.State {
	t.Helper()
	res, err := tr.Successors(context.Background(), s, cpa.NoPrecision, e)
	require.NoError(t, err)
	return res
}

func TestCallReturnMatching(t *testing.T) {
	g, _, f, sites := program(t)
	tr := Transfer{}

	call := g.In(f.Entry)[0].(cfa.CallEdge)
	entered := succs(t, tr, Initial(call.From), call)
	require.Len(t, entered, 1)
	require.Equal(t, 1, entered[0].(State).CallstackDepth())
	site, ok := entered[0].(State).ReturnSite()
	require.True(t, ok)
	require.Equal(t, call.ReturnSite.ID(), site.ID())

	exit := entered[0].(State).at(f.Exit)
	returns := g.Out(f.Exit)
	require.Len(t, returns, 2)

	var back []cpa.State
	for _, e := range returns {
		back = append(back, succs(t, tr, exit, e)...)
	}
	require.Len(t, back, 1, "only the matching return edge is followed")
	require.True(t, back[0].Equal(Initial(sites[0])))

	require.Empty(t, succs(t, tr, Initial(f.Exit), returns[0]), "no return from an empty stack")
}

func TestMaxDepth(t *testing.T) {
	g, _, f, _ := program(t)
	call := g.In(f.Entry)[0]

	s := Initial(call.Pred())
	_, err := Transfer{MaxDepth: 1}.Successors(context.Background(), s.push(call.Pred(), call.Pred()), cpa.NoPrecision, call)
	require.ErrorIs(t, err, cpa.ErrUnsupported)

	_, err = Transfer{}.Successors(context.Background(), s.push(call.Pred(), call.Pred()), cpa.NoPrecision, call)
	require.NoError(t, err)
}

func TestReducer(t *testing.T) {
	_, _, f, sites := program(t)
	root := Initial(sites[1]).push(f.Entry, sites[0])

	reduced, err := Reducer{}.Reduce(root, nil)
	require.NoError(t, err)
	require.True(t, reduced.Equal(Initial(f.Entry)))

	exit, err := Reducer{}.Expand(root, nil, Initial(f.Exit))
	require.NoError(t, err)
	require.True(t, exit.Equal(root.at(f.Exit)))
	require.Equal(t, "N3(f exit) [N5(ret1)]", exit.String())
}

func TestEqualityIgnoresSharing(t *testing.T) {
	_, main, _, sites := program(t)
	a := Initial(main.Entry).push(main.Entry, sites[0])
	b := Initial(main.Exit).push(main.Entry, sites[0])
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())
	require.False(t, a.Equal(Initial(main.Entry)))
}

func TestDifferRecoversFrames(t *testing.T) {
	g, _, f, sites := program(t)
	call := g.In(f.Entry)[0].(cfa.CallEdge)
	entered := succs(t, Transfer{}, Initial(call.From), call)[0]

	reduced, err := Reducer{}.Reduce(entered, nil)
	require.NoError(t, err)

	d, err := Differ{}.Difference(reduced, entered)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	require.True(t, d.Contains(Frame{sites[0]}))
	require.False(t, d.Contains(Frame{sites[1]}))

	d, err = Differ{}.Difference(entered, entered)
	require.NoError(t, err)
	require.Zero(t, d.Len())

	_, err = Differ{}.Difference(reduced, nil)
	require.Error(t, err)
}
