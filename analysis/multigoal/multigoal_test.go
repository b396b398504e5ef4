package multigoal_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cs-au-dk/reach/analysis/algorithm"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/cpa/cpatest"
	"github.com/cs-au-dk/reach/analysis/multigoal"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/analysis/waitlist"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

// diamond builds A -> B -> C with a shortcut A -> C and returns the edges
// A -> B, B -> C and A -> C.
func diamond(t *testing.T) (*cfa.Graph, []*cfa.Node, [3]cfa.Edge) {
	g, locs := cpatest.Chain("A", "B", "C")
	require.NoError(t, g.Blank(locs[0], locs[2]))
	out := g.Out(locs[0])
	require.Len(t, out, 2)
	return g, locs, [3]cfa.Edge{out[0], g.Out(locs[1])[0], out[1]}
}

func TestAdvance(t *testing.T) {
	_, _, es := diamond(t)
	goal := &multigoal.Goal{ID: 1, Edges: es[:2], Unlock: []multigoal.EdgeSet{multigoal.NewEdgeSet(es[2])}}
	goals := []*multigoal.Goal{goal}

	s := multigoal.Initial()
	require.True(t, s.IsInitial())
	require.Empty(t, s.Goals())

	s = s.Advance(es[1], goals)
	require.Zero(t, s.Progress(goal), "goals start with their first edge")
	require.False(t, s.IsInitial())

	s = s.Advance(es[0], goals)
	require.Equal(t, 1, s.Progress(goal))
	require.Len(t, s.Pending(goal), 1)

	s = s.Advance(es[1], goals)
	require.Equal(t, 2, s.Progress(goal))
	require.Empty(t, s.CoveredGoals(), "unlock set still pending")
	require.False(t, s.IsTarget())

	s = s.Advance(es[2], goals)
	require.Empty(t, s.Pending(goal))
	require.Equal(t, goals, s.CoveredGoals())
	require.True(t, s.IsTarget())

	require.Equal(t, 2, s.Advance(es[0], goals).Progress(goal), "covered goals stay covered")
}

func TestMerged(t *testing.T) {
	_, _, es := diamond(t)
	g1 := &multigoal.Goal{ID: 1, Edges: es[:2]}
	g2 := &multigoal.Goal{ID: 2, Edges: es[1:]}
	s1, s2, s3 := multigoal.NewEdgeSet(es[0]), multigoal.NewEdgeSet(es[1]), multigoal.NewEdgeSet(es[2])

	a := multigoal.NewState(map[*multigoal.Goal]int{g1: 2}, nil, nil, nil)
	b := multigoal.NewState(
		map[*multigoal.Goal]int{g1: 1, g2: 1},
		map[*multigoal.Goal][]multigoal.EdgeSet{g2: {s1, s2}},
		[]multigoal.Weave{{Edge: es[2], Kind: multigoal.WeaveAssignment}},
		nil,
	)
	require.True(t, a.IsTarget())
	require.False(t, b.IsTarget())

	m := multigoal.Merged(a, b)
	require.Equal(t, 2, m.Progress(g1))
	require.Equal(t, 1, m.Progress(g2))
	require.Equal(t, []*multigoal.Goal{g1}, m.CoveredGoals())
	require.True(t, m.NeedsWeaving())
	require.Empty(t, m.Pending(g2), "pending only in one state")

	c := multigoal.NewState(
		map[*multigoal.Goal]int{g2: 2},
		map[*multigoal.Goal][]multigoal.EdgeSet{g2: {s2, s3}},
		nil, nil,
	)
	mc := multigoal.Merged(b, c)
	require.Len(t, mc.Pending(g2), 1)
	require.True(t, mc.Pending(g2)[0].Equal(s2))

	d := multigoal.Domain{}
	for _, x := range []multigoal.State{a, b} {
		leq, err := d.LessOrEqual(x, m)
		require.NoError(t, err)
		require.True(t, leq, "%v is not below the merge", x)
	}
	leq, err := d.LessOrEqual(m, a)
	require.NoError(t, err)
	require.False(t, leq)

	require.True(t, multigoal.Merged(m, m).Equal(m))
}

func TestWeaving(t *testing.T) {
	_, _, es := diamond(t)
	goal := &multigoal.Goal{ID: 1, Edges: es[:1]}

	s := multigoal.NewState(map[*multigoal.Goal]int{goal: 1}, nil, nil, nil).
		WithEdgesToWeave(multigoal.Weave{Edge: es[1], Kind: multigoal.WeaveNegatedAssumption})
	require.True(t, s.NeedsWeaving())
	require.False(t, s.IsTarget())

	s = s.Advance(es[1], nil)
	require.False(t, s.NeedsWeaving())
	require.Equal(t, []cfa.Edge{es[1]}, s.WeavedEdges())
	require.False(t, s.IsTarget(), "woven edges are still in use")

	s = s.Unweave(es[1])
	require.True(t, s.IsTarget())
}

func TestEquality(t *testing.T) {
	_, _, es := diamond(t)
	goal := &multigoal.Goal{ID: 1, Edges: es[:2]}
	goals := []*multigoal.Goal{goal}

	direct := multigoal.NewState(map[*multigoal.Goal]int{goal: 2}, nil, nil, nil)
	walked := multigoal.Initial().Advance(es[0], goals).Advance(es[1], goals)
	require.True(t, direct.Equal(walked))
	require.Equal(t, direct.Hash(), walked.Hash())

	half := multigoal.Initial().Advance(es[0], goals)
	require.False(t, half.Equal(walked))
	require.False(t, half.Equal(cpatest.Loc{}))
}

func TestString(t *testing.T) {
	color.NoColor = true
	_, _, es := diamond(t)
	goal := &multigoal.Goal{ID: 1, Edges: es[:2]}

	s := multigoal.NewState(map[*multigoal.Goal]int{goal: 2}, nil, nil, nil)
	str := s.String()
	require.True(t, strings.HasPrefix(str, "TARGET"), str)
	require.Contains(t, str, "g1:2/2")
	require.Equal(t, "NO_TARGET", multigoal.Initial().String())
}

func TestReachGoal(t *testing.T) {
	g, locs, es := diamond(t)
	goal := &multigoal.Goal{ID: 1, Edges: es[:2]}

	c, err := cpa.Composite("goals", cpatest.LocCPA(), multigoal.CPA(false, goal))
	require.NoError(t, err)
	alg, err := algorithm.New(c, g, algorithm.Config{})
	require.NoError(t, err)

	r := reached.New(waitlist.FIFO)
	r.AddRoot(cpa.NewCompositeState(cpatest.Loc{L: locs[0]}, multigoal.Initial()), cpa.NoPrecision)
	status, err := alg.Run(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, algorithm.Done, status)

	require.Len(t, r.StatesAt(locs[2]), 2, "the shortcut does not cover the goal")
	targets := r.Targets()
	require.Len(t, targets, 1)

	trace, err := r.Trace(targets[0])
	require.NoError(t, err)
	require.Len(t, trace, 3)
	last, ok := cpa.Extract[multigoal.State](trace[2].State)
	require.True(t, ok)
	require.Equal(t, []*multigoal.Goal{goal}, last.CoveredGoals())
}
