package cpa_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/cpa/cpatest"
	"github.com/stretchr/testify/require"
)

func bitsAt(l cfa.Location, masks ...uint64) []cpa.State {
	res := make([]cpa.State, len(masks))
	for i, m := range masks {
		res[i] = cpatest.Bits{L: l, Mask: m}
	}
	return res
}

func TestMergeJoinIdempotent(t *testing.T) {
	_, nodes := cpatest.Chain("A")
	merge := cpa.MergeJoin{Domain: cpatest.BitsDomain{}}

	for _, s := range bitsAt(nodes[0], 0, 1, 0b101, 0xff) {
		merged, changed, err := merge.Merge(s, s, cpa.NoPrecision)
		require.NoError(t, err)
		require.False(t, changed, "merging %v with itself reported a change", s)
		require.True(t, merged.Equal(s))
	}
}

func TestMergeReportsChange(t *testing.T) {
	_, nodes := cpatest.Chain("A")
	states := bitsAt(nodes[0], 0b01, 0b10)

	merged, changed, err := cpa.MergeJoin{Domain: cpatest.BitsDomain{}}.Merge(states[0], states[1], cpa.NoPrecision)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, merged.Equal(cpatest.Bits{L: nodes[0], Mask: 0b11}))

	kept, changed, err := cpa.MergeSep{}.Merge(states[0], states[1], cpa.NoPrecision)
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, kept.Equal(states[1]))
}

func TestStopMonotone(t *testing.T) {
	_, nodes := cpatest.Chain("A")
	d := cpatest.BitsDomain{}
	ops := map[string]cpa.StopOperator{
		"sep":    cpa.StopSep{Domain: d},
		"join":   cpa.StopJoin{Domain: d},
		"always": cpa.StopAlways{},
		"equal":  cpa.StopEqual{},
		"never":  cpa.StopNever{},
		"with":   cpa.StopWith{First: cpa.StopEqual{}, Then: cpa.StopSep{Domain: d}},
	}

	all := bitsAt(nodes[0], 0, 0b1, 0b10, 0b11, 0b100, 0b110)
	for name, op := range ops {
		op := op // per-iteration copy (module targets go 1.21)
		t.Run(name, func(t *testing.T) {
			for _, s := range all {
				// Every prefix of all is a subset of the next prefix.
				prevStopped := false
				for n := 0; n <= len(all); n++ {
					stopped, err := op.Stop(s, all[:n], cpa.NoPrecision)
					require.NoError(t, err)
					if prevStopped {
						require.True(t, stopped, "%v stopped by %v but not by %v", s, all[:n-1], all[:n])
					}
					prevStopped = stopped
				}
			}
		})
	}
}

func TestStopJoinIsWeakerThanSep(t *testing.T) {
	_, nodes := cpatest.Chain("A")
	d := cpatest.BitsDomain{}
	reached := bitsAt(nodes[0], 0b01, 0b10)
	s := cpatest.Bits{L: nodes[0], Mask: 0b11}

	sep, err := cpa.StopSep{Domain: d}.Stop(s, reached, cpa.NoPrecision)
	require.NoError(t, err)
	join, err := cpa.StopJoin{Domain: d}.Stop(s, reached, cpa.NoPrecision)
	require.NoError(t, err)

	require.False(t, sep)
	require.True(t, join)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		cpa    *cpa.CPA
		reason string
	}{
		{"nil", nil, "no analysis configured"},
		{"transfer", &cpa.CPA{Merge: cpa.MergeSep{}, Stop: cpa.StopNever{}}, "missing transfer relation"},
		{"merge", &cpa.CPA{Transfer: cpatest.LocTransfer, Stop: cpa.StopNever{}}, "missing merge operator"},
		{"join without domain", &cpa.CPA{Transfer: cpatest.LocTransfer, Merge: cpa.MergeJoin{}, Stop: cpa.StopNever{}}, "join merge requires an abstract domain"},
		{"sep stop without domain", &cpa.CPA{Transfer: cpatest.LocTransfer, Merge: cpa.MergeSep{}, Stop: cpa.StopSep{}}, "separate stop requires an abstract domain"},
	}

	for _, test := range tests {
		test := test // per-iteration copy (module targets go 1.21)
		t.Run(test.name, func(t *testing.T) {
			err := test.cpa.Validate()
			var cerr cpa.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, test.reason, cerr.Reason)
		})
	}

	require.NoError(t, cpatest.LocCPA().Validate())
	require.NoError(t, cpatest.BitsCPA(true).Validate())
}

func TestUnsupported(t *testing.T) {
	err := cpa.Unsupported("goroutine %d", 3)
	require.ErrorIs(t, err, cpa.ErrUnsupported)
	require.Equal(t, "unsupported: goroutine 3", err.Error())
	require.False(t, errors.Is(errors.New("other"), cpa.ErrUnsupported))
}

func TestComposite(t *testing.T) {
	g, nodes := cpatest.Chain("A", "B")
	g.Statement(nodes[0], nodes[1], "set 2")

	product, err := cpa.Composite("product", cpatest.LocCPA(), cpatest.BitsCPA(true))
	require.NoError(t, err)
	require.NoError(t, product.Validate())

	init := cpa.NewCompositeState(cpatest.Loc{L: nodes[0]}, cpatest.Bits{L: nodes[0]})
	loc, ok := cpa.LocationOf(init)
	require.True(t, ok)
	require.Equal(t, nodes[0].ID(), loc.ID())

	var succs []cpa.State
	for _, e := range g.Out(nodes[0]) {
		ss, err := product.Transfer.Successors(context.Background(), init, cpa.NoPrecision, e)
		require.NoError(t, err)
		succs = append(succs, ss...)
	}
	require.Len(t, succs, 2)

	// Both successors share the location part, so the flags are merged.
	merged, changed, err := product.Merge.Merge(succs[1], succs[0], cpa.NoPrecision)
	require.NoError(t, err)
	require.True(t, changed)
	bits, ok := cpa.Extract[cpatest.Bits](merged)
	require.True(t, ok)
	require.Equal(t, uint64(0b100), bits.Mask)

	stopped, err := product.Stop.Stop(succs[0], []cpa.State{merged}, cpa.NoPrecision)
	require.NoError(t, err)
	require.True(t, stopped)

	// Parts that never merge must agree before the product merges.
	other := cpa.NewCompositeState(cpatest.Loc{L: nodes[0]}, cpatest.Bits{L: nodes[1], Mask: 1})
	_, changed, err = product.Merge.Merge(other, succs[0], cpa.NoPrecision)
	require.NoError(t, err)
	require.False(t, changed)

	adj, err := product.Precision.Adjust(merged, cpa.NoPrecision, nil)
	require.NoError(t, err)
	require.Equal(t, cpa.Continue, adj.Action)
	require.True(t, adj.State.Equal(merged))
}

func TestTargetPredicates(t *testing.T) {
	g, nodes := cpatest.Chain("A", "B")
	g.MarkTarget(nodes[1])

	atTarget := cpa.AtTargetLocation(g)
	require.False(t, atTarget(cpatest.Loc{L: nodes[0]}))
	require.True(t, atTarget(cpatest.Loc{L: nodes[1]}))
	require.True(t, atTarget(cpa.NewCompositeState(cpatest.Loc{L: nodes[1]})))

	either := cpa.AnyTarget(cpa.IsTargetState, atTarget)
	require.True(t, either(cpatest.Loc{L: nodes[1]}))
	require.False(t, cpa.IsTargetState(cpatest.Loc{L: nodes[1]}))
}
