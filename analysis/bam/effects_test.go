package bam_test

import (
	"context"
	"testing"

	"github.com/cs-au-dk/reach/analysis/bam"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/cpa/cpatest"
	"github.com/cs-au-dk/reach/analysis/domains/location"
	"github.com/cs-au-dk/reach/utils"
	"github.com/stretchr/testify/require"
)

type lock string

func (l lock) Hash() uint32            { return utils.HashString(string(l)) }
func (l lock) Equal(o bam.Effect) bool { return o == bam.Effect(l) }
func (l lock) String() string          { return string(l) }

type differ func(reduced, root cpa.State) (bam.Effects, error)

func (d differ) Difference(reduced, root cpa.State) (bam.Effects, error) {
	return d(reduced, root)
}

func TestEffects(t *testing.T) {
	a := bam.NewEffects(lock("l1"), lock("l2"), lock("l1"))
	require.Equal(t, 3, a.Len())
	require.Equal(t, 2, a.Count(lock("l1")))
	require.True(t, a.Contains(lock("l2")))
	require.False(t, a.Contains(lock("l3")))
	require.Equal(t, "{l1, l1, l2}", a.String())

	b := bam.NewEffects(lock("l2"), lock("l1"))
	require.True(t, a.Subsumes(b))
	require.False(t, b.Subsumes(a))
	require.False(t, a.Equal(b))

	c := b.Add(lock("l1"))
	require.True(t, a.Equal(c))
	require.Equal(t, a.Hash(), c.Hash())
	require.Equal(t, 2, b.Len(), "adding does not change the receiver")

	u := b.Union(bam.NewEffects(lock("l3")))
	require.Equal(t, "{l1, l2, l3}", u.String())

	var zero bam.Effects
	require.Zero(t, zero.Len())
	require.True(t, a.Subsumes(zero))
	require.Equal(t, "{l1}", zero.Add(lock("l1")).String())
}

// lockDiffer charges the calls returning to the first site with two locks
// and the others with one.
func lockDiffer(first cfa.Location) differ {
	return func(_, root cpa.State) (bam.Effects, error) {
		site, _ := root.(location.State).ReturnSite()
		if site.ID() == first.ID() {
			return bam.NewEffects(lock("l1"), lock("l2")), nil
		}
		return bam.NewEffects(lock("l1")), nil
	}
}

func TestExtract(t *testing.T) {
	s := newSetup(t, twoCalls(t))
	r := s.run(t)

	for name, tc := range map[string]struct {
		processCovered bool
		inner          int
	}{
		"exact":   {false, 8},
		"covered": {true, 4},
	} {
		tc := tc // per-iteration copy (module targets go 1.21)
		t.Run(name, func(t *testing.T) {
			x := bam.Extractor{
				Analysis:       s.an,
				Differ:         lockDiffer(s.p.sites[0]),
				ProcessCovered: tc.processCovered,
			}
			res, err := x.Extract(r)
			require.NoError(t, err)

			var outer, inner int
			for _, e := range res {
				if e.Summary == nil {
					outer++
					require.Zero(t, e.Effects.Len())
					continue
				}
				inner++
				require.True(t, e.Summary.Equal(s.key()))
				require.True(t, e.Effects.Contains(lock("l1")))
			}
			require.Equal(t, r.Size(), outer)
			require.Equal(t, tc.inner, inner)
		})
	}
}

func TestExtractCollects(t *testing.T) {
	s := newSetup(t, twoCalls(t))
	r := s.run(t)

	x := bam.Extractor{
		Analysis: s.an,
		Collect: func(st cpa.State) bam.Effects {
			if l, _ := cpa.LocationOf(st); l.Function() == "f" {
				return bam.NewEffects(lock("in f"))
			}
			return bam.NewEffects()
		},
	}
	res, err := x.Extract(r)
	require.NoError(t, err)

	var inF int
	for _, e := range res {
		if e.Effects.Contains(lock("in f")) {
			inF++
		}
	}
	// Two expanded exits in the outer graph and one visit of the summary.
	require.Equal(t, 2+4, inF)
}

func TestExtractCallingContexts(t *testing.T) {
	s := newSetup(t, twoCalls(t))
	r := s.run(t)

	res, err := bam.Extractor{Analysis: s.an, Differ: location.Differ{}, ProcessCovered: true}.Extract(r)
	require.NoError(t, err)

	frames := map[int]int{}
	for _, e := range res {
		if e.Summary == nil {
			continue
		}
		require.Equal(t, 1, e.Effects.Len(), "%v", e.State)
		e.Effects.ForEach(func(f bam.Effect, _ int) {
			frames[f.(location.Frame).Site.ID()]++
		})
	}
	// Neither calling context subsumes the other, so the summary is visited
	// once per call site.
	require.Equal(t, map[int]int{s.p.sites[0].ID(): 4, s.p.sites[1].ID(): 4}, frames)
}

func TestExtractRecursion(t *testing.T) {
	s := newSetup(t, recursive(t))
	r := s.run(t)

	res, err := bam.Extractor{Analysis: s.an}.Extract(r)
	require.NoError(t, err)
	require.Greater(t, len(res), r.Size())
}

func TestPartitionByFunction(t *testing.T) {
	p := twoCalls(t)
	blocks, err := bam.PartitionByFunction(p.g)
	require.NoError(t, err)
	require.Len(t, blocks.Blocks(), 2)

	f, ok := blocks.BlockForEntry(p.f.Entry)
	require.True(t, ok)
	require.Equal(t, "f", f.Function)
	require.Equal(t, 4, f.Size())
	require.True(t, f.IsExit(p.f.Exit))
	require.False(t, f.IsExit(p.f.Entry))

	main, ok := blocks.BlockForEntry(p.main.Entry)
	require.True(t, ok)
	require.Equal(t, 5, main.Size())
	for _, site := range p.sites {
		require.True(t, main.Contains(site), "return site %v belongs to the caller", site)
		require.False(t, f.Contains(site))
	}

	require.False(t, blocks.IsRecursive(f))
	require.False(t, blocks.IsRecursive(main))

	_, ok = blocks.BlockForEntry(p.f.Exit)
	require.False(t, ok)
}

func TestPartitioningRejectsSharedEntries(t *testing.T) {
	g, locs := cpatest.Chain("A", "B")
	_, err := bam.NewPartitioning(g,
		bam.NewBlock(0, "main", locs[0], []cfa.Location{locs[1]}),
		bam.NewBlock(1, "main", locs[0], nil),
	)
	require.Error(t, err)
}

func TestCompositeReducer(t *testing.T) {
	p := twoCalls(t)
	blocks, err := bam.PartitionByFunction(p.g)
	require.NoError(t, err)
	f, _ := blocks.BlockForEntry(p.f.Entry)

	call := p.g.In(p.f.Entry)[0].(cfa.CallEdge)
	entered, err := location.Transfer{}.Successors(context.Background(), location.Initial(call.From), cpa.NoPrecision, call)
	require.NoError(t, err)
	require.Len(t, entered, 1)

	cr := bam.CompositeReducer{location.Reducer{}, bam.NoReduction{}}
	root := cpa.NewCompositeState(entered[0], cpatest.Loc{L: p.f.Entry})

	reduced, err := cr.Reduce(root, f)
	require.NoError(t, err)
	require.True(t, reduced.Equal(cpa.NewCompositeState(location.Initial(p.f.Entry), cpatest.Loc{L: p.f.Entry})))

	exit := cpa.NewCompositeState(location.Initial(p.f.Exit), cpatest.Loc{L: p.f.Exit})
	expanded, err := cr.Expand(root, f, exit)
	require.NoError(t, err)
	loc := expanded.(cpa.CompositeState).Part(0).(location.State)
	require.Equal(t, 1, loc.CallstackDepth())
	site, _ := loc.ReturnSite()
	require.Equal(t, call.ReturnSite.ID(), site.ID())

	_, err = cr.Reduce(cpa.NewCompositeState(entered[0]), f)
	require.Error(t, err, "component count mismatch")
	_, err = cr.Reduce(entered[0], f)
	require.Error(t, err)

	rebuilt, err := cr.RebuildAfterCall(root, root, expanded, p.f.Exit)
	require.NoError(t, err)
	require.True(t, rebuilt.Equal(expanded))
}
