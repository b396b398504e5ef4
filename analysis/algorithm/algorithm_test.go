package algorithm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/cpa/cpatest"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/analysis/waitlist"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func run(t *testing.T, c *cpa.CPA, g cfa.CFA, cfg Config, roots ...cpa.State) (*reached.Set, Status) {
	t.Helper()
	a, err := New(c, g, cfg)
	require.NoError(t, err)

	r := reached.New(waitlist.FIFO)
	for _, s := range roots {
		r.AddRoot(s, cpa.NoPrecision)
	}
	status, err := a.Run(context.Background(), r)
	require.NoError(t, err)
	return r, status
}

func TestSimpleReachability(t *testing.T) {
	g, locs := cpatest.Chain("A", "B", "C", "D")
	g.MarkTarget(locs[3])

	metrics := NewMetrics()
	r, status := run(t, cpatest.LocCPA(), g, Config{
		Target:  cpa.AtTargetLocation(g),
		Metrics: metrics,
	}, cpatest.Loc{L: locs[0]})

	require.Equal(t, Done, status)
	require.Equal(t, 4, r.Size())
	for _, l := range locs {
		require.True(t, r.Contains(cpatest.Loc{L: l}), "%v not reached", l)
	}

	targets := r.Targets()
	require.Len(t, targets, 1)
	require.True(t, r.HasViolatedProperties())

	trace, err := r.Trace(targets[0])
	require.NoError(t, err)
	var got []string
	for _, step := range trace {
		got = append(got, step.State.String())
	}
	require.Equal(t, []string{"N0(A)", "N1(B)", "N2(C)", "N3(D)"}, got)

	require.Equal(t, 4, metrics.Iterations())
	require.Equal(t, 3, metrics.Successors())
	require.Equal(t, 1, metrics.Targets())
}

func TestSubsumptionLoop(t *testing.T) {
	g, locs := cpatest.Chain("A", "B")
	require.NoError(t, g.Blank(locs[1], locs[0]))

	r, status := run(t, cpatest.LocCPA(), g, Config{}, cpatest.Loc{L: locs[0]})
	require.True(t, status.Complete)
	require.False(t, r.HasWaiting())
	for _, l := range locs {
		require.Len(t, r.StatesAt(l), 1)
	}

	// The back edge gives A a second parent.
	root := r.Graph().Roots()[0]
	require.Len(t, r.Graph().Parents(root), 1)
}

// diamond builds A -(set 0)-> B, A -(set 1)-> B, B -> C.
func diamond(t *testing.T) (*cfa.Graph, []*cfa.Node) {
	g := cfa.NewGraph()
	a, b, c := g.NewLocation("main", "A"), g.NewLocation("main", "B"), g.NewLocation("main", "C")
	require.NoError(t, g.Statement(a, b, "set 0"))
	require.NoError(t, g.Statement(a, b, "set 1"))
	require.NoError(t, g.Blank(b, c))
	return g, []*cfa.Node{a, b, c}
}

func TestMergeStrategies(t *testing.T) {
	tests := []struct {
		join    bool
		size    int
		merges  int
		stopped int
	}{
		{join: false, size: 5, merges: 0, stopped: 0},
		{join: true, size: 3, merges: 1, stopped: 1},
	}

	for _, test := range tests {
		test := test // per-iteration copy (module targets go 1.21)
		t.Run(fmt.Sprintf("join=%v", test.join), func(t *testing.T) {
			g, locs := diamond(t)
			metrics := NewMetrics()
			r, status := run(t, cpatest.BitsCPA(test.join), g, Config{Metrics: metrics}, cpatest.Bits{L: locs[0]})

			require.True(t, status.Complete)
			require.Equal(t, test.size, r.Size())
			require.Equal(t, test.merges, metrics.Merges())
			require.Equal(t, test.stopped, metrics.Stops())
			if test.join {
				require.Equal(t, []cpa.State{cpatest.Bits{L: locs[2], Mask: 0b11}}, r.StatesAt(locs[2]))
			}
		})
	}
}

func TestStopRecordsCovering(t *testing.T) {
	g := cfa.NewGraph()
	a, b := g.NewLocation("main", "A"), g.NewLocation("main", "B")
	require.NoError(t, g.Statement(a, b, "set 0"))
	require.NoError(t, g.Blank(a, b))

	r, _ := run(t, cpatest.BitsCPA(false), g, Config{}, cpatest.Bits{L: a})
	require.Equal(t, 2, r.Size())

	var covered []arg.NodeID
	r.Graph().ForEach(func(id arg.NodeID) bool {
		if r.Graph().IsCovered(id) {
			covered = append(covered, id)
		}
		return true
	})
	require.Len(t, covered, 1)

	by, _ := r.Graph().CoveredBy(covered[0])
	require.Equal(t, cpatest.Bits{L: b, Mask: 1}, r.Graph().State(by))
	require.Equal(t, cpatest.Bits{L: b}, r.Graph().State(covered[0]))
}

func TestBreak(t *testing.T) {
	g, locs := cpatest.Chain("A", "B", "C")
	c := cpatest.LocCPA()
	c.Precision = cpa.PrecisionFunc(func(s cpa.State, p cpa.Precision, _ cpa.ReachedView) (cpa.Adjustment, error) {
		action := cpa.Continue
		if l, _ := cpa.LocationOf(s); l == locs[1] {
			action = cpa.Break
		}
		return cpa.Adjustment{State: s, Precision: p, Action: action}, nil
	})

	a, err := New(c, g, Config{})
	require.NoError(t, err)
	r := reached.New(waitlist.FIFO)
	r.AddRoot(cpatest.Loc{L: locs[0]}, cpa.NoPrecision)

	status, err := a.Run(context.Background(), r)
	require.NoError(t, err)
	require.False(t, status.Complete)
	require.Equal(t, 2, r.Size())
	require.Equal(t, 1, r.WaitingSize(), "the paused state is waiting")

	status, err = a.Run(context.Background(), r)
	require.NoError(t, err)
	require.True(t, status.Complete)
	require.Equal(t, 3, r.Size())
}

func TestStopOnFirstTarget(t *testing.T) {
	g, locs := cpatest.Chain("A", "B", "C")
	g.MarkTarget(locs[1])

	r, status := run(t, cpatest.LocCPA(), g, Config{
		Target:            cpa.AtTargetLocation(g),
		StopOnFirstTarget: true,
	}, cpatest.Loc{L: locs[0]})

	require.False(t, status.Complete)
	require.True(t, r.HasViolatedProperties())
	require.False(t, r.Contains(cpatest.Loc{L: locs[2]}))
}

func TestCancellation(t *testing.T) {
	g, locs := cpatest.Chain("A", "B", "C", "D")
	a, err := New(cpatest.LocCPA(), g, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := reached.New(waitlist.FIFO)
	r.AddRoot(cpatest.Loc{L: locs[0]}, cpa.NoPrecision)
	status, err := a.Run(ctx, r)
	require.NoError(t, err, "cancellation is not an error")
	require.False(t, status.Complete)
	require.Equal(t, 1, r.WaitingSize())

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	a, err = New(cpatest.LocCPA(), g, Config{
		OnIteration: func(iteration int, _ *reached.Set) {
			if iteration == 1 {
				cancel()
			}
		},
	})
	require.NoError(t, err)
	r = reached.New(waitlist.FIFO)
	r.AddRoot(cpatest.Loc{L: locs[0]}, cpa.NoPrecision)

	status, err = a.Run(ctx, r)
	require.NoError(t, err)
	require.False(t, status.Complete)
	require.Equal(t, 3, r.Size())
	require.False(t, r.Contains(cpatest.Loc{L: locs[3]}))
}

func TestAnalysisError(t *testing.T) {
	g, locs := cpatest.Chain("A", "B", "C")
	c := cpatest.LocCPA()
	c.Transfer = cpa.TransferFunc(func(ctx context.Context, s cpa.State, p cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
		if e.Pred() == locs[1] {
			return nil, cpa.Unsupported("edge %v", e)
		}
		return cpatest.LocTransfer(ctx, s, p, e)
	})

	a, err := New(c, g, Config{})
	require.NoError(t, err)
	r := reached.New(waitlist.FIFO)
	r.AddRoot(cpatest.Loc{L: locs[0]}, cpa.NoPrecision)

	_, err = a.Run(context.Background(), r)
	var aerr *AnalysisError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, cfa.Location(locs[1]), aerr.Location)
	require.Equal(t, g.Out(locs[1])[0], aerr.Edge)
	require.ErrorIs(t, err, cpa.ErrUnsupported)
	require.Contains(t, err.Error(), "N1(B)")
}

func TestConfigurationError(t *testing.T) {
	g, _ := cpatest.Chain("A")

	c := cpatest.LocCPA()
	c.Stop = nil
	_, err := New(c, g, Config{})
	var cerr cpa.ConfigurationError
	require.True(t, errors.As(err, &cerr))

	a, err := New(cpatest.LocCPA(), g, Config{})
	require.NoError(t, err)
	r := reached.New(waitlist.FIFO)
	r.AddRoot(unlocated{}, cpa.NoPrecision)
	_, err = a.Run(context.Background(), r)
	require.True(t, errors.As(err, &cerr))
}

type unlocated struct{}

func (unlocated) Hash() uint32           { return 0 }
func (unlocated) String() string         { return "nowhere" }
func (unlocated) Equal(o cpa.State) bool { return o == unlocated{} }

func TestRelaxedIsUnsound(t *testing.T) {
	g, locs := cpatest.Chain("A", "B")
	c := cpatest.LocCPA()
	c.Relaxed = true
	_, status := run(t, c, g, Config{}, cpatest.Loc{L: locs[0]})
	require.Equal(t, Status{Complete: true, Sound: false}, status)
	require.Equal(t, "complete, unsound", status.String())
}

func TestStatusUpdate(t *testing.T) {
	require.Equal(t, Done, Combine())
	require.Equal(t, Status{Complete: false, Sound: true}, Combine(Done, Status{Sound: true}))
	require.Equal(t, Status{}, Done.Update(Status{}))
}
