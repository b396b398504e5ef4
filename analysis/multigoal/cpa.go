package multigoal

import (
	"context"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
)

// Transfer advances the goals along every edge. It never blocks a path, so
// it is meant to run as a component next to an analysis with locations.
type Transfer struct {
	Goals []*Goal
}

func (t Transfer) Successors(_ context.Context, s cpa.State, _ cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	return []cpa.State{s.(State).Advance(e, t.Goals)}, nil
}

// Domain orders states by coverage. Joins are merged states.
type Domain struct{}

func (Domain) Join(a, b cpa.State) (cpa.State, error) {
	return Merged(a.(State), b.(State)), nil
}

func (Domain) LessOrEqual(a, b cpa.State) (bool, error) {
	return lessOrEqual(a.(State), b.(State)), nil
}

// CPA tracks goals. With join, paths reaching a location are merged, which
// may claim coverage of goals no single path covers.
func CPA(join bool, goals ...*Goal) *cpa.CPA {
	c := &cpa.CPA{
		Name:     "multigoal",
		Domain:   Domain{},
		Transfer: Transfer{Goals: goals},
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopWith{First: cpa.StopEqual{}, Then: cpa.StopSep{Domain: Domain{}}},
	}
	if join {
		c.Merge = cpa.MergeJoin{Domain: Domain{}}
	}
	return c
}
