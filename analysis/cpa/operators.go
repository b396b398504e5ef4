package cpa

import (
	"context"

	"github.com/cs-au-dk/reach/analysis/cfa"
)

// AbstractDomain orders abstract states.
type AbstractDomain interface {
	// Join returns an upper bound of a and b.
	Join(a, b State) (State, error)
	// LessOrEqual reports whether a is subsumed by b.
	LessOrEqual(a, b State) (bool, error)
}

// TransferRelation computes abstract successors along one edge.
type TransferRelation interface {
	Successors(ctx context.Context, s State, p Precision, e cfa.Edge) ([]State, error)
}

// TransferFunc adapts a function to TransferRelation.
type TransferFunc func(ctx context.Context, s State, p Precision, e cfa.Edge) ([]State, error)

func (f TransferFunc) Successors(ctx context.Context, s State, p Precision, e cfa.Edge) ([]State, error) {
	return f(ctx, s, p, e)
}

// MergeOperator combines a new successor s with a reached state r at the
// same location. When changed is true, merged replaces r in the reached set.
// Implementations report the change explicitly instead of returning r itself.
type MergeOperator interface {
	Merge(s, r State, p Precision) (merged State, changed bool, err error)
}

// MergeSep never merges.
type MergeSep struct{}

func (MergeSep) Merge(_, r State, _ Precision) (State, bool, error) {
	return r, false, nil
}

// MergeJoin replaces r with the join of s and r.
type MergeJoin struct {
	Domain AbstractDomain
}

func (m MergeJoin) Merge(s, r State, _ Precision) (State, bool, error) {
	j, err := m.Domain.Join(s, r)
	if err != nil {
		return nil, false, err
	}
	if j.Equal(r) {
		return r, false, nil
	}
	return j, true, nil
}

// StopOperator decides whether s is covered by the reached states at its
// location. Stop must be monotone in reached.
type StopOperator interface {
	Stop(s State, reached []State, p Precision) (bool, error)
}

// StopSep stops s when a single reached state subsumes it.
type StopSep struct {
	Domain AbstractDomain
}

func (op StopSep) Stop(s State, reached []State, _ Precision) (bool, error) {
	for _, r := range reached {
		if leq, err := op.Domain.LessOrEqual(s, r); err != nil {
			return false, err
		} else if leq {
			return true, nil
		}
	}
	return false, nil
}

// StopJoin stops s when the join of all reached states subsumes it.
type StopJoin struct {
	Domain AbstractDomain
}

func (op StopJoin) Stop(s State, reached []State, _ Precision) (bool, error) {
	if len(reached) == 0 {
		return false, nil
	}

	j := reached[0]
	for _, r := range reached[1:] {
		var err error
		if j, err = op.Domain.Join(j, r); err != nil {
			return false, err
		}
	}
	return op.Domain.LessOrEqual(s, j)
}

// StopAlways stops every state that has a reached state to compare with.
type StopAlways struct{}

func (StopAlways) Stop(_ State, reached []State, _ Precision) (bool, error) {
	return len(reached) > 0, nil
}

// StopNever keeps every state.
type StopNever struct{}

func (StopNever) Stop(State, []State, Precision) (bool, error) {
	return false, nil
}

// StopEqual stops states equal to a reached state. It needs no domain.
type StopEqual struct{}

func (StopEqual) Stop(s State, reached []State, _ Precision) (bool, error) {
	for _, r := range reached {
		if s.Equal(r) {
			return true, nil
		}
	}
	return false, nil
}

// StopWith tries the cheap operator First and falls back to Then.
type StopWith struct {
	First, Then StopOperator
}

func (op StopWith) Stop(s State, reached []State, p Precision) (bool, error) {
	if stop, err := op.First.Stop(s, reached, p); err != nil || stop {
		return stop, err
	}
	return op.Then.Stop(s, reached, p)
}
