// Package cpa defines the contract between the reachability engine and the
// analyses plugged into it: abstract states, precisions and the operators
// working on them.
package cpa

import (
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/utils"
)

// State is an abstract state. States are immutable values: operators always
// return fresh states instead of updating their arguments.
type State interface {
	utils.HashableEq[State]
	String() string
}

// Precision controls how much detail an analysis tracks.
type Precision interface {
	utils.HashableEq[Precision]
	String() string
}

// Locatable is implemented by states that know their program location.
type Locatable interface {
	Location() cfa.Location
}

// Targetable is implemented by states that can violate a property by
// themselves.
type Targetable interface {
	IsTarget() bool
}

// CallstackDepther is implemented by states tracking a call stack.
type CallstackDepther interface {
	CallstackDepth() int
}

// LoopIterationCounter is implemented by states counting loop iterations.
type LoopIterationCounter interface {
	LoopIterations() int
}

// Wrapper is implemented by states composed of other states.
type Wrapper interface {
	Wrapped() []State
}

// Extract finds the first state implementing T, searching s and then the
// states it wraps depth-first.
func Extract[T any](s State) (res T, ok bool) {
	if res, ok = s.(T); ok {
		return
	}
	if w, isWrapper := s.(Wrapper); isWrapper {
		for _, inner := range w.Wrapped() {
			if res, ok = Extract[T](inner); ok {
				return
			}
		}
	}
	return
}

// LocationOf returns the location of s, if any component of s has one.
func LocationOf(s State) (cfa.Location, bool) {
	if l, ok := Extract[Locatable](s); ok {
		return l.Location(), true
	}
	return nil, false
}

// TargetFunc decides whether a state violates the property under analysis.
type TargetFunc func(State) bool

// IsTargetState is the default target predicate: a state is a target if it
// or any state it wraps reports so.
func IsTargetState(s State) bool {
	if t, ok := s.(Targetable); ok && t.IsTarget() {
		return true
	}
	if w, ok := s.(Wrapper); ok {
		for _, inner := range w.Wrapped() {
			if IsTargetState(inner) {
				return true
			}
		}
	}
	return false
}

// AtTargetLocation flags states located at target locations of the automaton.
func AtTargetLocation(g cfa.TargetLocator) TargetFunc {
	return func(s State) bool {
		l, ok := LocationOf(s)
		return ok && g.IsTargetLocation(l)
	}
}

// AnyTarget combines target predicates disjunctively.
func AnyTarget(fs ...TargetFunc) TargetFunc {
	return func(s State) bool {
		for _, f := range fs {
			if f(s) {
				return true
			}
		}
		return false
	}
}

type noPrecision struct{}

func (noPrecision) Hash() uint32   { return 0 }
func (noPrecision) String() string { return "⊤" }

func (noPrecision) Equal(p Precision) bool {
	_, ok := p.(noPrecision)
	return ok
}

// NoPrecision is the precision of analyses that are not refined.
var NoPrecision Precision = noPrecision{}
