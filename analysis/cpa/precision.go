package cpa

import "github.com/cs-au-dk/reach/analysis/cfa"

// Action tells the exploration loop how to proceed after a precision
// adjustment.
type Action int

const (
	// Continue exploring.
	Continue Action = iota
	// Break pauses the exploration after the adjusted state is inserted as
	// waiting, e.g. to let a refinement act on the reached set.
	Break
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "CONTINUE"
	case Break:
		return "BREAK"
	default:
		return "UNKNOWN"
	}
}

// Adjustment is the outcome of a precision adjustment.
type Adjustment struct {
	State     State
	Precision Precision
	Action    Action
}

// ReachedView is the read-only part of the reached set visible to operators.
type ReachedView interface {
	// StatesAt returns a snapshot of the reached states at l.
	StatesAt(l cfa.Location) []State
	Size() int
}

// PrecisionAdjustment may strengthen or abstract a successor and its
// precision before it is inserted in the reached set.
type PrecisionAdjustment interface {
	Adjust(s State, p Precision, reached ReachedView) (Adjustment, error)
}

// StaticPrecision keeps states and precisions unchanged.
type StaticPrecision struct{}

func (StaticPrecision) Adjust(s State, p Precision, _ ReachedView) (Adjustment, error) {
	return Adjustment{State: s, Precision: p, Action: Continue}, nil
}

// PrecisionFunc adapts a function to PrecisionAdjustment.
type PrecisionFunc func(s State, p Precision, reached ReachedView) (Adjustment, error)

func (f PrecisionFunc) Adjust(s State, p Precision, reached ReachedView) (Adjustment, error) {
	return f(s, p, reached)
}
