package cfa

import (
	"fmt"

	"github.com/cs-au-dk/reach/utils"
)

// Edge is a transition of the control-flow automaton. The set of edge kinds
// is closed: consumers switch over the concrete types below.
type Edge interface {
	Pred() Location
	Succ() Location
	String() string

	edge()
}

type (
	// BlankEdge carries no semantics besides control flow.
	BlankEdge struct {
		From, To Location
		Label    string
	}

	// StatementEdge executes a statement.
	StatementEdge struct {
		From, To Location
		Stmt     string
	}

	// AssumeEdge is taken when Cond evaluates to Truth.
	AssumeEdge struct {
		From, To Location
		Cond     string
		Truth    bool
	}

	// CallEdge enters the entry location of Callee. Control resumes at
	// ReturnSite in the caller once the callee returns.
	CallEdge struct {
		From, To   Location
		Callee     string
		ReturnSite Location
	}

	// ReturnEdge leaves the exit location of Callee for the return site of one
	// of its call sites.
	ReturnEdge struct {
		From, To Location
		Callee   string
	}
)

func (e BlankEdge) Pred() Location     { return e.From }
func (e BlankEdge) Succ() Location     { return e.To }
func (e StatementEdge) Pred() Location { return e.From }
func (e StatementEdge) Succ() Location { return e.To }
func (e AssumeEdge) Pred() Location    { return e.From }
func (e AssumeEdge) Succ() Location    { return e.To }
func (e CallEdge) Pred() Location      { return e.From }
func (e CallEdge) Succ() Location      { return e.To }
func (e ReturnEdge) Pred() Location    { return e.From }
func (e ReturnEdge) Succ() Location    { return e.To }

func (BlankEdge) edge()     {}
func (StatementEdge) edge() {}
func (AssumeEdge) edge()    {}
func (CallEdge) edge()      {}
func (ReturnEdge) edge()    {}

func (e BlankEdge) String() string {
	if e.Label == "" {
		return "skip"
	}
	return e.Label
}

func (e StatementEdge) String() string {
	return e.Stmt
}

func (e AssumeEdge) String() string {
	if e.Truth {
		return "[" + e.Cond + "]"
	}
	return "[!(" + e.Cond + ")]"
}

func (e CallEdge) String() string {
	return fmt.Sprintf("call %s", e.Callee)
}

func (e ReturnEdge) String() string {
	return fmt.Sprintf("return from %s", e.Callee)
}

// IsInterprocedural reports whether the edge crosses a function boundary.
func IsInterprocedural(e Edge) bool {
	switch e.(type) {
	case CallEdge, ReturnEdge:
		return true
	case BlankEdge, StatementEdge, AssumeEdge:
		return false
	default:
		panic(fmt.Errorf("unknown edge kind %T", e))
	}
}

// EdgeHasher hashes edges by their endpoints. Edges are compared with ==,
// so their locations must be comparable.
type EdgeHasher struct{}

func (EdgeHasher) Hash(e Edge) uint32 {
	var kind uint32
	switch e.(type) {
	case BlankEdge:
		kind = 1
	case StatementEdge:
		kind = 2
	case AssumeEdge:
		kind = 3
	case CallEdge:
		kind = 4
	case ReturnEdge:
		kind = 5
	}
	return utils.HashCombine(kind, uint32(e.Pred().ID()), uint32(e.Succ().ID()))
}

func (EdgeHasher) Equal(a, b Edge) bool {
	return a == b
}
