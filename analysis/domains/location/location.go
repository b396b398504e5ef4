// Package location is the analysis of program locations and call stacks.
// Calls push their return site, and return edges are only followed to the
// return site on top of the stack.
package location

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/reach/analysis/bam"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
)

type State struct {
	loc cfa.Location
	// Return sites, innermost call last.
	stack *immutable.List[cfa.Location]
}

// Initial is the state at l with an empty call stack.
func Initial(l cfa.Location) State {
	return State{loc: l, stack: immutable.NewList[cfa.Location]()}
}

func (s State) Location() cfa.Location {
	return s.loc
}

func (s State) CallstackDepth() int {
	if s.stack == nil {
		return 0
	}
	return s.stack.Len()
}

// ReturnSite is the return site of the innermost call.
func (s State) ReturnSite() (cfa.Location, bool) {
	if n := s.CallstackDepth(); n > 0 {
		return s.stack.Get(n - 1), true
	}
	return nil, false
}

func (s State) push(to, returnSite cfa.Location) State {
	stack := s.stack
	if stack == nil {
		stack = immutable.NewList[cfa.Location]()
	}
	return State{loc: to, stack: stack.Append(returnSite)}
}

func (s State) pop(to cfa.Location) State {
	return State{loc: to, stack: s.stack.Slice(0, s.stack.Len()-1)}
}

func (s State) at(l cfa.Location) State {
	return State{loc: l, stack: s.stack}
}

func (s State) Hash() uint32 {
	hs := []uint32{uint32(s.loc.ID())}
	for i := 0; i < s.CallstackDepth(); i++ {
		hs = append(hs, uint32(s.stack.Get(i).ID()))
	}
	return utils.HashCombine(hs...)
}

func (s State) Equal(o cpa.State) bool {
	os, ok := o.(State)
	if !ok || s.loc.ID() != os.loc.ID() || s.CallstackDepth() != os.CallstackDepth() {
		return false
	}
	for i := 0; i < s.CallstackDepth(); i++ {
		if s.stack.Get(i).ID() != os.stack.Get(i).ID() {
			return false
		}
	}
	return true
}

func (s State) String() string {
	if s.CallstackDepth() == 0 {
		return s.loc.String()
	}
	sites := make([]string, s.CallstackDepth())
	for i := range sites {
		sites[i] = s.stack.Get(i).String()
	}
	return s.loc.String() + " [" + strings.Join(sites, " ") + "]"
}

// Transfer follows edges. Calls deeper than MaxDepth are unsupported, unless
// MaxDepth is 0.
type Transfer struct {
	MaxDepth int
}

func (t Transfer) Successors(_ context.Context, st cpa.State, _ cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	s := st.(State)

	switch e := e.(type) {
	case cfa.CallEdge:
		if t.MaxDepth > 0 && s.CallstackDepth() >= t.MaxDepth {
			return nil, cpa.Unsupported("call of %s at %v deeper than %d calls", e.Callee, e.From, t.MaxDepth)
		}
		return []cpa.State{s.push(e.To, e.ReturnSite)}, nil
	case cfa.ReturnEdge:
		if site, ok := s.ReturnSite(); ok && site.ID() == e.To.ID() {
			return []cpa.State{s.pop(e.To)}, nil
		}
		return nil, nil
	case cfa.BlankEdge, cfa.StatementEdge, cfa.AssumeEdge:
		return []cpa.State{s.at(e.Succ())}, nil
	default:
		return nil, cpa.Unsupported("edge %T", e)
	}
}

// Domain is flat: distinct states are incomparable.
type Domain struct{}

func (Domain) Join(a, b cpa.State) (cpa.State, error) {
	if a.Equal(b) {
		return a, nil
	}
	return nil, cpa.Unsupported("join of distinct locations %v and %v", a, b)
}

func (Domain) LessOrEqual(a, b cpa.State) (bool, error) {
	return a.Equal(b), nil
}

// CPA is the location analysis.
func CPA(maxDepth int) *cpa.CPA {
	return &cpa.CPA{
		Name:     "location",
		Domain:   Domain{},
		Transfer: Transfer{MaxDepth: maxDepth},
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopSep{Domain: Domain{}},
	}
}

// Reducer drops the call stack when entering a block, so summaries are
// shared by all calling contexts.
type Reducer struct{}

func (Reducer) Reduce(s cpa.State, _ *bam.Block) (cpa.State, error) {
	return Initial(s.(State).loc), nil
}

// Expand puts the calls still open in the exit, e.g. at a target inside a
// nested call, on top of the stack of root.
func (Reducer) Expand(root cpa.State, _ *bam.Block, exit cpa.State) (cpa.State, error) {
	x := exit.(State)
	res := State{loc: x.loc, stack: root.(State).stack}
	for i := 0; i < x.CallstackDepth(); i++ {
		res = res.push(x.loc, x.stack.Get(i))
	}
	return res, nil
}

func (Reducer) ReducePrecision(p cpa.Precision, _ *bam.Block) cpa.Precision {
	return p
}

func (Reducer) ExpandPrecision(_ cpa.Precision, _ *bam.Block, reduced cpa.Precision) cpa.Precision {
	return reduced
}

// Frame is an open call, identified by its return site. Frames are the
// effects Reducer drops from states entering a block.
type Frame struct {
	Site cfa.Location
}

func (f Frame) Hash() uint32   { return uint32(f.Site.ID()) }
func (f Frame) String() string { return "ret " + f.Site.String() }

func (f Frame) Equal(o bam.Effect) bool {
	of, ok := o.(Frame)
	return ok && f.Site.ID() == of.Site.ID()
}

// Differ recovers the frames of a state entering a block that are missing
// from its reduced state.
type Differ struct{}

func (Differ) Difference(reduced, root cpa.State) (bam.Effects, error) {
	r, ok := reduced.(State)
	if !ok {
		return bam.Effects{}, fmt.Errorf("not a location state: %v", reduced)
	}
	x, ok := root.(State)
	if !ok {
		return bam.Effects{}, fmt.Errorf("not a location state: %v", root)
	}

	res := bam.NewEffects()
	for i := r.CallstackDepth(); i < x.CallstackDepth(); i++ {
		res = res.Add(Frame{x.stack.Get(i)})
	}
	return res, nil
}
