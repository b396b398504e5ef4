// Package cpatest provides small analyses and automata for testing the
// exploration engine.
package cpatest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
)

// Chain builds the automaton l0 -> l1 -> ... in function "main".
func Chain(labels ...string) (*cfa.Graph, []*cfa.Node) {
	g := cfa.NewGraph()
	nodes := make([]*cfa.Node, len(labels))
	for i, l := range labels {
		nodes[i] = g.NewLocation("main", l)
		if i > 0 {
			if err := g.Blank(nodes[i-1], nodes[i]); err != nil {
				panic(err)
			}
		}
	}
	return g, nodes
}

// Loc is a state that only tracks the program location.
type Loc struct {
	L cfa.Location
}

func (s Loc) Location() cfa.Location { return s.L }
func (s Loc) Hash() uint32           { return uint32(s.L.ID()) }
func (s Loc) String() string         { return s.L.String() }

func (s Loc) Equal(o cpa.State) bool {
	os, ok := o.(Loc)
	return ok && os.L.ID() == s.L.ID()
}

// LocDomain is the flat domain of locations.
type LocDomain struct{}

func (LocDomain) Join(a, b cpa.State) (cpa.State, error) {
	if a.Equal(b) {
		return a, nil
	}
	return nil, cpa.Unsupported("join of distinct locations %v and %v", a, b)
}

func (LocDomain) LessOrEqual(a, b cpa.State) (bool, error) {
	return a.Equal(b), nil
}

// LocTransfer follows every edge, ignoring call and return matching.
var LocTransfer = cpa.TransferFunc(func(_ context.Context, _ cpa.State, _ cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	return []cpa.State{Loc{e.Succ()}}, nil
})

// LocCPA is the location analysis with separate merge and stop.
func LocCPA() *cpa.CPA {
	return &cpa.CPA{
		Name:     "location",
		Domain:   LocDomain{},
		Transfer: LocTransfer,
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopSep{Domain: LocDomain{}},
	}
}

// Bits tracks a location and a set of flags. Statements of the form
// "set N" raise flag N.
type Bits struct {
	L    cfa.Location
	Mask uint64
}

func (s Bits) Location() cfa.Location { return s.L }
func (s Bits) Hash() uint32           { return uint32(s.L.ID())*31 + uint32(s.Mask) }
func (s Bits) String() string         { return fmt.Sprintf("%v{%b}", s.L, s.Mask) }

func (s Bits) Equal(o cpa.State) bool {
	os, ok := o.(Bits)
	return ok && os.L.ID() == s.L.ID() && os.Mask == s.Mask
}

// BitsDomain orders flag sets by inclusion at equal locations.
type BitsDomain struct{}

func (BitsDomain) Join(a, b cpa.State) (cpa.State, error) {
	x, y := a.(Bits), b.(Bits)
	if x.L.ID() != y.L.ID() {
		return nil, cpa.Unsupported("join across locations")
	}
	return Bits{x.L, x.Mask | y.Mask}, nil
}

func (BitsDomain) LessOrEqual(a, b cpa.State) (bool, error) {
	x, y := a.(Bits), b.(Bits)
	return x.L.ID() == y.L.ID() && x.Mask&^y.Mask == 0, nil
}

var BitsTransfer = cpa.TransferFunc(func(_ context.Context, s cpa.State, _ cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	b := s.(Bits)
	mask := b.Mask
	if stmt, ok := e.(cfa.StatementEdge); ok {
		var bit uint
		if _, err := fmt.Sscanf(stmt.Stmt, "set %d", &bit); err == nil {
			mask |= 1 << bit
		}
	}
	return []cpa.State{Bits{e.Succ(), mask}}, nil
})

// BitsCPA is the flag analysis. With join, states at the same location are
// merged.
func BitsCPA(join bool) *cpa.CPA {
	c := &cpa.CPA{
		Name:     "bits",
		Domain:   BitsDomain{},
		Transfer: BitsTransfer,
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopSep{Domain: BitsDomain{}},
	}
	if join {
		c.Merge = cpa.MergeJoin{Domain: BitsDomain{}}
	}
	return c
}

// Counting counts the transfer relation invocations per function.
type Counting struct {
	Inner cpa.TransferRelation

	mu       sync.Mutex
	total    int
	byFun    map[string]int
	interior map[string]int
}

func NewCounting(inner cpa.TransferRelation) *Counting {
	return &Counting{
		Inner:    inner,
		byFun:    make(map[string]int),
		interior: make(map[string]int),
	}
}

func (c *Counting) Successors(ctx context.Context, s cpa.State, p cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	c.mu.Lock()
	c.total++
	c.byFun[e.Pred().Function()]++
	if !cfa.IsInterprocedural(e) {
		c.interior[e.Pred().Function()]++
	}
	c.mu.Unlock()
	return c.Inner.Successors(ctx, s, p, e)
}

func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// In returns the number of expansions of edges leaving locations of fun.
func (c *Counting) In(fun string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byFun[fun]
}

// Interior returns the number of expansions of intraprocedural edges of fun.
func (c *Counting) Interior(fun string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interior[fun]
}
