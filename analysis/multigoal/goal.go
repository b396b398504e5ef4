// Package multigoal tracks the progress of a path towards several coverage
// goals at once, such as test goals given as sequences of edges.
package multigoal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/utils"
)

// Goal is covered by a path that takes Edges in order. Once the goal is
// started, every set in Unlock must also be unlocked by taking one of its
// edges before the goal counts as covered.
type Goal struct {
	ID     int
	Edges  []cfa.Edge
	Unlock []EdgeSet
}

func (g *Goal) String() string {
	strs := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		strs[i] = e.String()
	}
	return fmt.Sprintf("goal %d: %s", g.ID, strings.Join(strs, " -> "))
}

var goalHasher immutable.Hasher[*Goal] = utils.PointerHasher[*Goal]{}

func sortGoals(gs []*Goal) []*Goal {
	sort.Slice(gs, func(i, j int) bool { return gs[i].ID < gs[j].ID })
	return gs
}

// EdgeSet is an immutable set of edges.
type EdgeSet struct {
	edges *immutable.Map[cfa.Edge, struct{}]
}

func NewEdgeSet(es ...cfa.Edge) EdgeSet {
	m := immutable.NewMap[cfa.Edge, struct{}](cfa.EdgeHasher{})
	for _, e := range es {
		m = m.Set(e, struct{}{})
	}
	return EdgeSet{m}
}

func (s EdgeSet) Len() int {
	if s.edges == nil {
		return 0
	}
	return s.edges.Len()
}

func (s EdgeSet) Contains(e cfa.Edge) bool {
	if s.edges == nil {
		return false
	}
	_, ok := s.edges.Get(e)
	return ok
}

func (s EdgeSet) Add(e cfa.Edge) EdgeSet {
	if s.edges == nil {
		return NewEdgeSet(e)
	}
	return EdgeSet{s.edges.Set(e, struct{}{})}
}

func (s EdgeSet) Remove(e cfa.Edge) EdgeSet {
	if !s.Contains(e) {
		return s
	}
	return EdgeSet{s.edges.Delete(e)}
}

func (s EdgeSet) ForEach(do func(cfa.Edge)) {
	if s.edges == nil {
		return
	}
	for iter := s.edges.Iterator(); !iter.Done(); {
		e, _, _ := iter.Next()
		do(e)
	}
}

// SubsetOf reports whether every edge of s is in o.
func (s EdgeSet) SubsetOf(o EdgeSet) bool {
	if s.Len() > o.Len() {
		return false
	}
	res := true
	s.ForEach(func(e cfa.Edge) {
		res = res && o.Contains(e)
	})
	return res
}

func (s EdgeSet) Hash() uint32 {
	var hs []uint32
	s.ForEach(func(e cfa.Edge) {
		hs = append(hs, cfa.EdgeHasher{}.Hash(e))
	})
	return utils.HashUnordered(hs...)
}

func (s EdgeSet) Equal(o EdgeSet) bool {
	return s.Len() == o.Len() && s.SubsetOf(o)
}

func (s EdgeSet) String() string {
	var strs []string
	s.ForEach(func(e cfa.Edge) {
		strs = append(strs, e.String())
	})
	sort.Strings(strs)
	return "{" + strings.Join(strs, ", ") + "}"
}

// WeaveKind tells how an edge is woven into the automaton.
type WeaveKind int

const (
	WeaveAssumption WeaveKind = iota
	WeaveNegatedAssumption
	WeaveAssignment
)

func (k WeaveKind) String() string {
	switch k {
	case WeaveAssumption:
		return "assume"
	case WeaveNegatedAssumption:
		return "assume not"
	case WeaveAssignment:
		return "assign"
	default:
		return fmt.Sprintf("WeaveKind(%d)", int(k))
	}
}

// Weave is an edge to be woven into the explored paths.
type Weave struct {
	Edge cfa.Edge
	Kind WeaveKind
}

func (w Weave) String() string {
	return fmt.Sprintf("%s [%s]", w.Edge, w.Kind)
}

type weaveHasher struct{}

func (weaveHasher) Hash(w Weave) uint32 {
	return utils.HashCombine(cfa.EdgeHasher{}.Hash(w.Edge), uint32(w.Kind))
}

func (weaveHasher) Equal(a, b Weave) bool {
	return a == b
}
