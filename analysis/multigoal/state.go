package multigoal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
	"github.com/fatih/color"
)

var colorize = struct {
	Target  func(...interface{}) string
	Goal    func(...interface{}) string
	Pending func(...interface{}) string
}{
	Target: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed, color.Bold).SprintFunc())(is...)
	},
	Goal: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgCyan).SprintFunc())(is...)
	},
	Pending: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
}

type edgeSets = *immutable.Map[EdgeSet, struct{}]

// State is the progress of a path towards its goals: how many edges of each
// started goal were taken, the unlock sets still pending per goal, the edges
// that still have to be woven and the woven edges.
type State struct {
	progress *immutable.Map[*Goal, int]
	pending  *immutable.Map[*Goal, edgeSets]
	toWeave  *immutable.Map[Weave, struct{}]
	weaved   *immutable.Map[cfa.Edge, struct{}]
	finished bool
	initial  bool
}

func emptyState() State {
	return State{
		progress: immutable.NewMap[*Goal, int](goalHasher),
		pending:  immutable.NewMap[*Goal, edgeSets](goalHasher),
		toWeave:  immutable.NewMap[Weave, struct{}](weaveHasher{}),
		weaved:   immutable.NewMap[cfa.Edge, struct{}](cfa.EdgeHasher{}),
	}
}

func newEdgeSets(sets ...EdgeSet) edgeSets {
	m := utils.NewImmMap[EdgeSet, struct{}]()
	for _, s := range sets {
		m = m.Set(s, struct{}{})
	}
	return m
}

// Initial is the state before any goal is started.
func Initial() State {
	s := emptyState()
	s.initial = true
	return s
}

// NewState builds a state from explicit progress. Goals missing from
// pending have no pending unlock sets.
func NewState(progress map[*Goal]int, pending map[*Goal][]EdgeSet, toWeave []Weave, weaved []cfa.Edge) State {
	s := emptyState()
	for g, n := range progress {
		s.progress = s.progress.Set(g, n)
	}
	for g, sets := range pending {
		s.pending = s.pending.Set(g, newEdgeSets(sets...))
	}
	for _, w := range toWeave {
		s.toWeave = s.toWeave.Set(w, struct{}{})
	}
	for _, e := range weaved {
		s.weaved = s.weaved.Set(e, struct{}{})
	}
	return s.settle()
}

// settle recomputes whether some goal is covered.
func (s State) settle() State {
	s.finished = false
	for iter := s.progress.Iterator(); !iter.Done(); {
		g, n, _ := iter.Next()
		if s.covers(g, n) {
			s.finished = true
			break
		}
	}
	return s
}

func (s State) covers(g *Goal, n int) bool {
	if n < len(g.Edges) {
		return false
	}
	sets, ok := s.pending.Get(g)
	return !ok || sets.Len() == 0
}

// Progress is the number of edges of g taken so far.
func (s State) Progress(g *Goal) int {
	n, _ := s.progress.Get(g)
	return n
}

// Goals returns the started goals ordered by ID.
func (s State) Goals() []*Goal {
	res := make([]*Goal, 0, s.progress.Len())
	for iter := s.progress.Iterator(); !iter.Done(); {
		g, _, _ := iter.Next()
		res = append(res, g)
	}
	return sortGoals(res)
}

// Pending returns the unlock sets of g that were not unlocked yet.
func (s State) Pending(g *Goal) (res []EdgeSet) {
	sets, ok := s.pending.Get(g)
	if !ok {
		return nil
	}
	for iter := sets.Iterator(); !iter.Done(); {
		set, _, _ := iter.Next()
		res = append(res, set)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return
}

// Advance takes e for every goal in goals: started goals whose next edge is
// e make progress, goals whose first edge is e start, and pending unlock
// sets containing e are unlocked.
func (s State) Advance(e cfa.Edge, goals []*Goal) State {
	res := s
	res.initial = false

	for _, g := range goals {
		n, started := s.progress.Get(g)
		if n < len(g.Edges) && g.Edges[n] == e {
			res.progress = res.progress.Set(g, n+1)
			if !started && len(g.Unlock) > 0 {
				res.pending = res.pending.Set(g, newEdgeSets(g.Unlock...))
			}
		}
	}

	for iter := res.pending.Iterator(); !iter.Done(); {
		g, sets, _ := iter.Next()
		left := sets
		for it := sets.Iterator(); !it.Done(); {
			set, _, _ := it.Next()
			if set.Contains(e) {
				left = left.Delete(set)
			}
		}
		if left != sets {
			res.pending = res.pending.Set(g, left)
		}
	}

	if w, ok := res.weaving(e); ok {
		res = res.MarkWeaved(w.Edge)
	}
	return res.settle()
}

func (s State) weaving(e cfa.Edge) (Weave, bool) {
	for iter := s.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		if w.Edge == e {
			return w, true
		}
	}
	return Weave{}, false
}

// WithEdgesToWeave schedules edges for weaving.
func (s State) WithEdgesToWeave(ws ...Weave) State {
	for _, w := range ws {
		s.toWeave = s.toWeave.Set(w, struct{}{})
	}
	s.initial = false
	return s
}

// MarkWeaved records that e was woven. Scheduled weaves of e are done.
func (s State) MarkWeaved(e cfa.Edge) State {
	for iter := s.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		if w.Edge == e {
			s.toWeave = s.toWeave.Delete(w)
		}
	}
	s.weaved = s.weaved.Set(e, struct{}{})
	return s
}

// Unweave removes e from the woven edges once its instrumentation was left.
func (s State) Unweave(e cfa.Edge) State {
	s.weaved = s.weaved.Delete(e)
	return s
}

func (s State) NeedsWeaving() bool {
	return s.toWeave.Len() > 0
}

func (s State) EdgesToWeave() []Weave {
	res := make([]Weave, 0, s.toWeave.Len())
	for iter := s.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		res = append(res, w)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (s State) WeavedEdges() []cfa.Edge {
	res := make([]cfa.Edge, 0, s.weaved.Len())
	for iter := s.weaved.Iterator(); !iter.Done(); {
		e, _, _ := iter.Next()
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (s State) IsInitial() bool {
	return s.initial
}

// IsTarget holds when some goal is covered and no weaving is in progress.
func (s State) IsTarget() bool {
	return s.finished && s.weaved.Len() == 0 && s.toWeave.Len() == 0
}

// CoveredGoals returns the goals covered by the path, ordered by ID.
func (s State) CoveredGoals() []*Goal {
	var res []*Goal
	for iter := s.progress.Iterator(); !iter.Done(); {
		g, n, _ := iter.Next()
		if s.covers(g, n) {
			res = append(res, g)
		}
	}
	return sortGoals(res)
}

// Merged combines two states: the progress of a goal is the larger one,
// weaving is the union, and only unlock sets pending in both stay pending.
func Merged(a, b State) State {
	res := emptyState()

	res.progress = a.progress
	for iter := b.progress.Iterator(); !iter.Done(); {
		g, n, _ := iter.Next()
		if m, ok := res.progress.Get(g); !ok || n > m {
			res.progress = res.progress.Set(g, n)
		}
	}

	for iter := a.pending.Iterator(); !iter.Done(); {
		g, as, _ := iter.Next()
		bs, ok := b.pending.Get(g)
		if !ok {
			continue
		}
		both := newEdgeSets()
		for it := as.Iterator(); !it.Done(); {
			set, _, _ := it.Next()
			if _, ok := bs.Get(set); ok {
				both = both.Set(set, struct{}{})
			}
		}
		res.pending = res.pending.Set(g, both)
	}

	res.toWeave = a.toWeave
	for iter := b.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		res.toWeave = res.toWeave.Set(w, struct{}{})
	}
	res.weaved = a.weaved
	for iter := b.weaved.Iterator(); !iter.Done(); {
		e, _, _ := iter.Next()
		res.weaved = res.weaved.Set(e, struct{}{})
	}

	res = res.settle()
	res.finished = res.finished || a.finished || b.finished
	return res
}

// lessOrEqual orders states by coverage: b made at least the progress of a,
// has at most the pending sets of a and weaves at least what a weaves.
func lessOrEqual(a, b State) bool {
	if a.finished && !b.finished {
		return false
	}
	for iter := a.progress.Iterator(); !iter.Done(); {
		g, n, _ := iter.Next()
		if m, ok := b.progress.Get(g); !ok || m < n {
			return false
		}
	}
	for iter := b.pending.Iterator(); !iter.Done(); {
		g, bs, _ := iter.Next()
		if bs.Len() == 0 {
			continue
		}
		as, ok := a.pending.Get(g)
		if !ok {
			return false
		}
		for it := bs.Iterator(); !it.Done(); {
			set, _, _ := it.Next()
			if _, ok := as.Get(set); !ok {
				return false
			}
		}
	}
	for iter := a.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		if _, ok := b.toWeave.Get(w); !ok {
			return false
		}
	}
	for iter := a.weaved.Iterator(); !iter.Done(); {
		e, _, _ := iter.Next()
		if _, ok := b.weaved.Get(e); !ok {
			return false
		}
	}
	return true
}

func (s State) Hash() uint32 {
	var hs []uint32
	for iter := s.progress.Iterator(); !iter.Done(); {
		g, n, _ := iter.Next()
		hs = append(hs, utils.HashCombine(uint32(g.ID), uint32(n)))
	}
	var ws []uint32
	for iter := s.toWeave.Iterator(); !iter.Done(); {
		w, _, _ := iter.Next()
		ws = append(ws, weaveHasher{}.Hash(w))
	}
	finished := uint32(0)
	if s.finished {
		finished = 1
	}
	return utils.HashCombine(finished, utils.HashUnordered(hs...), utils.HashUnordered(ws...))
}

func (s State) Equal(o cpa.State) bool {
	os, ok := o.(State)
	if !ok {
		return false
	}
	if s.finished != os.finished ||
		s.progress.Len() != os.progress.Len() ||
		s.pending.Len() != os.pending.Len() ||
		s.toWeave.Len() != os.toWeave.Len() ||
		s.weaved.Len() != os.weaved.Len() {
		return false
	}
	return lessOrEqual(s, os) && lessOrEqual(os, s) && samePending(s, os)
}

// samePending compares pending sets exactly, including goals whose sets are
// all unlocked.
func samePending(a, b State) bool {
	for iter := a.pending.Iterator(); !iter.Done(); {
		g, as, _ := iter.Next()
		bs, ok := b.pending.Get(g)
		if !ok || as.Len() != bs.Len() {
			return false
		}
		for it := as.Iterator(); !it.Done(); {
			set, _, _ := it.Next()
			if _, ok := bs.Get(set); !ok {
				return false
			}
		}
	}
	return true
}

func (s State) String() string {
	var b strings.Builder
	if s.IsTarget() {
		b.WriteString(colorize.Target("TARGET"))
	} else {
		b.WriteString("NO_TARGET")
	}
	for _, g := range s.Goals() {
		fmt.Fprintf(&b, " %s:%d/%d", colorize.Goal(fmt.Sprintf("g%d", g.ID)), s.Progress(g), len(g.Edges))
		for _, set := range s.Pending(g) {
			fmt.Fprintf(&b, " %s", colorize.Pending(set))
		}
	}
	if ws := s.EdgesToWeave(); len(ws) > 0 {
		fmt.Fprintf(&b, " weave %v", ws)
	}
	if es := s.WeavedEdges(); len(es) > 0 {
		fmt.Fprintf(&b, " woven %v", es)
	}
	return b.String()
}

var _ cpa.Targetable = State{}
