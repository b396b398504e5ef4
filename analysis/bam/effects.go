package bam

import (
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
)

// Effect is a side effect accumulated along a path, e.g. a lock acquisition
// or a memory access.
type Effect interface {
	utils.HashableEq[Effect]
	String() string
}

// Effects is an immutable multiset of effects.
type Effects struct {
	counts *immutable.Map[Effect, int]
	size   int
}

func NewEffects(es ...Effect) Effects {
	res := Effects{counts: utils.NewImmMap[Effect, int]()}
	for _, e := range es {
		res = res.Add(e)
	}
	return res
}

func (m Effects) table() *immutable.Map[Effect, int] {
	if m.counts == nil {
		return utils.NewImmMap[Effect, int]()
	}
	return m.counts
}

// Add returns the multiset with one more occurrence of e.
func (m Effects) Add(e Effect) Effects {
	counts := m.table()
	n, _ := counts.Get(e)
	return Effects{counts: counts.Set(e, n+1), size: m.size + 1}
}

// Count is the number of occurrences of e.
func (m Effects) Count(e Effect) int {
	if m.counts == nil {
		return 0
	}
	n, _ := m.counts.Get(e)
	return n
}

func (m Effects) Contains(e Effect) bool {
	return m.Count(e) > 0
}

// Len is the number of occurrences of all effects.
func (m Effects) Len() int {
	return m.size
}

func (m Effects) ForEach(do func(e Effect, count int)) {
	if m.counts == nil {
		return
	}
	for iter := m.counts.Iterator(); !iter.Done(); {
		e, n, _ := iter.Next()
		do(e, n)
	}
}

// Union adds the occurrences of o.
func (m Effects) Union(o Effects) Effects {
	res := m
	o.ForEach(func(e Effect, n int) {
		counts := res.table()
		old, _ := counts.Get(e)
		res = Effects{counts: counts.Set(e, old+n), size: res.size + n}
	})
	return res
}

// Subsumes reports whether every occurrence in o also is in m.
func (m Effects) Subsumes(o Effects) bool {
	if o.size > m.size {
		return false
	}
	res := true
	o.ForEach(func(e Effect, n int) {
		if m.Count(e) < n {
			res = false
		}
	})
	return res
}

func (m Effects) Equal(o Effects) bool {
	return m.size == o.size && m.Subsumes(o)
}

func (m Effects) Hash() uint32 {
	var hs []uint32
	m.ForEach(func(e Effect, n int) {
		hs = append(hs, utils.HashCombine(e.Hash(), uint32(n)))
	})
	return utils.HashUnordered(hs...)
}

func (m Effects) String() string {
	var strs []string
	m.ForEach(func(e Effect, n int) {
		for i := 0; i < n; i++ {
			strs = append(strs, e.String())
		}
	})
	sort.Strings(strs)
	return "{" + strings.Join(strs, ", ") + "}"
}

// EffectDiffer computes the effects applied to root, the true state
// entering a block, that are missing from its reduced entry state. A summary
// computed under the reduced state is valid under root once the difference
// is composed with its results.
type EffectDiffer interface {
	Difference(reducedEntry, root cpa.State) (Effects, error)
}
