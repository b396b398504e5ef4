package bam

import (
	"fmt"
	"sync/atomic"
)

// Stats counts cache events. A nil *Stats disables counting.
type Stats struct {
	hits           atomic.Int64
	misses         atomic.Int64
	recursionHits  atomic.Int64
	recomputations atomic.Int64
	invalidations  atomic.Int64
	waits          atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) hit() {
	if s != nil {
		s.hits.Add(1)
	}
}

func (s *Stats) miss() {
	if s != nil {
		s.misses.Add(1)
	}
}

func (s *Stats) recursionHit() {
	if s != nil {
		s.recursionHits.Add(1)
	}
}

func (s *Stats) recomputation() {
	if s != nil {
		s.recomputations.Add(1)
	}
}

func (s *Stats) invalidation(n int) {
	if s != nil {
		s.invalidations.Add(int64(n))
	}
}

func (s *Stats) wait() {
	if s != nil {
		s.waits.Add(1)
	}
}

// Hits is the number of lookups answered by a fully explored summary.
func (s *Stats) Hits() int {
	if s == nil {
		return 0
	}
	return int(s.hits.Load())
}

// Misses is the number of summaries computed.
func (s *Stats) Misses() int {
	if s == nil {
		return 0
	}
	return int(s.misses.Load())
}

// RecursionHits is the number of lookups of a summary under computation by
// the same worker.
func (s *Stats) RecursionHits() int {
	if s == nil {
		return 0
	}
	return int(s.recursionHits.Load())
}

// Recomputations is the number of extra rounds needed by recursive
// summaries to stabilize.
func (s *Stats) Recomputations() int {
	if s == nil {
		return 0
	}
	return int(s.recomputations.Load())
}

func (s *Stats) Invalidations() int {
	if s == nil {
		return 0
	}
	return int(s.invalidations.Load())
}

// Waits is the number of lookups that waited for another worker.
func (s *Stats) Waits() int {
	if s == nil {
		return 0
	}
	return int(s.waits.Load())
}

func (s *Stats) String() string {
	if s == nil {
		return "cache statistics disabled"
	}
	return fmt.Sprintf("%d hits, %d misses, %d recursion hits, %d recomputations, %d invalidations, %d waits",
		s.Hits(), s.Misses(), s.RecursionHits(), s.Recomputations(), s.Invalidations(), s.Waits())
}
