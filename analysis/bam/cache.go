package bam

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cs-au-dk/reach/analysis/algorithm"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/hmap"
)

// Key identifies a summary: a block entered with a reduced state and
// precision.
type Key struct {
	Block     *Block
	State     cpa.State
	Precision cpa.Precision
}

func (k Key) Hash() uint32 {
	return utils.HashCombine(uint32(k.Block.ID), k.State.Hash(), k.Precision.Hash())
}

func (k Key) Equal(o Key) bool {
	return k.Block == o.Block && k.State.Equal(o.State) && k.Precision.Equal(o.Precision)
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%v@%v", k.Block.ID, k.State, k.Precision)
}

// Summary is the result of exploring a block from a reduced entry state.
type Summary struct {
	Key Key
	// Reached is the reached set of the block exploration. It is nil for the
	// partial summaries handed out on recursive entries.
	Reached *reached.Set
	// Exits are the reduced states at the exits of the block, followed by the
	// target states reached inside it.
	Exits  []cpa.State
	Status algorithm.Status
	// Complete summaries are reused by every later lookup of their key.
	Complete bool
}

// ComputeFunc explores a block for the given key.
type ComputeFunc func(ctx context.Context, key Key) (*Summary, error)

type flight struct {
	owner   *worker
	done    chan struct{}
	summary *Summary
	err     error
}

type frame struct {
	key Key
	// Exits known from the previous round. Recursive entries see these.
	exits     []cpa.State
	recursive bool
	// Set when the frame used a partial summary of a frame below it.
	tainted bool
}

// worker is the chain of nested summary computations of one goroutine.
type worker struct {
	stack      []*frame
	waitingFor *flight
}

func (w *worker) find(k Key) int {
	for i := len(w.stack) - 1; i >= 0; i-- {
		if w.stack[i].key.Equal(k) {
			return i
		}
	}
	return -1
}

type workerKey struct{}

func workerOf(ctx context.Context) (*worker, context.Context) {
	if w, ok := ctx.Value(workerKey{}).(*worker); ok {
		return w, ctx
	}
	w := &worker{}
	return w, context.WithValue(ctx, workerKey{}, w)
}

var keyHasher utils.Hasher[Key] = utils.HashableHasher[Key]()

// Cache stores block summaries. It is safe for concurrent use: at most one
// worker computes the summary of a key at a time, and other workers looking
// up the key wait for it.
type Cache struct {
	mu        sync.Mutex
	summaries *hmap.Map[Key, *Summary]
	inflight  *hmap.Map[Key, *flight]

	stats *Stats
	log   bool
}

// NewCache creates an empty cache. stats may be nil.
func NewCache(stats *Stats, log bool) *Cache {
	return &Cache{
		summaries: hmap.NewMap[*Summary, Key](keyHasher),
		inflight:  hmap.NewMap[*flight, Key](keyHasher),
		stats:     stats,
		log:       log,
	}
}

func (c *Cache) logf(format string, args ...any) {
	if c.log {
		log.Printf(format, args...)
	}
}

func (c *Cache) Stats() *Stats {
	return c.stats
}

// LookupOrCompute returns the summary of key, computing it if no fully
// explored summary is cached.
//
// A key that is being computed by the calling worker is a recursive entry.
// It is answered with the exits known so far, and the computation of the key
// is repeated until its exits are stable. Computations nested between the
// two entries depend on an unfinished summary, and are not stored as fully
// explored.
func (c *Cache) LookupOrCompute(ctx context.Context, key Key, compute ComputeFunc) (*Summary, error) {
	w, ctx := workerOf(ctx)

	c.mu.Lock()
	if s, found := c.summaries.GetOk(key); found && s.Complete {
		c.mu.Unlock()
		c.stats.hit()
		return s, nil
	}

	if i := w.find(key); i >= 0 {
		c.mu.Unlock()
		c.stats.recursionHit()
		f := w.stack[i]
		f.recursive = true
		for _, above := range w.stack[i+1:] {
			above.tainted = true
		}
		c.logf("Recursive entry into %v with %d known exits", key, len(f.exits))
		return &Summary{Key: key, Exits: append([]cpa.State(nil), f.exits...)}, nil
	}

	fl, running := c.inflight.GetOk(key)
	if running && !c.closesCycle(w, fl) {
		w.waitingFor = fl
		c.mu.Unlock()
		c.stats.wait()

		select {
		case <-fl.done:
		case <-ctx.Done():
		}

		c.mu.Lock()
		w.waitingFor = nil
		c.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fl.err != nil {
			return nil, fl.err
		}
		if fl.summary.Complete {
			return fl.summary, nil
		}
		// The summary depended on unfinished computations of its owner.
		return c.compute(ctx, w, key, compute, nil)
	}

	if running {
		c.mu.Unlock()
		c.logf("Computing %v locally to avoid waiting in a cycle", key)
		return c.compute(ctx, w, key, compute, nil)
	}

	fl = &flight{owner: w, done: make(chan struct{})}
	c.inflight.Set(key, fl)
	c.mu.Unlock()
	return c.compute(ctx, w, key, compute, fl)
}

// closesCycle reports whether waiting for fl would make w wait for itself.
// Must be called with c.mu held.
func (c *Cache) closesCycle(w *worker, fl *flight) bool {
	for owner := fl.owner; owner != nil; {
		if owner == w {
			return true
		}
		if owner.waitingFor == nil {
			return false
		}
		owner = owner.waitingFor.owner
	}
	return false
}

func (c *Cache) compute(ctx context.Context, w *worker, key Key, compute ComputeFunc, fl *flight) (s *Summary, err error) {
	f := &frame{key: key}
	w.stack = append(w.stack, f)
	defer func() {
		w.stack = w.stack[:len(w.stack)-1]
		c.finish(key, fl, s, err)
	}()

	c.stats.miss()
	for round := 0; ; round++ {
		if round > 0 {
			c.stats.recomputation()
		}
		f.recursive = false
		if s, err = compute(ctx, key); err != nil {
			return nil, err
		}
		if !f.recursive || sameStates(s.Exits, f.exits) {
			break
		}
		f.exits = s.Exits
	}

	s.Complete = s.Status.Complete && !f.tainted
	return s, nil
}

// finish publishes the result of a computation.
func (c *Cache) finish(key Key, fl *flight, s *Summary, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if old, found := c.summaries.GetOk(key); !found || !old.Complete || s.Complete {
			c.summaries.Set(key, s)
		}
		c.logf("Summarized %v: %d exits, complete: %v", key, len(s.Exits), s.Complete)
	}
	if fl != nil {
		fl.summary, fl.err = s, err
		c.inflight.Delete(key)
		close(fl.done)
	}
}

func sameStates(a, b []cpa.State) bool {
	if len(a) != len(b) {
		return false
	}
	seen := hmap.NewMap[bool, cpa.State](utils.HashableHasher[cpa.State]())
	for _, s := range a {
		seen.Set(s, true)
	}
	for _, s := range b {
		if _, found := seen.GetOk(s); !found {
			return false
		}
	}
	return true
}

// Get returns the stored summary of key, complete or not.
func (c *Cache) Get(key Key) (*Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaries.GetOk(key)
}

// Invalidate drops the summary of key. It reports whether one was stored.
func (c *Cache) Invalidate(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.summaries.Delete(key) {
		c.stats.invalidation(1)
		return true
	}
	return false
}

// InvalidateBlock drops every summary of b and returns their number.
func (c *Cache) InvalidateBlock(b *Block) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []Key
	c.summaries.ForEach(func(k Key, _ *Summary) bool {
		if k.Block == b {
			keys = append(keys, k)
		}
		return true
	})
	for _, k := range keys {
		c.summaries.Delete(k)
	}
	c.stats.invalidation(len(keys))
	return len(keys)
}

// Clear drops every summary.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.invalidation(c.summaries.Len())
	c.summaries = hmap.NewMap[*Summary, Key](keyHasher)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaries.Len()
}

// Summaries returns the stored summaries of b.
func (c *Cache) Summaries(b *Block) (res []*Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summaries.ForEach(func(k Key, s *Summary) bool {
		if k.Block == b {
			res = append(res, s)
		}
		return true
	})
	return
}
