// Package bam summarizes blocks of the automaton: the first entry into a
// block with a given reduced state explores the block on its own and caches
// the reached exits, and later entries with an equal reduced state reuse
// them.
package bam

import (
	"context"
	"fmt"

	"github.com/cs-au-dk/reach/analysis/algorithm"
	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/analysis/waitlist"
)

// Config controls block explorations.
type Config struct {
	Log bool
	// Waitlist orders block explorations. Defaults to FIFO.
	Waitlist waitlist.Factory
	// Target marks the states returned from a block even if they are not at
	// an exit. Defaults to cpa.IsTargetState.
	Target  cpa.TargetFunc
	Metrics *algorithm.Metrics
}

// Analysis wraps an analysis so that calls into blocks are answered by
// summaries.
type Analysis struct {
	inner   *cpa.CPA
	cfa     cfa.CFA
	blocks  *Partitioning
	reducer Reducer
	cache   *Cache
	data    *DataManager
	cfg     Config
}

// New wraps c. Summaries are stored in cache, which may be shared by
// several analyses over the same automaton and partitioning.
func New(c *cpa.CPA, g cfa.CFA, blocks *Partitioning, reducer Reducer, cache *Cache, cfg Config) (*Analysis, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch {
	case blocks == nil:
		return nil, cpa.ConfigurationError{Component: "bam", Reason: "no block partitioning"}
	case reducer == nil:
		return nil, cpa.ConfigurationError{Component: "bam", Reason: "no reducer"}
	}
	if cache == nil {
		cache = NewCache(nil, cfg.Log)
	}
	if cfg.Waitlist == nil {
		cfg.Waitlist = waitlist.FIFO
	}
	if cfg.Target == nil {
		cfg.Target = cpa.IsTargetState
	}
	return &Analysis{
		inner:   c,
		cfa:     g,
		blocks:  blocks,
		reducer: reducer,
		cache:   cache,
		data:    NewDataManager(),
		cfg:     cfg,
	}, nil
}

// CPA returns the wrapped analysis for the outer exploration.
func (a *Analysis) CPA() *cpa.CPA {
	return a.wrap(transfer{a: a})
}

func (a *Analysis) wrap(t transfer) *cpa.CPA {
	c := a.inner.WithTransfer(t)
	c.Precision = precision{a: a, inner: a.inner.Adjustment()}
	return c
}

func (a *Analysis) Cache() *Cache               { return a.cache }
func (a *Analysis) Data() *DataManager          { return a.data }
func (a *Analysis) Partitioning() *Partitioning { return a.blocks }

// transfer is the transfer relation of explorations. Inside a block
// exploration, block is the explored block.
type transfer struct {
	a     *Analysis
	block *Block
}

func (t transfer) Successors(ctx context.Context, s cpa.State, p cpa.Precision, e cfa.Edge) ([]cpa.State, error) {
	if t.block != nil && t.block.IsExit(e.Pred()) && !t.a.returnedFrom(s, t.block) {
		// Exit states are the result of the block exploration. States at the
		// exit that come from a recursive call of the block still return.
		return nil, nil
	}

	if call, ok := e.(cfa.CallEdge); ok {
		if b, ok := t.a.blocks.BlockForEntry(call.Succ()); ok {
			return t.a.enter(ctx, s, p, call, b)
		}
	}
	return t.a.inner.Transfer.Successors(ctx, s, p, e)
}

// precision adjusts states returned from a block with the precision of the
// exit they were expanded from, instead of the precision at the call.
type precision struct {
	a     *Analysis
	inner cpa.PrecisionAdjustment
}

func (p precision) Adjust(s cpa.State, prec cpa.Precision, r cpa.ReachedView) (cpa.Adjustment, error) {
	if o, ok := p.a.data.Origin(s); ok && o.Precision != nil {
		prec = o.Precision
	}
	return p.inner.Adjust(s, prec, r)
}

func (a *Analysis) returnedFrom(s cpa.State, b *Block) bool {
	o, ok := a.data.Origin(s)
	return ok && o.Key.Block == b
}

// enter answers a call into b with the expanded exits of its summary.
func (a *Analysis) enter(ctx context.Context, s cpa.State, p cpa.Precision, call cfa.CallEdge, b *Block) ([]cpa.State, error) {
	entries, err := a.inner.Transfer.Successors(ctx, s, p, call)
	if err != nil {
		return nil, err
	}

	var res []cpa.State
	for _, entry := range entries {
		reduced, err := a.reducer.Reduce(entry, b)
		if err != nil {
			return nil, fmt.Errorf("reducing %v for %v: %w", entry, b, err)
		}
		key := Key{Block: b, State: reduced, Precision: a.reducer.ReducePrecision(p, b)}

		summary, err := a.cache.LookupOrCompute(ctx, key, a.explore)
		if err != nil {
			return nil, err
		}
		if !summary.Status.Complete && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		for _, exit := range summary.Exits {
			expanded, err := a.reducer.Expand(entry, b, exit)
			if err != nil {
				return nil, fmt.Errorf("expanding %v from %v: %w", exit, b, err)
			}
			if rb, ok := a.reducer.(CallRebuilder); ok {
				l, _ := cpa.LocationOf(exit)
				if expanded, err = rb.RebuildAfterCall(s, entry, expanded, l); err != nil {
					return nil, err
				}
			}
			a.data.record(expanded, Origin{
				Key:       key,
				Entry:     entry,
				Exit:      exit,
				Precision: a.reducer.ExpandPrecision(p, b, exitPrecision(summary, exit)),
			})
			res = append(res, expanded)
		}
	}
	return res, nil
}

// exitPrecision is the precision of exit in the block exploration. Partial
// summaries only know the precision the block was entered with.
func exitPrecision(s *Summary, exit cpa.State) cpa.Precision {
	if s.Reached != nil {
		if p, ok := s.Reached.Precision(exit); ok {
			return p
		}
	}
	return s.Key.Precision
}

// explore computes the summary of key with a fresh exploration confined to
// the block.
func (a *Analysis) explore(ctx context.Context, key Key) (*Summary, error) {
	alg, err := algorithm.New(a.wrap(transfer{a: a, block: key.Block}), a.cfa, algorithm.Config{
		Log:     a.cfg.Log,
		Target:  a.cfg.Target,
		Metrics: a.cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	r := reached.New(a.cfg.Waitlist)
	r.AddRoot(key.State, key.Precision)

	var status algorithm.Status
	for {
		if status, err = alg.Run(ctx, r); err != nil {
			return nil, err
		}
		// Breaks only pause the exploration.
		if status.Complete || !r.HasWaiting() || ctx.Err() != nil {
			break
		}
	}

	return &Summary{
		Key:     key,
		Reached: r,
		Exits:   a.exits(r, key.Block),
		Status:  status,
	}, nil
}

func (a *Analysis) exits(r *reached.Set, b *Block) (res []cpa.State) {
	targets := map[arg.NodeID]bool{}
	for _, id := range r.Targets() {
		targets[id] = true
	}

	var found []cpa.State
	for _, e := range r.Entries() {
		if l, ok := cpa.LocationOf(e.State); ok && b.IsExit(l) {
			if !a.returnedFrom(e.State, b) {
				res = append(res, e.State)
			}
		} else if targets[e.Node] {
			found = append(found, e.State)
		}
	}
	return append(res, found...)
}
