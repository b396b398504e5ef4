package bam

import (
	"fmt"

	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/utils/hmap"
)

// Extraction is a reached state together with the effects applied to it.
type Extraction struct {
	State   cpa.State
	Effects Effects
	// Summary holds State. It is nil for states of the outer exploration.
	Summary *Key
}

// Extractor collects the effects of every state of an exploration,
// descending into the summaries used by it. The effects of a state inside a
// summary include the difference between the summary's reduced entry and
// the state that entered the block.
type Extractor struct {
	Analysis *Analysis
	// Differ may be nil if reduction keeps every effect.
	Differ EffectDiffer
	// Collect returns the effects of a single state.
	Collect func(cpa.State) Effects
	// ProcessCovered skips summaries that were already visited with more
	// effects. Otherwise only visits with equal effects are skipped.
	ProcessCovered bool
}

func (x Extractor) Extract(r *reached.Set) ([]Extraction, error) {
	var (
		res     []Extraction
		visited = hmap.NewMap[[]Effects, Key](keyHasher)
		onPath  = hmap.NewMap[bool, Key](keyHasher)
	)

	var walk func(entries []reached.Entry, summary *Key, delta Effects) error
	walk = func(entries []reached.Entry, summary *Key, delta Effects) error {
		for _, e := range entries {
			effects := delta
			if x.Collect != nil {
				effects = effects.Union(x.Collect(e.State))
			}
			res = append(res, Extraction{State: e.State, Effects: effects, Summary: summary})

			origin, ok := x.Analysis.Data().Origin(e.State)
			if !ok || onPath.Get(origin.Key) {
				continue
			}
			s, found := x.Analysis.Cache().Get(origin.Key)
			if !found || s.Reached == nil {
				continue
			}

			nested := delta
			if x.Differ != nil {
				d, err := x.Differ.Difference(origin.Key.State, origin.Entry)
				if err != nil {
					return fmt.Errorf("effects of %v entering %v: %w", origin.Entry, origin.Key.Block, err)
				}
				nested = nested.Union(d)
			}
			if x.seen(visited, origin.Key, nested) {
				continue
			}

			key := origin.Key
			onPath.Set(key, true)
			err := walk(s.Reached.Entries(), &key, nested)
			onPath.Delete(key)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(r.Entries(), nil, NewEffects()); err != nil {
		return nil, err
	}
	return res, nil
}

// seen records a visit of key with effects, reporting whether an equivalent
// visit happened before.
func (x Extractor) seen(visited *hmap.Map[Key, []Effects], key Key, effects Effects) bool {
	prev := visited.Get(key)
	for _, p := range prev {
		if p.Equal(effects) || (x.ProcessCovered && p.Subsumes(effects)) {
			return true
		}
	}
	visited.Set(key, append(prev, effects))
	return false
}
