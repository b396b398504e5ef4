package bam

import (
	"fmt"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
)

// Reducer translates between the states of callers and the block-local
// states summaries are computed for.
type Reducer interface {
	// Reduce projects s onto what is visible inside b.
	Reduce(s cpa.State, b *Block) (cpa.State, error)
	// Expand re-attaches the context of root, the state entering b, to a
	// reduced exit state of b.
	Expand(root cpa.State, b *Block, reducedExit cpa.State) (cpa.State, error)
	ReducePrecision(p cpa.Precision, b *Block) cpa.Precision
	ExpandPrecision(root cpa.Precision, b *Block, reduced cpa.Precision) cpa.Precision
}

// CallRebuilder is implemented by reducers that must adjust an expanded
// state using the state before the call, e.g. to restore caller-local
// values shadowed by the callee.
type CallRebuilder interface {
	RebuildAfterCall(caller, entry, expanded cpa.State, exit cfa.Location) (cpa.State, error)
}

// NoReduction keeps states unchanged. Summaries are then only shared between
// equal calling contexts.
type NoReduction struct{}

func (NoReduction) Reduce(s cpa.State, _ *Block) (cpa.State, error) {
	return s, nil
}

func (NoReduction) ReducePrecision(p cpa.Precision, _ *Block) cpa.Precision {
	return p
}

func (NoReduction) Expand(_ cpa.State, _ *Block, exit cpa.State) (cpa.State, error) {
	return exit, nil
}

func (NoReduction) ExpandPrecision(_ cpa.Precision, _ *Block, reduced cpa.Precision) cpa.Precision {
	return reduced
}

// CompositeReducer reduces composite states componentwise.
type CompositeReducer []Reducer

func (cr CompositeReducer) parts(s cpa.State) ([]cpa.State, error) {
	c, ok := s.(cpa.CompositeState)
	if !ok {
		return nil, fmt.Errorf("composite reducer applied to %T", s)
	}
	parts := c.Wrapped()
	if len(parts) != len(cr) {
		return nil, fmt.Errorf("composite reducer with %d components applied to %v", len(cr), s)
	}
	return parts, nil
}

func (cr CompositeReducer) Reduce(s cpa.State, b *Block) (cpa.State, error) {
	parts, err := cr.parts(s)
	if err != nil {
		return nil, err
	}
	res := make([]cpa.State, len(parts))
	for i, r := range cr {
		if res[i], err = r.Reduce(parts[i], b); err != nil {
			return nil, err
		}
	}
	return cpa.NewCompositeState(res...), nil
}

func (cr CompositeReducer) Expand(root cpa.State, b *Block, reducedExit cpa.State) (cpa.State, error) {
	roots, err := cr.parts(root)
	if err != nil {
		return nil, err
	}
	exits, err := cr.parts(reducedExit)
	if err != nil {
		return nil, err
	}
	res := make([]cpa.State, len(roots))
	for i, r := range cr {
		if res[i], err = r.Expand(roots[i], b, exits[i]); err != nil {
			return nil, err
		}
	}
	return cpa.NewCompositeState(res...), nil
}

func (cr CompositeReducer) ReducePrecision(p cpa.Precision, b *Block) cpa.Precision {
	c, ok := p.(cpa.CompositePrecision)
	if !ok {
		return p
	}
	res := make([]cpa.Precision, len(cr))
	for i, r := range cr {
		res[i] = r.ReducePrecision(c.Part(i), b)
	}
	return cpa.NewCompositePrecision(res...)
}

func (cr CompositeReducer) ExpandPrecision(root cpa.Precision, b *Block, reduced cpa.Precision) cpa.Precision {
	cRoot, ok := root.(cpa.CompositePrecision)
	cReduced, ok2 := reduced.(cpa.CompositePrecision)
	if !ok || !ok2 {
		return reduced
	}
	res := make([]cpa.Precision, len(cr))
	for i, r := range cr {
		res[i] = r.ExpandPrecision(cRoot.Part(i), b, cReduced.Part(i))
	}
	return cpa.NewCompositePrecision(res...)
}

// RebuildAfterCall delegates to the components that rebuild states.
func (cr CompositeReducer) RebuildAfterCall(caller, entry, expanded cpa.State, exit cfa.Location) (cpa.State, error) {
	callers, err := cr.parts(caller)
	if err != nil {
		return nil, err
	}
	entries, err := cr.parts(entry)
	if err != nil {
		return nil, err
	}
	parts, err := cr.parts(expanded)
	if err != nil {
		return nil, err
	}

	res := make([]cpa.State, len(parts))
	for i, r := range cr {
		res[i] = parts[i]
		if rb, ok := r.(CallRebuilder); ok {
			if res[i], err = rb.RebuildAfterCall(callers[i], entries[i], parts[i], exit); err != nil {
				return nil, err
			}
		}
	}
	return cpa.NewCompositeState(res...), nil
}

var _ CallRebuilder = CompositeReducer(nil)
