package cpa

import (
	"context"
	"fmt"
	"strings"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/utils"
)

// CompositeState is the product of the states of several analyses.
type CompositeState struct {
	parts []State
}

func NewCompositeState(parts ...State) CompositeState {
	return CompositeState{parts: append([]State(nil), parts...)}
}

func (c CompositeState) Wrapped() []State {
	return c.parts
}

func (c CompositeState) Part(i int) State {
	return c.parts[i]
}

func (c CompositeState) Hash() uint32 {
	hs := make([]uint32, len(c.parts))
	for i, p := range c.parts {
		hs[i] = p.Hash()
	}
	return utils.HashCombine(hs...)
}

func (c CompositeState) Equal(o State) bool {
	oc, ok := o.(CompositeState)
	if !ok || len(oc.parts) != len(c.parts) {
		return false
	}
	for i := range c.parts {
		if !c.parts[i].Equal(oc.parts[i]) {
			return false
		}
	}
	return true
}

func (c CompositeState) String() string {
	strs := make([]string, len(c.parts))
	for i, p := range c.parts {
		strs[i] = p.String()
	}
	return "(" + strings.Join(strs, ", ") + ")"
}

// CompositePrecision is the product of the precisions of several analyses.
type CompositePrecision struct {
	parts []Precision
}

func NewCompositePrecision(parts ...Precision) CompositePrecision {
	return CompositePrecision{parts: append([]Precision(nil), parts...)}
}

func (c CompositePrecision) Part(i int) Precision {
	if i < len(c.parts) {
		return c.parts[i]
	}
	return NoPrecision
}

func (c CompositePrecision) Hash() uint32 {
	hs := make([]uint32, len(c.parts))
	for i, p := range c.parts {
		hs[i] = p.Hash()
	}
	return utils.HashCombine(hs...)
}

func (c CompositePrecision) Equal(o Precision) bool {
	oc, ok := o.(CompositePrecision)
	if !ok || len(oc.parts) != len(c.parts) {
		return false
	}
	for i := range c.parts {
		if !c.parts[i].Equal(oc.parts[i]) {
			return false
		}
	}
	return true
}

func (c CompositePrecision) String() string {
	strs := make([]string, len(c.parts))
	for i, p := range c.parts {
		strs[i] = p.String()
	}
	return "(" + strings.Join(strs, ", ") + ")"
}

// composite implements every operator of the product analysis.
type composite struct {
	components []*CPA
}

// Composite builds the product of several analyses. States of the product
// are CompositeStates with one part per component, in order.
func Composite(name string, components ...*CPA) (*CPA, error) {
	relaxed := false
	for _, c := range components {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("component of %s: %w", name, err)
		}
		relaxed = relaxed || c.Relaxed
	}

	op := composite{components}
	return &CPA{
		Name:      name,
		Domain:    op,
		Transfer:  op,
		Merge:     op,
		Stop:      op,
		Precision: op,
		Relaxed:   relaxed,
	}, nil
}

func (op composite) parts(s State) ([]State, error) {
	c, ok := s.(CompositeState)
	if !ok || len(c.parts) != len(op.components) {
		return nil, fmt.Errorf("expected a composite state with %d parts, got %v", len(op.components), s)
	}
	return c.parts, nil
}

func precisionPart(p Precision, i int) Precision {
	if cp, ok := p.(CompositePrecision); ok {
		return cp.Part(i)
	}
	return NoPrecision
}

func (op composite) Join(a, b State) (State, error) {
	as, err := op.parts(a)
	if err != nil {
		return nil, err
	}
	bs, err := op.parts(b)
	if err != nil {
		return nil, err
	}

	res := make([]State, len(as))
	for i, c := range op.components {
		if c.Domain == nil {
			return nil, Unsupported("join in component %s without domain", c.name())
		}
		if res[i], err = c.Domain.Join(as[i], bs[i]); err != nil {
			return nil, err
		}
	}
	return CompositeState{res}, nil
}

func (op composite) LessOrEqual(a, b State) (bool, error) {
	as, err := op.parts(a)
	if err != nil {
		return false, err
	}
	bs, err := op.parts(b)
	if err != nil {
		return false, err
	}

	for i, c := range op.components {
		var leq bool
		if c.Domain == nil {
			leq = as[i].Equal(bs[i])
		} else if leq, err = c.Domain.LessOrEqual(as[i], bs[i]); err != nil {
			return false, err
		}
		if !leq {
			return false, nil
		}
	}
	return true, nil
}

// Successors is the cartesian product of the component successors.
func (op composite) Successors(ctx context.Context, s State, p Precision, e cfa.Edge) ([]State, error) {
	ss, err := op.parts(s)
	if err != nil {
		return nil, err
	}

	product := [][]State{nil}
	for i, c := range op.components {
		succs, err := c.Transfer.Successors(ctx, ss[i], precisionPart(p, i), e)
		if err != nil {
			return nil, err
		}
		if len(succs) == 0 {
			return nil, nil
		}

		next := make([][]State, 0, len(product)*len(succs))
		for _, prefix := range product {
			for _, succ := range succs {
				next = append(next, append(append([]State(nil), prefix...), succ))
			}
		}
		product = next
	}

	res := make([]State, len(product))
	for i, parts := range product {
		res[i] = CompositeState{parts}
	}
	return res, nil
}

// Merge merges componentwise, but only if every component that never merges
// agrees on its part.
func (op composite) Merge(s, r State, p Precision) (State, bool, error) {
	ss, err := op.parts(s)
	if err != nil {
		return nil, false, err
	}
	rs, err := op.parts(r)
	if err != nil {
		return nil, false, err
	}

	for i, c := range op.components {
		if _, sep := c.Merge.(MergeSep); sep && !ss[i].Equal(rs[i]) {
			return r, false, nil
		}
	}

	merged := make([]State, len(ss))
	changed := false
	for i, c := range op.components {
		m, ch, err := c.Merge.Merge(ss[i], rs[i], precisionPart(p, i))
		if err != nil {
			return nil, false, err
		}
		merged[i] = m
		changed = changed || ch
	}
	if !changed {
		return r, false, nil
	}
	return CompositeState{merged}, true, nil
}

// Stop holds when a single reached state stops s in every component.
func (op composite) Stop(s State, reached []State, p Precision) (bool, error) {
	ss, err := op.parts(s)
	if err != nil {
		return false, err
	}

outer:
	for _, r := range reached {
		rs, err := op.parts(r)
		if err != nil {
			return false, err
		}
		for i, c := range op.components {
			stop, err := c.Stop.Stop(ss[i], []State{rs[i]}, precisionPart(p, i))
			if err != nil {
				return false, err
			}
			if !stop {
				continue outer
			}
		}
		return true, nil
	}
	return false, nil
}

// Adjust adjusts componentwise. The product breaks if any component does.
func (op composite) Adjust(s State, p Precision, reached ReachedView) (Adjustment, error) {
	ss, err := op.parts(s)
	if err != nil {
		return Adjustment{}, err
	}

	states := make([]State, len(ss))
	precs := make([]Precision, len(ss))
	action := Continue
	for i, c := range op.components {
		adj, err := c.Adjustment().Adjust(ss[i], precisionPart(p, i), reached)
		if err != nil {
			return Adjustment{}, err
		}
		states[i], precs[i] = adj.State, adj.Precision
		if adj.Action == Break {
			action = Break
		}
	}

	return Adjustment{
		State:     CompositeState{states},
		Precision: CompositePrecision{precs},
		Action:    action,
	}, nil
}
