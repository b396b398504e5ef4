// Package ssacfa translates Go functions in SSA form into a control-flow
// automaton. Every instruction becomes an edge between two locations,
// branches become pairs of assumptions, and calls to functions with a body
// become call edges. Panics lead to target locations.
package ssacfa

import (
	"fmt"
	"go/token"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/utils/worklist"

	"golang.org/x/tools/go/ssa"
)

// Program is the automaton of a set of SSA functions.
type Program struct {
	Graph *cfa.Graph

	prog   *ssa.Program
	funcs  map[*ssa.Function]*cfa.Function
	order  []*ssa.Function
	panics map[int]*ssa.Panic
}

// Build translates the given functions and every function with a body that
// is statically called from them.
func Build(roots ...*ssa.Function) (*Program, error) {
	p := &Program{
		Graph:  cfa.NewGraph(),
		funcs:  make(map[*ssa.Function]*cfa.Function),
		panics: make(map[int]*ssa.Panic),
	}

	worklist.StartV(roots, func(fn *ssa.Function, add func(*ssa.Function)) {
		if _, seen := p.funcs[fn]; seen || fn.Blocks == nil {
			return
		}
		p.funcs[fn] = nil
		p.order = append(p.order, fn)
		if p.prog == nil {
			p.prog = fn.Prog
		}

		for _, b := range fn.Blocks {
			for _, insn := range b.Instrs {
				if call, ok := insn.(*ssa.Call); ok {
					if callee := call.Call.StaticCallee(); callee != nil {
						add(callee)
					}
				}
			}
		}
	})

	for _, fn := range p.order {
		f, err := p.Graph.NewFunction(fn.String())
		if err != nil {
			return nil, err
		}
		p.funcs[fn] = f
	}
	for _, fn := range p.order {
		if err := p.function(fn); err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
	}
	return p, nil
}

func (p *Program) function(fn *ssa.Function) error {
	f := p.funcs[fn]
	name := f.Name

	starts := make([]*cfa.Node, len(fn.Blocks))
	for i, b := range fn.Blocks {
		if i == 0 {
			starts[i] = f.Entry
			continue
		}
		starts[i] = p.Graph.NewLocation(name, fmt.Sprintf("%s.b%d", name, b.Index))
	}

	for i, b := range fn.Blocks {
		cur := starts[i]
		for _, insn := range b.Instrs {
			next, err := p.instruction(f, cur, insn, func(b *ssa.BasicBlock) *cfa.Node {
				return starts[b.Index]
			})
			if err != nil {
				return err
			}
			cur = next
		}
	}
	return nil
}

// instruction adds the edges of insn leaving cur and returns the location
// after it. Terminators return nil.
func (p *Program) instruction(f *cfa.Function, cur *cfa.Node, insn ssa.Instruction, start func(*ssa.BasicBlock) *cfa.Node) (*cfa.Node, error) {
	g := p.Graph
	succs := insn.Block().Succs

	switch insn := insn.(type) {
	case *ssa.If:
		return nil, g.Assume(cur, start(succs[0]), start(succs[1]), insn.Cond.Name())
	case *ssa.Jump:
		return nil, g.Blank(cur, start(succs[0]))
	case *ssa.Return:
		return nil, g.Statement(cur, f.Exit, insn.String())
	case *ssa.Panic:
		l := g.NewLocation(f.Name, "panic")
		g.MarkTarget(l)
		p.panics[l.ID()] = insn
		return nil, g.Statement(cur, l, insn.String())
	}

	next := g.NewLocation(f.Name, "")
	if call, ok := insn.(*ssa.Call); ok {
		if callee, ok := p.funcs[call.Call.StaticCallee()]; ok {
			return next, g.Call(cur, callee.Name, next)
		}
	}
	return next, g.Statement(cur, next, text(insn))
}

func text(insn ssa.Instruction) string {
	if v, ok := insn.(ssa.Value); ok && v.Name() != "" {
		return fmt.Sprintf("%s = %s", v.Name(), v.String())
	}
	return insn.String()
}

// Function returns the automaton function of fn, if it was translated.
func (p *Program) Function(fn *ssa.Function) (*cfa.Function, bool) {
	f, ok := p.funcs[fn]
	return f, ok && f != nil
}

// Functions returns the translated functions in discovery order.
func (p *Program) Functions() []*ssa.Function {
	return p.order
}

// Panic returns the panic instruction leading to target location l.
func (p *Program) Panic(l cfa.Location) (*ssa.Panic, bool) {
	insn, ok := p.panics[l.ID()]
	return insn, ok
}

// Position returns the source position of the panic at l.
func (p *Program) Position(l cfa.Location) token.Position {
	insn, ok := p.panics[l.ID()]
	if !ok || p.prog == nil {
		return token.Position{}
	}
	return p.prog.Fset.Position(insn.Pos())
}
