package cfa

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownFunction   = errors.New("unknown function")
	ErrDuplicateFunction = errors.New("function declared twice")
	ErrForeignLocation   = errors.New("location does not belong to this automaton")
)

// Graph is a mutable control-flow automaton. Location identifiers are
// allocated by the graph itself.
type Graph struct {
	nodes     []*Node
	out       map[int][]Edge
	in        map[int][]Edge
	functions map[string]*Function
	targets   map[int]bool
}

func NewGraph() *Graph {
	return &Graph{
		out:       make(map[int][]Edge),
		in:        make(map[int][]Edge),
		functions: make(map[string]*Function),
		targets:   make(map[int]bool),
	}
}

// NewLocation allocates a fresh location inside function fun.
func (g *Graph) NewLocation(fun, label string) *Node {
	n := &Node{id: len(g.nodes), fun: fun, label: label}
	g.nodes = append(g.nodes, n)
	return n
}

// NewFunction allocates the entry and exit locations of a function.
func (g *Graph) NewFunction(name string) (*Function, error) {
	if _, found := g.functions[name]; found {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}

	f := &Function{
		Name:  name,
		Entry: g.NewLocation(name, name+" entry"),
		Exit:  g.NewLocation(name, name+" exit"),
	}
	g.functions[name] = f
	return f, nil
}

func (g *Graph) Function(name string) (*Function, bool) {
	f, ok := g.functions[name]
	return f, ok
}

// Functions returns all functions sorted by name.
func (g *Graph) Functions() []*Function {
	res := make([]*Function, 0, len(g.functions))
	for _, f := range g.functions {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func (g *Graph) owns(l Location) bool {
	n, ok := l.(*Node)
	return ok && n.id < len(g.nodes) && g.nodes[n.id] == n
}

// AddEdge inserts e. Both endpoints must have been allocated by g.
func (g *Graph) AddEdge(e Edge) error {
	for _, l := range []Location{e.Pred(), e.Succ()} {
		if !g.owns(l) {
			return fmt.Errorf("%w: %v", ErrForeignLocation, l)
		}
	}
	if call, ok := e.(CallEdge); ok && !g.owns(call.ReturnSite) {
		return fmt.Errorf("%w: %v", ErrForeignLocation, call.ReturnSite)
	}

	from, to := e.Pred().ID(), e.Succ().ID()
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return nil
}

func (g *Graph) Blank(from, to *Node) error {
	return g.AddEdge(BlankEdge{From: from, To: to})
}

func (g *Graph) Statement(from, to *Node, stmt string) error {
	return g.AddEdge(StatementEdge{From: from, To: to, Stmt: stmt})
}

// Assume adds both branches of a condition.
func (g *Graph) Assume(from, then, els *Node, cond string) error {
	if err := g.AddEdge(AssumeEdge{From: from, To: then, Cond: cond, Truth: true}); err != nil {
		return err
	}
	return g.AddEdge(AssumeEdge{From: from, To: els, Cond: cond, Truth: false})
}

// Call connects a call site to the callee's entry, and the callee's exit to
// the return site.
func (g *Graph) Call(from *Node, callee string, returnSite *Node) error {
	f, ok := g.functions[callee]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, callee)
	}

	if err := g.AddEdge(CallEdge{
		From:       from,
		To:         f.Entry,
		Callee:     callee,
		ReturnSite: returnSite,
	}); err != nil {
		return err
	}
	return g.AddEdge(ReturnEdge{From: f.Exit, To: returnSite, Callee: callee})
}

func (g *Graph) Out(l Location) []Edge {
	return g.out[l.ID()]
}

func (g *Graph) In(l Location) []Edge {
	return g.in[l.ID()]
}

// Locations returns all locations in allocation order.
func (g *Graph) Locations() []*Node {
	return g.nodes
}

func (g *Graph) Location(id int) (*Node, bool) {
	if id < 0 || id >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], true
}

func (g *Graph) MarkTarget(l Location) {
	g.targets[l.ID()] = true
}

func (g *Graph) IsTargetLocation(l Location) bool {
	return g.targets[l.ID()]
}

var (
	_ CFA           = (*Graph)(nil)
	_ TargetLocator = (*Graph)(nil)
)
