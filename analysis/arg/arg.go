// Package arg implements the abstract reachability graph: the explored
// states, the edges that produced them and the covering relation.
//
// Nodes live in an arena owned by the Graph and are addressed by NodeID.
// Parent, child and covering references are indices into the arena, so
// removing a node never requires the cooperation of other nodes.
package arg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
)

// NodeID addresses a node of a Graph.
type NodeID int

// NoNode is the absent node.
const NoNode NodeID = -1

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrRemovedNode    = errors.New("node was removed")
	ErrAlreadyCovered = errors.New("node is already covered")
	ErrSelfCover      = errors.New("node cannot cover itself")
	ErrCoveredCoverer = errors.New("covered nodes cannot cover other nodes")
	ErrNoTrace        = errors.New("no path to a root")
)

// Link is an edge of the graph, labelled by the CFA edge that produced it.
type Link struct {
	Node NodeID
	Edge cfa.Edge
}

type node struct {
	state     cpa.State
	prec      cpa.Precision
	parents   []Link
	children  []Link
	coveredBy NodeID
	covering  []NodeID
	root      bool
	target    bool
	removed   bool
}

// Graph is an arena of reachability graph nodes.
type Graph struct {
	nodes []node
	roots []NodeID
	live  int
}

func New() *Graph {
	return &Graph{}
}

func (g *Graph) get(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	n := &g.nodes[id]
	if n.removed {
		return nil, fmt.Errorf("%w: %d", ErrRemovedNode, id)
	}
	return n, nil
}

func (g *Graph) alloc(s cpa.State, p cpa.Precision) NodeID {
	g.nodes = append(g.nodes, node{
		state:     s,
		prec:      p,
		coveredBy: NoNode,
	})
	g.live++
	return NodeID(len(g.nodes) - 1)
}

// AddRoot adds a node without parents.
func (g *Graph) AddRoot(s cpa.State, p cpa.Precision) NodeID {
	id := g.alloc(s, p)
	g.nodes[id].root = true
	g.roots = append(g.roots, id)
	return id
}

// AddChild adds a successor of parent, produced along e.
func (g *Graph) AddChild(parent NodeID, s cpa.State, p cpa.Precision, e cfa.Edge) (NodeID, error) {
	if _, err := g.get(parent); err != nil {
		return NoNode, err
	}

	id := g.alloc(s, p)
	g.link(parent, id, e)
	return id, nil
}

// AddParent adds an edge from parent to an existing child. Merging gives
// nodes several parents.
func (g *Graph) AddParent(child, parent NodeID, e cfa.Edge) error {
	c, err := g.get(child)
	if err != nil {
		return err
	}
	if _, err := g.get(parent); err != nil {
		return err
	}

	for _, l := range c.parents {
		if l.Node == parent && l.Edge == e {
			return nil
		}
	}
	g.link(parent, child, e)
	return nil
}

func (g *Graph) link(parent, child NodeID, e cfa.Edge) {
	g.nodes[parent].children = append(g.nodes[parent].children, Link{child, e})
	g.nodes[child].parents = append(g.nodes[child].parents, Link{parent, e})
}

// ReplaceState swaps the state of a node, e.g. after a join merge.
func (g *Graph) ReplaceState(id NodeID, s cpa.State) error {
	n, err := g.get(id)
	if err != nil {
		return err
	}
	n.state = s
	return nil
}

func (g *Graph) SetPrecision(id NodeID, p cpa.Precision) error {
	n, err := g.get(id)
	if err != nil {
		return err
	}
	n.prec = p
	return nil
}

func (g *Graph) MarkTarget(id NodeID) error {
	n, err := g.get(id)
	if err != nil {
		return err
	}
	n.target = true
	return nil
}

// Cover marks covered as subsumed by the node by. A node is covered by at
// most one node, and covered nodes do not cover others.
func (g *Graph) Cover(covered, by NodeID) error {
	if covered == by {
		return ErrSelfCover
	}
	a, err := g.get(covered)
	if err != nil {
		return err
	}
	b, err := g.get(by)
	if err != nil {
		return err
	}

	switch {
	case a.coveredBy != NoNode:
		return fmt.Errorf("%w: %d by %d", ErrAlreadyCovered, covered, a.coveredBy)
	case b.coveredBy != NoNode:
		return fmt.Errorf("%w: %d", ErrCoveredCoverer, by)
	}

	a.coveredBy = by
	b.covering = append(b.covering, covered)
	return nil
}

// Uncover clears the covering of id, if any.
func (g *Graph) Uncover(id NodeID) error {
	n, err := g.get(id)
	if err != nil {
		return err
	}
	if n.coveredBy == NoNode {
		return nil
	}

	b := &g.nodes[n.coveredBy]
	b.covering = without(b.covering, id)
	n.coveredBy = NoNode
	return nil
}

func without(ids []NodeID, id NodeID) []NodeID {
	res := ids[:0]
	for _, x := range ids {
		if x != id {
			res = append(res, x)
		}
	}
	return res
}

func withoutLinksTo(ls []Link, id NodeID) []Link {
	res := ls[:0]
	for _, l := range ls {
		if l.Node != id {
			res = append(res, l)
		}
	}
	return res
}

// Remove deletes the given nodes. Non-root nodes left without parents are
// removed as well. Nodes covered by a removed node are uncovered: they are
// returned as reopened and must be explored again.
func (g *Graph) Remove(ids ...NodeID) (removed, reopened []NodeID) {
	queue := append([]NodeID(nil), ids...)
	uncovered := map[NodeID]bool{}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n, err := g.get(id)
		if err != nil {
			continue
		}
		n.removed = true
		g.live--
		removed = append(removed, id)

		for _, p := range n.parents {
			parent := &g.nodes[p.Node]
			parent.children = withoutLinksTo(parent.children, id)
		}
		for _, c := range n.children {
			child := &g.nodes[c.Node]
			if child.removed {
				continue
			}
			child.parents = withoutLinksTo(child.parents, id)
			if len(child.parents) == 0 && !child.root {
				queue = append(queue, c.Node)
			}
		}

		if n.coveredBy != NoNode {
			b := &g.nodes[n.coveredBy]
			b.covering = without(b.covering, id)
		}
		for _, a := range n.covering {
			g.nodes[a].coveredBy = NoNode
			uncovered[a] = true
		}

		if n.root {
			g.roots = without(g.roots, id)
		}
		n.parents, n.children, n.covering = nil, nil, nil
		n.coveredBy = NoNode
	}

	for a := range uncovered {
		if !g.nodes[a].removed {
			reopened = append(reopened, a)
		}
	}
	sort.Slice(reopened, func(i, j int) bool { return reopened[i] < reopened[j] })
	return
}
