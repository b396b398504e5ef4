package arg

import (
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils/graph"
)

// IsLive reports whether id denotes a node that was not removed.
func (g *Graph) IsLive(id NodeID) bool {
	_, err := g.get(id)
	return err == nil
}

// State returns the state of a live node, or nil.
func (g *Graph) State(id NodeID) cpa.State {
	if n, err := g.get(id); err == nil {
		return n.state
	}
	return nil
}

// Precision returns the precision of a live node, or nil.
func (g *Graph) Precision(id NodeID) cpa.Precision {
	if n, err := g.get(id); err == nil {
		return n.prec
	}
	return nil
}

func (g *Graph) Parents(id NodeID) []Link {
	if n, err := g.get(id); err == nil {
		return append([]Link(nil), n.parents...)
	}
	return nil
}

func (g *Graph) Children(id NodeID) []Link {
	if n, err := g.get(id); err == nil {
		return append([]Link(nil), n.children...)
	}
	return nil
}

// CoveredBy returns the node covering id.
func (g *Graph) CoveredBy(id NodeID) (NodeID, bool) {
	if n, err := g.get(id); err == nil && n.coveredBy != NoNode {
		return n.coveredBy, true
	}
	return NoNode, false
}

// Covering returns the nodes covered by id.
func (g *Graph) Covering(id NodeID) []NodeID {
	if n, err := g.get(id); err == nil {
		return append([]NodeID(nil), n.covering...)
	}
	return nil
}

func (g *Graph) IsCovered(id NodeID) bool {
	_, covered := g.CoveredBy(id)
	return covered
}

func (g *Graph) IsTarget(id NodeID) bool {
	n, err := g.get(id)
	return err == nil && n.target
}

func (g *Graph) IsRoot(id NodeID) bool {
	n, err := g.get(id)
	return err == nil && n.root
}

func (g *Graph) Roots() []NodeID {
	return append([]NodeID(nil), g.roots...)
}

// Len is the number of live nodes.
func (g *Graph) Len() int {
	return g.live
}

// ForEach visits the live nodes in creation order until do returns false.
func (g *Graph) ForEach(do func(NodeID) bool) {
	for i := range g.nodes {
		if !g.nodes[i].removed && !do(NodeID(i)) {
			return
		}
	}
}

// Targets returns the live target nodes in creation order.
func (g *Graph) Targets() (res []NodeID) {
	g.ForEach(func(id NodeID) bool {
		if g.nodes[id].target {
			res = append(res, id)
		}
		return true
	})
	return
}

// ToGraph exposes the parent-child relation to the generic graph algorithms.
func (g *Graph) ToGraph() graph.Graph[NodeID] {
	return graph.Of(func(id NodeID) (res []NodeID) {
		for _, l := range g.Children(id) {
			res = append(res, l.Node)
		}
		return
	})
}
