package arg

import (
	"fmt"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
)

// Step is one node of a trace together with the CFA edge leading into it.
// The edge of the first step is nil.
type Step struct {
	Node  NodeID
	State cpa.State
	Edge  cfa.Edge
}

// Trace reconstructs a path from a root to id along parent edges. Nodes with
// several parents continue with the parent created first.
// The path stops at the first root encountered.
func (g *Graph) Trace(id NodeID) ([]Step, error) {
	var rev []Step
	visited := map[NodeID]bool{}

	for cur := id; ; {
		n, err := g.get(cur)
		if err != nil {
			return nil, err
		}
		visited[cur] = true
		rev = append(rev, Step{Node: cur, State: n.state})

		if n.root {
			break
		}

		next := NoNode
		var edge cfa.Edge
		for _, l := range n.parents {
			if !visited[l.Node] && (next == NoNode || l.Node < next) {
				next, edge = l.Node, l.Edge
			}
		}
		if next == NoNode {
			return nil, fmt.Errorf("%w: no unvisited parent of %d", ErrNoTrace, cur)
		}
		rev[len(rev)-1].Edge = edge
		cur = next
	}

	steps := make([]Step, len(rev))
	for i, s := range rev {
		steps[len(rev)-1-i] = s
	}
	return steps, nil
}
