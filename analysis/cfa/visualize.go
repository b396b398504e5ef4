package cfa

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/reach/utils/dot"
	"github.com/cs-au-dk/reach/utils/graph"
)

// ToGraph exposes the automaton to the generic graph algorithms.
// Nodes are location identifiers.
func (g *Graph) ToGraph() graph.Graph[int] {
	return graph.Of(func(id int) (res []int) {
		for _, e := range g.out[id] {
			res = append(res, e.Succ().ID())
		}
		return
	})
}

// ToDot renders the automaton with one cluster per function.
func (g *Graph) ToDot() *dot.DotGraph {
	ids := make([]int, len(g.nodes))
	for i := range g.nodes {
		ids[i] = i
	}

	dg := g.ToGraph().ToDotGraph(ids, &graph.VisualizationConfig[int]{
		NodeAttrs: func(id int) (string, dot.DotAttrs) {
			n := g.nodes[id]
			attrs := dot.DotAttrs{"label": n.String()}
			if g.targets[id] {
				attrs["fillcolor"] = "tomato"
			}
			return fmt.Sprint(id), attrs
		},
		ClusterKey: func(id int) string {
			return g.nodes[id].fun
		},
		ClusterAttrs: func(fun string) dot.DotAttrs {
			return dot.DotAttrs{"label": fun}
		},
		EdgeAttrs: func(from, to int) dot.DotAttrs {
			var labels []string
			for _, e := range g.out[from] {
				if e.Succ().ID() == to {
					labels = append(labels, e.String())
				}
			}
			attrs := dot.DotAttrs{"label": strings.Join(labels, " | ")}
			for _, e := range g.out[from] {
				if e.Succ().ID() == to && IsInterprocedural(e) {
					attrs["style"] = "dashed"
				}
			}
			return attrs
		},
	})
	dg.Title = "CFA"
	return dg
}
