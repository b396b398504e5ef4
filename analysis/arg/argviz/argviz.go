// Package argviz renders reachability graphs as DOT graphs and as text.
package argviz

import (
	"fmt"
	"io"
	"strings"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/dot"
	"github.com/cs-au-dk/reach/utils/graph"
	"github.com/fatih/color"
)

var colorize = struct {
	Node    func(...interface{}) string
	Target  func(...interface{}) string
	Covered func(...interface{}) string
	Edge    func(...interface{}) string
}{
	Node: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Target: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
	Covered: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.Faint).SprintFunc())(is...)
	},
	Edge: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
}

func nodes(g *arg.Graph) (res []arg.NodeID) {
	g.ForEach(func(id arg.NodeID) bool {
		res = append(res, id)
		return true
	})
	return
}

func edgeLabel(g *arg.Graph, from, to arg.NodeID) string {
	var labels []string
	for _, l := range g.Children(from) {
		if l.Node == to {
			labels = append(labels, l.Edge.String())
		}
	}
	return strings.Join(labels, " | ")
}

// ToDot renders the live nodes of g. Covering relations are drawn as dashed
// edges from the covered node to its covering node.
func ToDot(g *arg.Graph, title string) *dot.DotGraph {
	dg := g.ToGraph().ToDotGraph(nodes(g), &graph.VisualizationConfig[arg.NodeID]{
		NodeAttrs: func(id arg.NodeID) (string, dot.DotAttrs) {
			attrs := dot.DotAttrs{
				"label": fmt.Sprintf("%d: %s", id, g.State(id)),
				"shape": "box",
			}
			switch {
			case g.IsTarget(id):
				attrs["fillcolor"] = "tomato"
			case g.IsCovered(id):
				attrs["fillcolor"] = "lightgray"
			}
			return fmt.Sprint(id), attrs
		},
		EdgeAttrs: func(from, to arg.NodeID) dot.DotAttrs {
			return dot.DotAttrs{"label": edgeLabel(g, from, to)}
		},
	})
	dg.Title = title

	byID := map[string]*dot.DotNode{}
	for _, n := range dg.Nodes {
		byID[n.ID] = n
	}
	g.ForEach(func(id arg.NodeID) bool {
		if by, covered := g.CoveredBy(id); covered {
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From:  byID[fmt.Sprint(id)],
				To:    byID[fmt.Sprint(by)],
				Attrs: dot.DotAttrs{"style": "dashed", "constraint": "false"},
			})
		}
		return true
	})
	return dg
}

// Render writes the graph as an image next to outfname.
func Render(g *arg.Graph, title, outfname, format string) (string, error) {
	var sb strings.Builder
	if err := ToDot(g, title).WriteDot(&sb); err != nil {
		return "", err
	}
	return dot.DotToImage(outfname, format, []byte(sb.String()))
}

// WriteText prints one line per live node: its state, its parents and its
// flags.
func WriteText(w io.Writer, g *arg.Graph) error {
	for _, id := range nodes(g) {
		line := fmt.Sprintf("#%d %s", id, colorize.Node(g.State(id)))
		for _, l := range g.Parents(id) {
			line += fmt.Sprintf(" <- #%d [%s]", l.Node, colorize.Edge(l.Edge))
		}
		if g.IsRoot(id) {
			line += " root"
		}
		if g.IsTarget(id) {
			line += " " + colorize.Target("target")
		}
		if by, covered := g.CoveredBy(id); covered {
			line += " " + colorize.Covered(fmt.Sprintf("covered by #%d", by))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
