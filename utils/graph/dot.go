package graph

import (
	"fmt"

	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/dot"
)

var opts = utils.Opts()

type VisualizationConfig[T any] struct {
	// NodeAttrs gives the ID and attributes of the dot node of a node. The
	// ID defaults to the formatted node.
	NodeAttrs func(node T) (string, dot.DotAttrs)
	// ClusterKey groups nodes with equal keys into one cluster.
	ClusterKey func(node T) string
	// ClusterAttrs gives the attributes of the cluster with the given key.
	ClusterAttrs func(key string) dot.DotAttrs
	EdgeAttrs    func(from, to T) dot.DotAttrs
}

// ToDotGraph renders the subgraph induced by nodes. Clusters appear in the
// order of their first node.
func (G Graph[T]) ToDotGraph(nodes []T, cfg *VisualizationConfig[T]) *dot.DotGraph {
	if cfg == nil {
		cfg = &VisualizationConfig[T]{}
	}

	dg := &dot.DotGraph{
		Options: map[string]string{
			"minlen":  fmt.Sprint(opts.Minlen()),
			"nodesep": fmt.Sprint(opts.Nodesep()),
			"rankdir": "TB",
		},
	}

	clusters := map[string]*dot.DotCluster{}
	dnodes := make(map[T]*dot.DotNode, len(nodes))
	for _, node := range nodes {
		dn := &dot.DotNode{ID: fmt.Sprint(node)}
		if cfg.NodeAttrs != nil {
			dn.ID, dn.Attrs = cfg.NodeAttrs(node)
		}
		dnodes[node] = dn

		if cfg.ClusterKey == nil {
			dg.Nodes = append(dg.Nodes, dn)
			continue
		}
		key := cfg.ClusterKey(node)
		cl, found := clusters[key]
		if !found {
			cl = &dot.DotCluster{ID: key}
			if cfg.ClusterAttrs != nil {
				cl.Attrs = cfg.ClusterAttrs(key)
			}
			clusters[key] = cl
			dg.Clusters = append(dg.Clusters, cl)
		}
		cl.Nodes = append(cl.Nodes, dn)
	}

	for _, node := range nodes {
		for _, next := range G.Edges(node) {
			to, found := dnodes[next]
			if !found {
				continue
			}
			e := &dot.DotEdge{From: dnodes[node], To: to}
			if cfg.EdgeAttrs != nil {
				e.Attrs = cfg.EdgeAttrs(node, next)
			}
			dg.Edges = append(dg.Edges, e)
		}
	}
	return dg
}
