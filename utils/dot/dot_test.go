package dot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDot(t *testing.T) {
	a := &DotNode{ID: "a", Attrs: DotAttrs{"label": "entry", "shape": "box"}}
	b := &DotNode{ID: "b"}
	c := &DotNode{ID: "c"}
	g := &DotGraph{
		Title:    "sample",
		Clusters: []*DotCluster{{ID: "f", Nodes: []*DotNode{b}, Attrs: DotAttrs{"label": "f"}}},
		Nodes:    []*DotNode{a, c},
		Edges: []*DotEdge{
			{From: a, To: b, Attrs: DotAttrs{"label": "call f"}},
			{From: b, To: c, Attrs: DotAttrs{"style": "invis"}},
		},
		Options: map[string]string{"minlen": "2"},
	}

	src, err := g.Bytes()
	require.NoError(t, err)
	for _, want := range []string{
		`label="sample";`,
		`rankdir="LR";`,
		`minlen="2"`,
		`subgraph "cluster_f" {`,
		`"a" [ label="entry"; shape="box"; ]`,
		`"a" -> "b" [ label="call f"; ]`,
	} {
		require.Contains(t, string(src), want)
	}
	require.Equal(t, 1, strings.Count(string(src), "subgraph"))

	nodes, edges := g.Size()
	require.Equal(t, 3, nodes)
	require.Equal(t, 1, edges)
}
