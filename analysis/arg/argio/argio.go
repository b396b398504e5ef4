// Package argio stores the skeleton of a reachability graph: node labels,
// locations and relations. States themselves are not serialized.
package argio

import (
	"encoding/gob"
	"errors"
	"io"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/klauspost/compress/s2"
)

// Snapshot is the serializable form of a graph.
type Snapshot struct {
	Nodes []Node
}

// Node is the serializable form of one live node.
type Node struct {
	ID        int
	State     string
	Location  int
	Parents   []Parent
	CoveredBy int
	Root      bool
	Target    bool
}

// Parent is a labelled parent edge.
type Parent struct {
	ID   int
	Edge string
}

// Take builds the snapshot of g. Nodes without a location get -1.
func Take(g *arg.Graph) Snapshot {
	var snap Snapshot
	g.ForEach(func(id arg.NodeID) bool {
		s := g.State(id)
		n := Node{
			ID:        int(id),
			State:     s.String(),
			Location:  -1,
			CoveredBy: -1,
			Root:      g.IsRoot(id),
			Target:    g.IsTarget(id),
		}
		if l, ok := cpa.LocationOf(s); ok {
			n.Location = l.ID()
		}
		if by, covered := g.CoveredBy(id); covered {
			n.CoveredBy = int(by)
		}
		for _, l := range g.Parents(id) {
			n.Parents = append(n.Parents, Parent{ID: int(l.Node), Edge: l.Edge.String()})
		}
		snap.Nodes = append(snap.Nodes, n)
		return true
	})
	return snap
}

// Encode writes the s2-compressed gob encoding of the snapshot of g.
func Encode(w io.Writer, g *arg.Graph) (err error) {
	writer := s2.NewWriter(w)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return gob.NewEncoder(writer).Encode(Take(g))
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	err := gob.NewDecoder(s2.NewReader(r)).Decode(&snap)
	return snap, err
}
