// Package graph runs graph algorithms over anything with an edge relation:
// reachability graphs, block call graphs and control-flow automata. Nodes
// are compared with ==.
package graph

// Graph is given by its edge relation. The successors of a node are
// computed once and then cached.
type Graph[T comparable] struct {
	edgesOf func(node T) []T
	cache   map[T][]T
}

func Of[T comparable](edgesOf func(node T) []T) Graph[T] {
	return Graph[T]{edgesOf: edgesOf, cache: make(map[T][]T)}
}

func (G Graph[T]) Edges(node T) []T {
	if es, found := G.cache[node]; found {
		return es
	}
	es := G.edgesOf(node)
	G.cache[node] = es
	return es
}

// Nodes returns every node reachable from starts in breadth-first order.
func (G Graph[T]) Nodes(starts ...T) (res []T) {
	G.BFSV(func(node T) bool {
		res = append(res, node)
		return false
	}, starts...)
	return
}
