package graph

// SCC indexes a strongly connected component.
type SCC = int

// SCCDecomposition is the condensation of the part of a graph reachable
// from some start nodes. Components are numbered in reverse topological
// order: edges leaving component i only reach components j < i.
type SCCDecomposition[T comparable] struct {
	Components [][]T
	Original   Graph[T]
	comp       map[T]SCC
}

// ComponentOf returns the component of node, or -1 if node was not
// reached.
func (scc SCCDecomposition[T]) ComponentOf(node T) SCC {
	if c, ok := scc.comp[node]; ok {
		return c
	}
	return -1
}

// SCC computes the strongly connected components with Tarjan's algorithm.
func (G Graph[T]) SCC(starts []T) SCCDecomposition[T] {
	res := SCCDecomposition[T]{Original: G, comp: make(map[T]SCC)}

	type frame struct {
		index, low int
	}
	var (
		frames = make(map[T]*frame)
		stack  []T
		visit  func(T) int
	)
	visit = func(node T) int {
		fr := &frame{index: len(frames), low: len(frames)}
		frames[node] = fr
		stack = append(stack, node)

		for _, next := range G.Edges(node) {
			if _, done := res.comp[next]; done {
				continue
			}
			var low int
			if nf, seen := frames[next]; seen {
				low = nf.index
			} else {
				low = visit(next)
			}
			fr.low = min(fr.low, low)
		}

		if fr.low == fr.index {
			var members []T
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				res.comp[top] = len(res.Components)
				members = append(members, top)
				if top == node {
					break
				}
			}
			res.Components = append(res.Components, members)
		}
		return fr.low
	}

	for _, node := range starts {
		if _, seen := frames[node]; !seen {
			visit(node)
		}
	}
	return res
}

// IsCyclic reports whether the component contains a cycle, i.e. it has more
// than one node or its single node has a self-loop.
func (scc SCCDecomposition[T]) IsCyclic(c SCC) bool {
	nodes := scc.Components[c]
	if len(nodes) > 1 {
		return true
	}
	for _, next := range scc.Original.Edges(nodes[0]) {
		if next == nodes[0] {
			return true
		}
	}
	return false
}

// ToGraph returns the graph between components.
func (scc SCCDecomposition[T]) ToGraph() Graph[SCC] {
	return Of(func(c SCC) (res []SCC) {
		seen := map[SCC]bool{c: true}
		for _, node := range scc.Components[c] {
			for _, next := range scc.Original.Edges(node) {
				if nc := scc.ComponentOf(next); !seen[nc] {
					seen[nc] = true
					res = append(res, nc)
				}
			}
		}
		return
	})
}
