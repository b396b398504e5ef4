package graph

import W "github.com/cs-au-dk/reach/utils/worklist"

// BFSV visits every node reachable from starts in breadth-first order and
// stops as soon as f returns true. It reports whether it stopped early.
func (G Graph[T]) BFSV(f func(node T) (stop bool), starts ...T) bool {
	visited := make(map[T]bool, len(starts))
	queue := W.Empty[T]()
	for _, start := range starts {
		if !visited[start] {
			visited[start] = true
			queue.Add(start)
		}
	}

	return queue.ProcessUntil(func(node T, add func(T)) bool {
		if f(node) {
			return true
		}
		for _, next := range G.Edges(node) {
			if !visited[next] {
				visited[next] = true
				add(next)
			}
		}
		return false
	})
}
