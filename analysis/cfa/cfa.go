// Package cfa describes control-flow automata as consumed by the
// reachability engine: locations connected by labelled edges.
package cfa

import "fmt"

// Location is a node of a control-flow automaton.
type Location interface {
	// ID is unique among the locations of one automaton.
	ID() int
	// Function is the name of the function containing the location.
	Function() string
	String() string
}

// CFA is a read-only view of a control-flow automaton.
type CFA interface {
	Out(Location) []Edge
	In(Location) []Edge
}

// TargetLocator is implemented by automata that mark error locations.
type TargetLocator interface {
	IsTargetLocation(Location) bool
}

// Node is the Location implementation of Graph.
type Node struct {
	id    int
	fun   string
	label string
}

func (n *Node) ID() int          { return n.id }
func (n *Node) Function() string { return n.fun }

func (n *Node) String() string {
	if n.label == "" {
		return fmt.Sprintf("N%d", n.id)
	}
	return fmt.Sprintf("N%d(%s)", n.id, n.label)
}

// Function records the boundary locations of a function.
type Function struct {
	Name        string
	Entry, Exit *Node
}
