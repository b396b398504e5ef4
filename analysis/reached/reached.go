// Package reached implements the reached set: every state discovered by the
// exploration together with its precision, the waiting subset, and the
// reachability graph connecting them.
//
// A Set is safe for concurrent use. Enumerations return snapshots, so merge
// and stop operators never iterate over live storage.
package reached

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/waitlist"
	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/hmap"
)

var (
	ErrNotReached = errors.New("state is not in the reached set")
	ErrNotCovered = errors.New("node is not covered")
)

// Entry is a snapshot of one reached state.
type Entry struct {
	Node      arg.NodeID
	State     cpa.State
	Precision cpa.Precision
	Waiting   bool
}

type Set struct {
	mu sync.RWMutex

	graph   *arg.Graph
	ids     *hmap.Map[cpa.State, arg.NodeID]
	waiting waitlist.Waitlist
	// Reached nodes partitioned by location id. States without a location
	// are kept under noLocation.
	byLoc map[int][]arg.NodeID
	last  arg.NodeID
}

const noLocation = -1

// New creates an empty reached set whose waiting states are ordered by the
// waitlists created by f.
func New(f waitlist.Factory) *Set {
	return &Set{
		graph:   arg.New(),
		ids:     hmap.NewMap[arg.NodeID, cpa.State](utils.HashableHasher[cpa.State]()),
		waiting: f(),
		byLoc:   make(map[int][]arg.NodeID),
		last:    arg.NoNode,
	}
}

func locKey(s cpa.State) int {
	if l, ok := cpa.LocationOf(s); ok {
		return l.ID()
	}
	return noLocation
}

func (r *Set) index(id arg.NodeID, s cpa.State) {
	r.ids.Set(s, id)
	k := locKey(s)
	r.byLoc[k] = append(r.byLoc[k], id)
	r.last = id
}

func (r *Set) unindex(id arg.NodeID, s cpa.State) {
	r.ids.Delete(s)
	k := locKey(s)
	ids := r.byLoc[k]
	for i, x := range ids {
		if x == id {
			r.byLoc[k] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byLoc[k]) == 0 {
		delete(r.byLoc, k)
	}
	r.waiting.Remove(s)
	if r.last == id {
		r.last = arg.NoNode
	}
}

// Graph exposes the reachability graph. Callers must not modify it, and must
// not read it while other goroutines add to the set.
func (r *Set) Graph() *arg.Graph {
	return r.graph
}

// AddRoot inserts an initial state as waiting. A root equal to a reached
// state is not inserted again.
func (r *Set) AddRoot(s cpa.State, p cpa.Precision) arg.NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, found := r.ids.GetOk(s); found {
		return id
	}
	id := r.graph.AddRoot(s, p)
	r.index(id, s)
	r.waiting.Add(s)
	return id
}

// Add inserts s, produced from parent along e, as waiting. If an equal state
// is already reached, parent becomes an additional parent of that state and
// added is false.
func (r *Set) Add(parent arg.NodeID, s cpa.State, p cpa.Precision, e cfa.Edge) (id arg.NodeID, added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, found := r.ids.GetOk(s); found {
		return id, false, r.graph.AddParent(id, parent, e)
	}

	if id, err = r.graph.AddChild(parent, s, p, e); err != nil {
		return arg.NoNode, false, err
	}
	r.index(id, s)
	r.waiting.Add(s)
	return id, true, nil
}

// AddCovered records that s, produced from parent along e, was stopped by the
// reached node by. The state only lives in the graph, where it may be
// reopened if by is removed.
func (r *Set) AddCovered(parent arg.NodeID, s cpa.State, p cpa.Precision, e cfa.Edge, by arg.NodeID) (arg.NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.graph.AddChild(parent, s, p, e)
	if err != nil {
		return arg.NoNode, err
	}
	return id, r.graph.Cover(id, by)
}

// Cover marks the reached node a as covered by the reached node b. The
// state of a leaves the reached set and the waitlist but stays in the graph
// for traces. Nodes covered by a are covered by b instead.
func (r *Set) Cover(a, b arg.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sa, err := r.reachedState(a)
	if err != nil {
		return err
	}
	if _, err := r.reachedState(b); err != nil {
		return err
	}
	if err := r.graph.Cover(a, b); err != nil {
		return err
	}
	for _, c := range r.graph.Covering(a) {
		if err := r.graph.Uncover(c); err != nil {
			return err
		}
		if err := r.graph.Cover(c, b); err != nil {
			return err
		}
	}
	r.unindex(a, sa)
	return nil
}

// Uncover makes the covered node a reached and waiting again. If its state
// equals a reached state, a is covered by that node instead.
func (r *Set) Uncover(a arg.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.graph.IsCovered(a) {
		return fmt.Errorf("%w: %d", ErrNotCovered, a)
	}
	if err := r.graph.Uncover(a); err != nil {
		return err
	}
	return r.reinstate(a)
}

func (r *Set) reachedState(id arg.NodeID) (cpa.State, error) {
	s := r.graph.State(id)
	if s == nil {
		return nil, fmt.Errorf("%w: node %d", ErrNotReached, id)
	}
	if x, found := r.ids.GetOk(s); !found || x != id {
		return nil, fmt.Errorf("%w: node %d", ErrNotReached, id)
	}
	return s, nil
}

// reinstate indexes and queues the uncovered node id.
func (r *Set) reinstate(id arg.NodeID) error {
	s := r.graph.State(id)
	if other, found := r.ids.GetOk(s); found {
		return r.graph.Cover(id, other)
	}
	r.index(id, s)
	r.waiting.Add(s)
	return nil
}

// Replace swaps the state of node id for merged, produced by merging a
// successor of parent along e into it. The node is queued again. If merged
// equals another reached state, that node is returned instead and the set
// is unchanged apart from the new parent edge.
func (r *Set) Replace(id arg.NodeID, merged cpa.State, parent arg.NodeID, e cfa.Edge) (arg.NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if other, found := r.ids.GetOk(merged); found {
		return other, r.graph.AddParent(other, parent, e)
	}

	old := r.graph.State(id)
	if old == nil {
		return arg.NoNode, fmt.Errorf("%w: node %d", ErrNotReached, id)
	}
	if err := r.graph.ReplaceState(id, merged); err != nil {
		return arg.NoNode, err
	}
	r.unindex(id, old)
	r.index(id, merged)
	r.waiting.Add(merged)
	return id, r.graph.AddParent(id, parent, e)
}

// Pop removes the next waiting state.
func (r *Set) Pop() (cpa.State, cpa.Precision, arg.NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.waiting.Pop()
	if err != nil {
		return nil, nil, arg.NoNode, err
	}
	id := r.ids.Get(s)
	return s, r.graph.Precision(id), id, nil
}

// Reopen queues the reached state s again.
func (r *Set) Reopen(s cpa.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.ids.GetOk(s); !found {
		return fmt.Errorf("%w: %v", ErrNotReached, s)
	}
	if !r.waiting.Contains(s) {
		r.waiting.Add(s)
	}
	return nil
}

// SetPrecision updates the precision of a reached state.
func (r *Set) SetPrecision(s cpa.State, p cpa.Precision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, found := r.ids.GetOk(s)
	if !found {
		return fmt.Errorf("%w: %v", ErrNotReached, s)
	}
	return r.graph.SetPrecision(id, p)
}

func (r *Set) MarkTarget(id arg.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.MarkTarget(id)
}

// Remove deletes the given reached states and their orphaned descendants.
// States covered by a removed state are reopened: they become reached and
// waiting again, unless an equal state is already reached, which then
// covers them.
func (r *Set) Remove(states ...cpa.State) (removed []cpa.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []arg.NodeID
	for _, s := range states {
		if id, found := r.ids.GetOk(s); found {
			ids = append(ids, id)
		}
	}
	return r.remove(ids)
}

// RemoveNodes is Remove addressed by graph nodes.
func (r *Set) RemoveNodes(ids ...arg.NodeID) (removed []cpa.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(ids)
}

func (r *Set) remove(ids []arg.NodeID) (removed []cpa.State) {
	// The graph forgets the states of removed nodes, and the cascade may
	// reach any descendant.
	states := make(map[arg.NodeID]cpa.State, r.graph.Len())
	r.graph.ForEach(func(id arg.NodeID) bool {
		states[id] = r.graph.State(id)
		return true
	})

	gone, reopened := r.graph.Remove(ids...)
	for _, id := range gone {
		s := states[id]
		if x, found := r.ids.GetOk(s); found && x == id {
			r.unindex(id, s)
			removed = append(removed, s)
		}
	}

	for _, id := range reopened {
		// Reopened nodes cover nothing and reached nodes are uncovered.
		if err := r.reinstate(id); err != nil {
			panic(err)
		}
	}
	return
}

// StatesAt returns a snapshot of the reached states at l.
func (r *Set) StatesAt(l cfa.Location) []cpa.State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byLoc[l.ID()]
	res := make([]cpa.State, len(ids))
	for i, id := range ids {
		res[i] = r.graph.State(id)
	}
	return res
}

// EntriesAt returns a snapshot of the reached entries at the location of s.
func (r *Set) EntriesAt(s cpa.State) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byLoc[locKey(s)]
	res := make([]Entry, len(ids))
	for i, id := range ids {
		res[i] = r.entry(id)
	}
	return res
}

func (r *Set) entry(id arg.NodeID) Entry {
	s := r.graph.State(id)
	return Entry{
		Node:      id,
		State:     s,
		Precision: r.graph.Precision(id),
		Waiting:   r.waiting.Contains(s),
	}
}

// Size is the number of reached states.
func (r *Set) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids.Len()
}

func (r *Set) WaitingSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting.Size()
}

func (r *Set) HasWaiting() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.waiting.IsEmpty()
}

func (r *Set) Contains(s cpa.State) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.ids.GetOk(s)
	return found
}

// NodeOf returns the graph node holding s.
func (r *Set) NodeOf(s cpa.State) (arg.NodeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids.GetOk(s)
}

// Precision of a reached state.
func (r *Set) Precision(s cpa.State) (cpa.Precision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, found := r.ids.GetOk(s)
	if !found {
		return nil, false
	}
	return r.graph.Precision(id), true
}

// Last returns the most recently inserted entry that is still reached.
func (r *Set) Last() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == arg.NoNode {
		return Entry{}, false
	}
	return r.entry(r.last), true
}

// Entries returns a snapshot of all reached entries in insertion order.
func (r *Set) Entries() (res []Entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.graph.ForEach(func(id arg.NodeID) bool {
		if x, found := r.ids.GetOk(r.graph.State(id)); found && x == id {
			res = append(res, r.entry(id))
		}
		return true
	})
	return
}

// Targets returns the reached target nodes.
func (r *Set) Targets() []arg.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Targets()
}

// HasViolatedProperties reports whether a target state was reached.
func (r *Set) HasViolatedProperties() bool {
	return len(r.Targets()) > 0
}

// Trace reconstructs the path to node id.
func (r *Set) Trace(id arg.NodeID) ([]arg.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Trace(id)
}

var _ cpa.ReachedView = (*Set)(nil)
