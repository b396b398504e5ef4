package waitlist

import (
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils/pq"
)

// SortKey derives the priority of a state. Smaller keys are popped first.
type SortKey func(cpa.State) int

// Sorted pops states in non-decreasing key order. States with equal keys are
// kept in a waitlist created by secondary, which decides among them.
func Sorted(key SortKey, secondary Factory) Factory {
	return func() Waitlist {
		return &sorted{
			key:       key,
			secondary: secondary,
			keys:      pq.Empty(func(a, b int) bool { return a < b }),
			buckets:   make(map[int]Waitlist),
		}
	}
}

type sorted struct {
	key       SortKey
	secondary Factory
	keys      pq.PriorityQueue[int]
	buckets   map[int]Waitlist
	size      int
}

func (w *sorted) Add(s cpa.State) {
	k := w.key(s)
	b, found := w.buckets[k]
	if !found {
		b = w.secondary()
		w.buckets[k] = b
		w.keys.Add(k)
	}
	b.Add(s)
	w.size++
}

func (w *sorted) Pop() (cpa.State, error) {
	if w.keys.IsEmpty() {
		return nil, ErrEmptyWaitlist
	}

	k := w.keys.Peek()
	b := w.buckets[k]
	s, err := b.Pop()
	if err != nil {
		return nil, err
	}
	if b.IsEmpty() {
		w.drop(k)
	}
	w.size--
	return s, nil
}

func (w *sorted) drop(k int) {
	delete(w.buckets, k)
	w.keys.Remove(k)
}

func (w *sorted) Contains(s cpa.State) bool {
	b, found := w.buckets[w.key(s)]
	return found && b.Contains(s)
}

func (w *sorted) Remove(s cpa.State) bool {
	k := w.key(s)
	b, found := w.buckets[k]
	if !found || !b.Remove(s) {
		return false
	}
	if b.IsEmpty() {
		w.drop(k)
	}
	w.size--
	return true
}

func (w *sorted) IsEmpty() bool { return w.size == 0 }
func (w *sorted) Size() int     { return w.size }

// CallstackDepth orders by call stack depth, shallow states first.
// States without a call stack have depth 0.
func CallstackDepth(s cpa.State) int {
	if d, ok := cpa.Extract[cpa.CallstackDepther](s); ok {
		return d.CallstackDepth()
	}
	return 0
}

// LoopIterations orders by loop iteration count, fewer iterations first.
func LoopIterations(s cpa.State) int {
	if c, ok := cpa.Extract[cpa.LoopIterationCounter](s); ok {
		return c.LoopIterations()
	}
	return 0
}

// Reverse pops larger keys first.
func Reverse(key SortKey) SortKey {
	return func(s cpa.State) int { return -key(s) }
}
