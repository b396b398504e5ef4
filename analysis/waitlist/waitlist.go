// Package waitlist implements the frontier of the reachability analysis.
package waitlist

import (
	"errors"

	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/hmap"
)

// ErrEmptyWaitlist is returned by Pop on an empty waitlist. Correct
// exploration loops never observe it.
var ErrEmptyWaitlist = errors.New("pop from empty waitlist")

// Waitlist holds the states waiting to be expanded.
type Waitlist interface {
	Add(cpa.State)
	Pop() (cpa.State, error)
	Contains(cpa.State) bool
	// Remove deletes s. Returns whether s was waiting.
	Remove(cpa.State) bool
	IsEmpty() bool
	Size() int
}

// Factory creates empty waitlists.
type Factory func() Waitlist

// simple is a waitlist popping from the front or the back of the insertion
// sequence.
type simple struct {
	list  []cpa.State
	count *hmap.Map[cpa.State, int]
	lifo  bool
}

func newSimple(lifo bool) *simple {
	return &simple{
		count: hmap.NewMap[int, cpa.State](utils.HashableHasher[cpa.State]()),
		lifo:  lifo,
	}
}

// FIFO explores breadth-first.
func FIFO() Waitlist { return newSimple(false) }

// LIFO explores depth-first.
func LIFO() Waitlist { return newSimple(true) }

func (w *simple) Add(s cpa.State) {
	w.list = append(w.list, s)
	n, _ := w.count.GetOk(s)
	w.count.Set(s, n+1)
}

func (w *simple) Pop() (cpa.State, error) {
	if len(w.list) == 0 {
		return nil, ErrEmptyWaitlist
	}

	var s cpa.State
	if w.lifo {
		s = w.list[len(w.list)-1]
		w.list = w.list[:len(w.list)-1]
	} else {
		s = w.list[0]
		w.list = w.list[1:]
	}
	w.forget(s)
	return s, nil
}

func (w *simple) forget(s cpa.State) {
	if n := w.count.Get(s); n > 1 {
		w.count.Set(s, n-1)
	} else {
		w.count.Delete(s)
	}
}

func (w *simple) Contains(s cpa.State) bool {
	_, found := w.count.GetOk(s)
	return found
}

func (w *simple) Remove(s cpa.State) bool {
	if !w.Contains(s) {
		return false
	}
	for i, x := range w.list {
		if x.Equal(s) {
			w.list = append(w.list[:i:i], w.list[i+1:]...)
			break
		}
	}
	w.forget(s)
	return true
}

func (w *simple) IsEmpty() bool { return len(w.list) == 0 }
func (w *simple) Size() int     { return len(w.list) }
