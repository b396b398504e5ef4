// Package worklist provides a FIFO queue for fixed-point iterations that
// discover their own work.
package worklist

// Worklist is a FIFO queue of pending work items. Items are consumed from
// head; the backing slice is compacted once more than half of it is spent.
type Worklist[T any] struct {
	list []T
	head int
}

// Start processes start and everything added while processing it.
func Start[T any](start T, do func(next T, add func(el T))) {
	StartV([]T{start}, do)
}

// StartV processes a preloaded queue and everything added while processing
// it.
func StartV[T any](start []T, do func(next T, add func(el T))) {
	W := Empty[T]()
	for _, e := range start {
		W.Add(e)
	}
	W.Process(do)
}

func Empty[T any]() Worklist[T] {
	return Worklist[T]{}
}

// GetNext removes the oldest item. It returns the zero value on an empty
// worklist.
func (w *Worklist[T]) GetNext() (ret T) {
	if w.IsEmpty() {
		return
	}
	ret = w.list[w.head]
	var zero T
	w.list[w.head] = zero
	w.head++

	if w.head == len(w.list) {
		w.list, w.head = w.list[:0], 0
	} else if w.head > len(w.list)/2 {
		n := copy(w.list, w.list[w.head:])
		w.list, w.head = w.list[:n], 0
	}
	return
}

func (w *Worklist[T]) IsEmpty() bool { return w.Len() == 0 }
func (w *Worklist[T]) Len() int      { return len(w.list) - w.head }

func (w *Worklist[T]) Add(el T) {
	w.list = append(w.list, el)
}

// Process consumes items until the worklist is empty.
func (w *Worklist[T]) Process(do func(next T, add func(element T))) {
	w.ProcessUntil(func(next T, add func(T)) bool {
		do(next, add)
		return false
	})
}

// ProcessUntil consumes items until the worklist is empty or do asks to
// stop. It reports whether it stopped early.
func (w *Worklist[T]) ProcessUntil(do func(next T, add func(element T)) (stop bool)) bool {
	for !w.IsEmpty() {
		if do(w.GetNext(), w.Add) {
			return true
		}
	}
	return false
}
