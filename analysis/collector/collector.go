// Package collector records the merges and precision adjustments of an
// exploration, so the history of a reachability graph can be inspected
// after the fact.
package collector

import (
	"fmt"
	"log"
	"sync"

	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
	"github.com/fatih/color"
)

var colorize = struct {
	Merge  func(...interface{}) string
	Adjust func(...interface{}) string
}{
	Merge: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiMagenta).SprintFunc())(is...)
	},
	Adjust: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
}

type Kind int

const (
	Merged Kind = iota
	Adjusted
)

func (k Kind) String() string {
	switch k {
	case Merged:
		return "merge"
	case Adjusted:
		return "adjust"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one recorded operation. A merge has the new successor and the
// reached state as inputs, an adjustment the state before adjusting.
type Event struct {
	Seq    int
	Kind   Kind
	Inputs []cpa.State
	Result cpa.State
	Action cpa.Action
}

func (e Event) String() string {
	switch e.Kind {
	case Merged:
		return fmt.Sprintf("#%d %s %v + %v = %v", e.Seq, colorize.Merge(e.Kind), e.Inputs[0], e.Inputs[1], e.Result)
	default:
		return fmt.Sprintf("#%d %s %v -> %v (%v)", e.Seq, colorize.Adjust(e.Kind), e.Inputs[0], e.Result, e.Action)
	}
}

// History is a log of events. It is safe for concurrent use, so one history
// can observe several parallel explorations.
type History struct {
	mu     sync.Mutex
	events []Event
	log    bool
}

func NewHistory(log bool) *History {
	return &History{log: log}
}

func (h *History) record(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e.Seq = len(h.events)
	h.events = append(h.events, e)
	if h.log {
		log.Println(e)
	}
}

// Events returns a snapshot of the recorded events in order.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// Origins returns the events that produced s.
func (h *History) Origins(s cpa.State) (res []Event) {
	for _, e := range h.Events() {
		if e.Result.Equal(s) {
			res = append(res, e)
		}
	}
	return
}

// Merge records every merge of Inner that changes the reached state.
type Merge struct {
	Inner   cpa.MergeOperator
	History *History
}

func (m Merge) Merge(s, r cpa.State, p cpa.Precision) (cpa.State, bool, error) {
	merged, changed, err := m.Inner.Merge(s, r, p)
	if err != nil || !changed {
		return merged, changed, err
	}
	m.History.record(Event{Kind: Merged, Inputs: []cpa.State{s, r}, Result: merged})
	return merged, changed, nil
}

// PrecisionAdjustment records every adjustment of Inner that changes the
// state or the precision, or breaks.
type PrecisionAdjustment struct {
	Inner   cpa.PrecisionAdjustment
	History *History
}

func (pa PrecisionAdjustment) Adjust(s cpa.State, p cpa.Precision, reached cpa.ReachedView) (cpa.Adjustment, error) {
	adj, err := pa.Inner.Adjust(s, p, reached)
	if err != nil {
		return adj, err
	}
	if !adj.State.Equal(s) || !adj.Precision.Equal(p) || adj.Action == cpa.Break {
		pa.History.record(Event{Kind: Adjusted, Inputs: []cpa.State{s}, Result: adj.State, Action: adj.Action})
	}
	return adj, nil
}

// Wrap returns a copy of c whose merges and adjustments are recorded in h.
func Wrap(c *cpa.CPA, h *History) (*cpa.CPA, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cp := *c
	cp.Merge = Merge{Inner: c.Merge, History: h}
	cp.Precision = PrecisionAdjustment{Inner: c.Adjustment(), History: h}
	return &cp, nil
}
