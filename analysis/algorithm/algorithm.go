// Package algorithm implements the waitlist-driven reachability algorithm:
// states are popped from the reached set's waitlist, expanded along every
// outgoing edge of their location, merged into and checked against the
// states already reached, and inserted as waiting.
package algorithm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/utils"
	"github.com/fatih/color"
)

var colorize = struct {
	Target func(...interface{}) string
	Merge  func(...interface{}) string
	Stop   func(...interface{}) string
}{
	Target: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed, color.Bold).SprintFunc())(is...)
	},
	Merge: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
	Stop: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.Faint).SprintFunc())(is...)
	},
}

// ErrNoLocation is reported for states that do not know their location.
var ErrNoLocation = errors.New("state has no location")

// AnalysisError is a failure of an operator of the analysis while processing
// the state at Location along Edge. Edge is nil for failures that are not
// tied to an edge.
type AnalysisError struct {
	Location cfa.Location
	Edge     cfa.Edge
	Err      error
}

func (e *AnalysisError) Error() string {
	if e.Edge == nil {
		return fmt.Sprintf("analysis failed at %v: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("analysis failed at %v along %v: %v", e.Location, e.Edge, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Config controls an exploration.
type Config struct {
	// Stop at the first target state instead of exploring everything.
	StopOnFirstTarget bool
	// Log events of the exploration.
	Log bool
	// Target decides which states violate the property. Defaults to
	// cpa.IsTargetState.
	Target cpa.TargetFunc
	// OnIteration is called before every iteration. Budgets are enforced by
	// cancelling the context passed to Run from here.
	OnIteration func(iteration int, r *reached.Set)
	Metrics     *Metrics
}

// Algorithm runs one analysis over one automaton.
type Algorithm struct {
	cpa *cpa.CPA
	cfa cfa.CFA
	cfg Config
}

// New validates the analysis and builds the algorithm.
func New(c *cpa.CPA, g cfa.CFA, cfg Config) (*Algorithm, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, cpa.ConfigurationError{Component: "algorithm", Reason: "no automaton"}
	}
	if cfg.Target == nil {
		cfg.Target = cpa.IsTargetState
	}
	return &Algorithm{cpa: c, cfa: g, cfg: cfg}, nil
}

// CPA returns the analysis run by the algorithm.
func (a *Algorithm) CPA() *cpa.CPA {
	return a.cpa
}

func (a *Algorithm) logf(format string, args ...any) {
	if a.cfg.Log {
		log.Printf(format, args...)
	}
}

// Run explores r until its waitlist is empty. It returns early, with an
// incomplete status, when ctx is cancelled, when a precision adjustment
// asks for a break, or at the first target if so configured. Any failure
// of the analysis aborts the exploration.
func (a *Algorithm) Run(ctx context.Context, r *reached.Set) (Status, error) {
	defer a.cfg.Metrics.track(time.Now())
	status := Status{Complete: true, Sound: !a.cpa.Relaxed}

	for _, e := range r.Entries() {
		if _, ok := cpa.LocationOf(e.State); e.Waiting && !ok {
			return status, cpa.ConfigurationError{
				Component: a.cpa.Name,
				Reason:    fmt.Sprintf("initial state %v has no location", e.State),
			}
		}
	}

	for iteration := 0; r.HasWaiting(); iteration++ {
		if err := ctx.Err(); err != nil {
			a.logf("Exploration interrupted after %d iterations: %v", iteration, err)
			status.Complete = false
			return status, nil
		}
		if a.cfg.OnIteration != nil {
			a.cfg.OnIteration(iteration, r)
		}

		s, p, id, err := r.Pop()
		if err != nil {
			return status, err
		}
		a.cfg.Metrics.iteration()

		halt, err := a.expand(ctx, r, s, p, id)
		switch {
		case err != nil && ctx.Err() != nil:
			// The transfer relation gave up because of the cancellation.
			a.logf("Exploration interrupted while expanding %v: %v", s, err)
			if rerr := requeue(r, s); rerr != nil {
				return status, rerr
			}
			status.Complete = false
			return status, nil
		case err != nil:
			return status, err
		case halt:
			status.Complete = false
			return status, nil
		}
	}

	return status, nil
}

// expand processes every successor of s. It reports whether the exploration
// must pause. In that case s is queued again if some of its successors were
// not processed.
func (a *Algorithm) expand(ctx context.Context, r *reached.Set, s cpa.State, p cpa.Precision, id arg.NodeID) (bool, error) {
	loc, ok := cpa.LocationOf(s)
	if !ok {
		return false, &AnalysisError{Err: fmt.Errorf("%w: %v", ErrNoLocation, s)}
	}

	edges := a.cfa.Out(loc)
	for i, e := range edges {
		succs, err := a.cpa.Transfer.Successors(ctx, s, p, e)
		if err != nil {
			return false, &AnalysisError{Location: loc, Edge: e, Err: err}
		}

		for j, succ := range succs {
			a.cfg.Metrics.successor()
			halt, err := a.process(r, id, succ, p, e)
			if err != nil {
				return false, &AnalysisError{Location: loc, Edge: e, Err: err}
			}
			if halt {
				if i < len(edges)-1 || j < len(succs)-1 {
					return true, requeue(r, s)
				}
				return true, nil
			}
		}
	}
	return false, nil
}

// requeue puts s back into the waitlist. States replaced by a merge in the
// meantime are already waiting in their merged form.
func requeue(r *reached.Set, s cpa.State) error {
	if err := r.Reopen(s); err != nil && !errors.Is(err, reached.ErrNotReached) {
		return err
	}
	return nil
}

// process merges, stops, adjusts and inserts one successor of parent.
func (a *Algorithm) process(r *reached.Set, parent arg.NodeID, s cpa.State, p cpa.Precision, e cfa.Edge) (bool, error) {
	merged := false
	for _, x := range r.EntriesAt(s) {
		m, changed, err := a.cpa.Merge.Merge(s, x.State, x.Precision)
		if err != nil {
			return false, err
		}
		if !changed {
			continue
		}

		a.cfg.Metrics.merge()
		a.logf("%s %v into %v", colorize.Merge("Merged"), s, x.State)
		if _, err := r.Replace(x.Node, m, parent, e); err != nil {
			return false, err
		}
		merged = true
	}

	stopped, err := a.stop(r, parent, s, p, e, merged)
	if err != nil || stopped {
		return false, err
	}

	adj, err := a.cpa.Adjustment().Adjust(s, p, r)
	if err != nil {
		return false, err
	}

	id, added, err := r.Add(parent, adj.State, adj.Precision, e)
	if err != nil {
		return false, err
	}

	if added && a.cfg.Target(adj.State) {
		a.cfg.Metrics.target()
		a.logf("%s %v", colorize.Target("Reached target"), adj.State)
		if err := r.MarkTarget(id); err != nil {
			return false, err
		}
		if a.cfg.StopOnFirstTarget {
			return true, nil
		}
	}

	if adj.Action == cpa.Break {
		a.cfg.Metrics.brk()
		a.logf("Precision adjustment paused the exploration at %v", adj.State)
		return true, nil
	}
	return false, nil
}

// stop checks s against the reached states at its location. Stopped
// successors are recorded in the graph as covered by the first reached state
// that stops them on its own. Successors equal to a reached state only add
// a parent edge, and successors absorbed by a merge are dropped.
func (a *Algorithm) stop(r *reached.Set, parent arg.NodeID, s cpa.State, p cpa.Precision, e cfa.Edge, merged bool) (bool, error) {
	entries := r.EntriesAt(s)
	states := make([]cpa.State, len(entries))
	for i, x := range entries {
		states[i] = x.State
	}

	stopped, err := a.cpa.Stop.Stop(s, states, p)
	if err != nil || !stopped {
		return false, err
	}
	a.cfg.Metrics.stop()
	a.logf("%s %v", colorize.Stop("Stopped"), s)

	for _, x := range entries {
		if x.State.Equal(s) {
			_, _, err := r.Add(parent, s, p, e)
			return true, err
		}
	}
	if merged {
		return true, nil
	}

	for _, x := range entries {
		covers, err := a.cpa.Stop.Stop(s, []cpa.State{x.State}, p)
		if err != nil {
			return false, err
		}
		if covers {
			_, err := r.AddCovered(parent, s, p, e, x.Node)
			return true, err
		}
	}
	return true, nil
}
