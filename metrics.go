package main

import (
	"fmt"

	"github.com/cs-au-dk/reach/analysis/algorithm"
	"github.com/cs-au-dk/reach/analysis/bam"
	"github.com/cs-au-dk/reach/analysis/domains/location"
)

// gatherMetrics prints the exploration metrics and, with block summaries,
// the cache statistics, the number of states across all summaries used and
// the calling contexts of the panics found inside summaries.
func gatherMetrics(s setup, tasks []algorithm.Task) error {
	if !opts.Metrics() {
		return nil
	}

	msg := "================ Results =====================\n\n"
	msg += "Exploration: " + s.metrics.String() + "\n"

	if s.bam != nil {
		msg += "Summaries: " + fmt.Sprint(s.bam.Cache().Len()) + " (" + s.stats.String() + ")\n"

		x := bam.Extractor{
			Analysis:       s.bam,
			Differ:         location.Differ{},
			ProcessCovered: opts.ProcessCoveredEffects(),
		}
		for _, t := range tasks {
			states, err := x.Extract(t.Reached)
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			inner := 0
			contexts := map[string]bool{}
			for _, st := range states {
				if st.Summary == nil {
					continue
				}
				inner++
				if s.target(st.State) {
					contexts[fmt.Sprintf("%v %v", st.State, st.Effects)] = true
				}
			}
			msg += fmt.Sprintf("%s: %d states, %d inside summaries, %d panic contexts\n",
				t.Name, len(states)-inner, inner, len(contexts))
		}
	}

	if s.history != nil {
		msg += "Recorded merges and adjustments: " + fmt.Sprint(s.history.Len()) + "\n"
	}
	msg += "================ Results ====================="
	fmt.Println(msg)
	return nil
}
